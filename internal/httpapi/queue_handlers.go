package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"campuspass.org/internal/auth"
	"campuspass.org/internal/notify"
	"campuspass.org/internal/obs"
	"campuspass.org/internal/stream"
)

type issueTicketRequest struct {
	Purpose string `json:"purpose,omitempty"`
}

type callNextRequest struct {
	Window int `json:"window"`
}

func (a *API) handleTicketsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.issueTicket(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleTicketResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/queue/tickets/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/complete"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.completeTicket(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(path, "/cancel"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.cancelTicket(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getTicket(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleCallNext(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.callNext(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleDisplay(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.display(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) issueTicket(w http.ResponseWriter, r *http.Request) {
	actor, err := a.requirePermission(r.Context(), auth.PermQueueIssue)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req issueTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := a.svc.Queue.Issue(r.Context(), actor.UserID, req.Purpose, a.now())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	obs.TicketsIssued.Inc()
	a.publish(stream.TypeTicketIssued, ticket)
	a.audit(r.Context(), "queue.ticket.issue", map[string]any{
		"ticket_id":   ticket.ID,
		"service_day": ticket.ServiceDay,
		"number":      ticket.Number,
	})

	w.Header().Set("Location", "/v1/queue/tickets/"+ticket.ID)
	writeJSON(w, http.StatusCreated, ticket)
}

func (a *API) callNext(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r.Context(), auth.PermQueueServe); err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req callNextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := a.svc.Queue.CallNext(r.Context(), req.Window, a.now())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	obs.TicketsCalled.Inc()
	a.publish(stream.TypeTicketCalled, ticket)
	a.notify(notify.Notification{
		Recipient: ticket.RequesterID,
		Subject:   fmt.Sprintf("Ticket %d is up", ticket.Number),
		Body:      fmt.Sprintf("Ticket %d is now being served at window %d.", ticket.Number, ticket.Window),
	})
	a.audit(r.Context(), "queue.ticket.call", map[string]any{
		"ticket_id": ticket.ID,
		"number":    ticket.Number,
		"window":    ticket.Window,
	})

	writeJSON(w, http.StatusOK, ticket)
}

func (a *API) completeTicket(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.requirePermission(r.Context(), auth.PermQueueServe); err != nil {
		handleDomainError(w, r, err)
		return
	}
	ticket, err := a.svc.Queue.Complete(r.Context(), id, a.now())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "queue.ticket.complete", map[string]any{
		"ticket_id": ticket.ID,
		"number":    ticket.Number,
	})
	writeJSON(w, http.StatusOK, ticket)
}

func (a *API) cancelTicket(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.requirePermission(r.Context(), auth.PermQueueCancel); err != nil {
		handleDomainError(w, r, err)
		return
	}
	ticket, err := a.svc.Queue.Cancel(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "queue.ticket.cancel", map[string]any{
		"ticket_id": ticket.ID,
		"number":    ticket.Number,
	})
	writeJSON(w, http.StatusOK, ticket)
}

func (a *API) getTicket(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.requirePermission(r.Context(), auth.PermQueueRead); err != nil {
		handleDomainError(w, r, err)
		return
	}
	ticket, err := a.svc.Queue.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// display is public: the lobby screen polls it without credentials.
func (a *API) display(w http.ResponseWriter, r *http.Request) {
	d, err := a.svc.Queue.Display(r.Context(), a.now())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
