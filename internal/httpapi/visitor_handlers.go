package httpapi

import (
	"net/http"
	"strings"
	"time"

	"campuspass.org/internal/auth"
	"campuspass.org/internal/obs"
	"campuspass.org/internal/registry"
	"campuspass.org/internal/visitor"
)

type admitVisitorRequest struct {
	CardNumber    string     `json:"card_number"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	ContactNumber string     `json:"contact_number,omitempty"`
	Purpose       string     `json:"purpose,omitempty"`
	Visiting      string     `json:"visiting,omitempty"`
	IDType        string     `json:"id_type,omitempty"`
	IDNumber      string     `json:"id_number,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type admitVisitorResponse struct {
	Session visitor.Session `json:"session"`
	Card    registry.Card   `json:"card"`
}

func (a *API) handleVisitorsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.admitVisitor(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleVisitorResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/visitors/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getVisitor(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleVisitorSweep(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.sweepVisitors(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) admitVisitor(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r.Context(), auth.PermVisitorAdmit); err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req admitVisitorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, card, err := a.svc.Visitors.Admit(r.Context(), visitor.AdmitRequest{
		CardNumber:    req.CardNumber,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ContactNumber: req.ContactNumber,
		Purpose:       req.Purpose,
		Visiting:      req.Visiting,
		IDType:        req.IDType,
		IDNumber:      req.IDNumber,
		ExpiresAt:     req.ExpiresAt,
	}, a.now())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "visitors.admit", map[string]any{
		"session_id":  sess.ID,
		"card_number": card.Number,
		"visiting":    sess.Visiting,
	})

	w.Header().Set("Location", "/v1/visitors/"+sess.ID)
	writeJSON(w, http.StatusCreated, admitVisitorResponse{Session: sess, Card: card})
}

func (a *API) getVisitor(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.requirePermission(r.Context(), auth.PermVisitorRead); err != nil {
		handleDomainError(w, r, err)
		return
	}
	sess, err := a.svc.Visitors.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) sweepVisitors(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r.Context(), auth.PermVisitorSweep); err != nil {
		handleDomainError(w, r, err)
		return
	}

	closed, err := a.svc.Visitors.Sweep(r.Context(), a.now())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if closed > 0 {
		obs.VisitorSessionsClosed.Add(float64(closed))
		a.audit(r.Context(), "visitors.sweep", map[string]any{
			"closed": closed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": closed})
}
