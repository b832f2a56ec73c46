package httpapi

import (
	"net/http"
	"strings"
	"time"

	"campuspass.org/internal/auth"
	"campuspass.org/internal/registry"
)

type registerCardRequest struct {
	Number    string     `json:"number"`
	OwnerID   string     `json:"owner_id"`
	Kind      string     `json:"kind"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type setCardStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleCardsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerCard(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleCardResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/cards/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/status") {
		number := strings.TrimSuffix(strings.TrimSuffix(path, "/status"), "/")
		number = strings.TrimSuffix(number, "/")
		if number == "" {
			writeError(w, r, http.StatusNotFound, "card not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setCardStatus(w, r, number)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getCard(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) registerCard(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r.Context(), auth.PermCardRegister); err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req registerCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	card, err := a.svc.Cards.Register(r.Context(), req.Number, req.OwnerID, registry.Kind(strings.ToLower(strings.TrimSpace(req.Kind))), req.ExpiresAt)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "cards.register", map[string]any{
		"card_number": card.Number,
		"kind":        string(card.Kind),
	})

	w.Header().Set("Location", "/v1/cards/"+card.Number)
	writeJSON(w, http.StatusCreated, card)
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request, number string) {
	if _, err := a.requirePermission(r.Context(), auth.PermCardRead); err != nil {
		handleDomainError(w, r, err)
		return
	}
	card, err := a.svc.Cards.Lookup(r.Context(), number)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (a *API) setCardStatus(w http.ResponseWriter, r *http.Request, number string) {
	if _, err := a.requirePermission(r.Context(), auth.PermCardStatus); err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req setCardStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	card, err := a.svc.Cards.SetStatus(r.Context(), number, registry.Status(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "cards.status", map[string]any{
		"card_number": card.Number,
		"status":      string(card.Status),
	})

	writeJSON(w, http.StatusOK, card)
}
