package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"campuspass.org/internal/access"
	"campuspass.org/internal/audit"
	"campuspass.org/internal/auth"
	"campuspass.org/internal/queue"
	"campuspass.org/internal/registry"
	"campuspass.org/internal/visitor"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleDomainError maps the service error taxonomy onto HTTP statuses.
// A missing resource and an empty queue both read as 404; state machine
// violations and duplicate identities read as 409; an authorized caller
// tapping a dead card reads as 403.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidInput),
		errors.Is(err, access.ErrInvalidInput),
		errors.Is(err, access.ErrInvalidDirection),
		errors.Is(err, queue.ErrInvalidInput),
		errors.Is(err, visitor.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, queue.ErrNotFound),
		errors.Is(err, visitor.ErrNotFound),
		errors.Is(err, queue.ErrEmpty):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrConflict),
		errors.Is(err, queue.ErrConflict),
		errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, queue.ErrWindowBusy):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrInactive),
		errors.Is(err, registry.ErrExpired),
		errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}
