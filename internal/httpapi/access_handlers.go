package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campuspass.org/internal/access"
	"campuspass.org/internal/auth"
	"campuspass.org/internal/obs"
	"campuspass.org/internal/registry"
	"campuspass.org/internal/stream"
)

type recordTapRequest struct {
	CardNumber  string `json:"card_number"`
	AccessPoint string `json:"access_point"`
	Direction   string `json:"direction"`
	VerifiedBy  string `json:"verified_by,omitempty"`
}

type listEventsResponse struct {
	Items     []access.Event `json:"items"`
	NextAfter uint64         `json:"next_after"`
	AsOf      time.Time      `json:"as_of"`
}

type presenceResponse struct {
	Items []access.Presence `json:"items"`
	Count int               `json:"count"`
	AsOf  time.Time         `json:"as_of"`
}

func (a *API) handleTaps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.recordTap(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listEvents(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handlePresence(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.presence(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handlePresenceSummary(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.presenceSummary(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) recordTap(w http.ResponseWriter, r *http.Request) {
	actor, err := a.requirePermission(r.Context(), auth.PermTapRecord)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req recordTapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	dir := access.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
	verifiedBy := strings.TrimSpace(req.VerifiedBy)
	if verifiedBy == "" {
		verifiedBy = actor.UserID
	}

	now := a.now()
	ev, err := a.svc.Gate.RecordTap(r.Context(), req.CardNumber, req.AccessPoint, dir, verifiedBy, now)
	if err != nil {
		// A rejected tap is an audit fact, not an access event; it must
		// never reach the log the presence fold replays.
		if reason := rejectionReason(err); reason != "" {
			obs.TapsRejected.WithLabelValues(reason).Inc()
			a.audit(r.Context(), "access.tap.rejected", map[string]any{
				"card_number":  strings.TrimSpace(req.CardNumber),
				"access_point": strings.TrimSpace(req.AccessPoint),
				"direction":    string(dir),
				"reason":       reason,
			})
		}
		handleDomainError(w, r, err)
		return
	}

	obs.TapsRecorded.WithLabelValues(string(ev.Direction)).Inc()
	a.publish(stream.TypeTapRecorded, ev)
	if ev.Direction == access.DirectionOut {
		if card, lookupErr := a.svc.Cards.Lookup(r.Context(), ev.CardNumber); lookupErr == nil && card.Kind == registry.KindVisitor {
			obs.VisitorSessionsClosed.Inc()
			a.publish(stream.TypeVisitorLeft, ev)
		}
	}

	writeJSON(w, http.StatusCreated, ev)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return "not_found"
	case errors.Is(err, registry.ErrInactive):
		return "inactive"
	case errors.Is(err, registry.ErrExpired):
		return "expired"
	default:
		return ""
	}
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r.Context(), auth.PermEventsRead); err != nil {
		handleDomainError(w, r, err)
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var after uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = v
	}

	items, next, err := a.svc.Gate.ListEvents(r.Context(), limit, after)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEventsResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      a.now().UTC(),
	})
}

func (a *API) presence(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r.Context(), auth.PermPresenceRead); err != nil {
		handleDomainError(w, r, err)
		return
	}

	asOf, err := a.parseAsOf(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := a.svc.Gate.Presence(r.Context(), asOf)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presenceResponse{
		Items: items,
		Count: len(items),
		AsOf:  asOf.UTC(),
	})
}

func (a *API) presenceSummary(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r.Context(), auth.PermPresenceRead); err != nil {
		handleDomainError(w, r, err)
		return
	}

	asOf, err := a.parseAsOf(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := a.svc.Gate.PresenceSummary(r.Context(), asOf)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	total := 0
	byKind := make(map[string]int, len(counts))
	for kind, n := range counts {
		byKind[string(kind)] = n
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"by_kind": byKind,
		"total":   total,
		"as_of":   asOf.UTC(),
	})
}

func (a *API) parseAsOf(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return a.now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("as_of must be an RFC 3339 timestamp")
	}
	return t, nil
}
