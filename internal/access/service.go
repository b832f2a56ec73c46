package access

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"campuspass.org/internal/ids"
	"campuspass.org/internal/registry"
)

// ExitObserver is notified after an authorized "out" tap is appended.
// The gate performs no deduplication, so observers must tolerate being
// called for spurious or repeated exits.
type ExitObserver interface {
	CardExited(ctx context.Context, card registry.Card, at time.Time)
}

// Service records gate taps and answers presence queries derived from the
// event log.
//
// Presence is computed from a consistent snapshot of the log; with a
// remote store the snapshot may lag the newest append by the store's
// propagation delay. Callers get point-in-time truth, not necessarily
// this-instant truth.
type Service interface {
	// RecordTap authorizes the card and, on success, appends exactly one
	// event. Rejections (registry.ErrNotFound, ErrInactive, ErrExpired)
	// append nothing. Repeated same-direction taps are accepted verbatim;
	// the presence fold absorbs them.
	RecordTap(ctx context.Context, cardNumber, accessPoint string, dir Direction, verifiedBy string, now time.Time) (Event, error)
	// ListEvents returns events in append order, paged by sequence.
	ListEvents(ctx context.Context, limit int, afterSeq uint64) ([]Event, uint64, error)
	// Presence returns who is inside as of the given instant, scoped to
	// the service-day containing it, sorted by entry time.
	Presence(ctx context.Context, asOf time.Time) ([]Presence, error)
	// PresenceSummary groups the presence set by card kind.
	PresenceSummary(ctx context.Context, asOf time.Time) (map[registry.Kind]int, error)
}

// InMemory implements Service over an in-process append-only slice.
type InMemory struct {
	cards    registry.Service
	observer ExitObserver
	loc      *time.Location

	mu     sync.RWMutex
	events []Event
	seq    uint64
}

var _ Service = (*InMemory)(nil)

// Option configures InMemory.
type Option func(*InMemory)

// WithExitObserver registers a hook invoked after each out-direction append.
func WithExitObserver(o ExitObserver) Option {
	return func(s *InMemory) { s.observer = o }
}

// WithLocation sets the time zone whose midnight bounds the service-day.
func WithLocation(loc *time.Location) Option {
	return func(s *InMemory) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewInMemory creates an empty event log backed by the given card registry.
func NewInMemory(cards registry.Service, opts ...Option) *InMemory {
	s := &InMemory{cards: cards, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) RecordTap(ctx context.Context, cardNumber, accessPoint string, dir Direction, verifiedBy string, now time.Time) (Event, error) {
	cardNumber = strings.TrimSpace(cardNumber)
	accessPoint = strings.TrimSpace(accessPoint)
	if cardNumber == "" || accessPoint == "" {
		return Event{}, fmt.Errorf("%w: card number and access point are required", ErrInvalidInput)
	}
	if !ValidDirection(dir) {
		return Event{}, ErrInvalidDirection
	}

	card, err := s.cards.Authorize(ctx, cardNumber, now)
	if err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	s.seq++
	ev := Event{
		ID:          ids.NewAt(now),
		CardNumber:  card.Number,
		AccessPoint: accessPoint,
		Direction:   dir,
		VerifiedBy:  strings.TrimSpace(verifiedBy),
		RecordedAt:  now.UTC(),
		Sequence:    s.seq,
	}
	s.events = append(s.events, ev)
	s.mu.Unlock()

	if dir == DirectionOut && s.observer != nil {
		s.observer.CardExited(ctx, card, now)
	}
	return ev, nil
}

func (s *InMemory) ListEvents(ctx context.Context, limit int, afterSeq uint64) ([]Event, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Event
	var last uint64
	for _, ev := range s.events {
		if ev.Sequence <= afterSeq {
			continue
		}
		res = append(res, ev)
		last = ev.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last, nil
}

func (s *InMemory) Presence(ctx context.Context, asOf time.Time) ([]Presence, error) {
	inside := Replay(s.dayEvents(asOf))

	res := make([]Presence, 0, len(inside))
	for number, enteredAt := range inside {
		card, err := s.cards.Lookup(ctx, number)
		if err != nil {
			return nil, err
		}
		res = append(res, Presence{Card: card, EnteredAt: enteredAt})
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].EnteredAt.Equal(res[j].EnteredAt) {
			return res[i].EnteredAt.Before(res[j].EnteredAt)
		}
		return res[i].Card.Number < res[j].Card.Number
	})
	return res, nil
}

func (s *InMemory) PresenceSummary(ctx context.Context, asOf time.Time) (map[registry.Kind]int, error) {
	present, err := s.Presence(ctx, asOf)
	if err != nil {
		return nil, err
	}
	counts := make(map[registry.Kind]int)
	for _, p := range present {
		counts[p.Card.Kind]++
	}
	return counts, nil
}

// dayEvents snapshots the events of the service-day containing asOf, up to
// asOf, in append order.
func (s *InMemory) dayEvents(asOf time.Time) []Event {
	from, to := dayBounds(asOf, s.loc)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Event
	for _, ev := range s.events {
		if ev.RecordedAt.Before(from) || ev.RecordedAt.After(to) {
			continue
		}
		res = append(res, ev)
	}
	return res
}
