package visitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"campuspass.org/internal/ids"
	"campuspass.org/internal/registry"
)

// AdmitRequest carries everything needed to badge a visitor in.
type AdmitRequest struct {
	CardNumber    string
	FirstName     string
	LastName      string
	ContactNumber string
	Purpose       string
	Visiting      string
	IDType        string
	IDNumber      string
	ExpiresAt     *time.Time
}

// Service manages visitor sessions.
type Service interface {
	// Admit creates a visitor card and its session atomically: either
	// both exist afterwards or neither does. Fails with
	// registry.ErrConflict when the card number is taken.
	Admit(ctx context.Context, req AdmitRequest, now time.Time) (Session, registry.Card, error)
	// Get returns the session by id.
	Get(ctx context.Context, id string) (Session, error)
	// CompleteByCard closes the active session linked to the card and
	// retires the card. Idempotent: closing an already-completed or
	// unknown session is a no-op, not an error — exit taps and sweeps
	// may race or repeat.
	CompleteByCard(ctx context.Context, cardNumber string, now time.Time) error
	// Sweep closes every active session whose card has expired and
	// returns how many it closed. Safe to run concurrently with itself.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// InMemory implements Service on top of an in-memory registry.
type InMemory struct {
	cards registry.Service

	mu       sync.Mutex
	sessions map[string]*Session
	byCard   map[string]string // card number -> session id
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty visitor service backed by the given registry.
func NewInMemory(cards registry.Service) *InMemory {
	return &InMemory{
		cards:    cards,
		sessions: make(map[string]*Session),
		byCard:   make(map[string]string),
	}
}

func (s *InMemory) Admit(ctx context.Context, req AdmitRequest, now time.Time) (Session, registry.Card, error) {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return Session{}, registry.Card{}, fmt.Errorf("%w: visitor name is required", ErrInvalidInput)
	}

	// Register is the only fallible step; the session insert below cannot
	// fail, so a registry error leaves nothing behind.
	card, err := s.cards.Register(ctx, req.CardNumber, "", registry.KindVisitor, req.ExpiresAt)
	if err != nil {
		return Session{}, registry.Card{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ID:            ids.NewAt(now),
		CardNumber:    card.Number,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Purpose:       strings.TrimSpace(req.Purpose),
		Visiting:      strings.TrimSpace(req.Visiting),
		IDType:        strings.TrimSpace(req.IDType),
		IDNumber:      strings.TrimSpace(req.IDNumber),
		Status:        StatusActive,
		CreatedAt:     now.UTC(),
	}
	s.sessions[sess.ID] = sess
	s.byCard[sess.CardNumber] = sess.ID
	return *sess, card, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *sess, nil
}

func (s *InMemory) CompleteByCard(ctx context.Context, cardNumber string, now time.Time) error {
	s.mu.Lock()
	id, ok := s.byCard[strings.TrimSpace(cardNumber)]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	sess := s.sessions[id]
	if sess.Status != StatusActive {
		s.mu.Unlock()
		return nil
	}
	done := now.UTC()
	sess.Status = StatusCompleted
	sess.CompletedAt = &done
	number := sess.CardNumber
	s.mu.Unlock()

	// Retire the badge so it cannot be replayed past the visit.
	if _, err := s.cards.SetStatus(ctx, number, registry.StatusInactive); err != nil {
		return err
	}
	return nil
}

// CardExited lets the service plug into the access gate as an exit
// observer: any out tap of a visitor badge closes its session.
func (s *InMemory) CardExited(ctx context.Context, card registry.Card, at time.Time) {
	if card.Kind != registry.KindVisitor {
		return
	}
	_ = s.CompleteByCard(ctx, card.Number, at)
}

func (s *InMemory) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	var stale []string
	for _, sess := range s.sessions {
		if sess.Status == StatusActive {
			stale = append(stale, sess.CardNumber)
		}
	}
	s.mu.Unlock()

	closed := 0
	for _, number := range stale {
		card, err := s.cards.Lookup(ctx, number)
		if err != nil {
			return closed, err
		}
		if card.ExpiresAt == nil || card.ExpiresAt.After(now) {
			continue
		}
		if err := s.CompleteByCard(ctx, number, now); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}
