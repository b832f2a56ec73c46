package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Service defines card registry operations.
type Service interface {
	// Register issues a new card. Fails with ErrConflict when the number
	// is already on file.
	Register(ctx context.Context, number, ownerID string, kind Kind, expiresAt *time.Time) (Card, error)
	// Lookup returns the card by number or ErrNotFound.
	Lookup(ctx context.Context, number string) (Card, error)
	// Authorize reports whether the card may open a gate at the given
	// instant. Pure read: rejections are returned as ErrNotFound,
	// ErrInactive or ErrExpired, and nothing is mutated.
	Authorize(ctx context.Context, number string, now time.Time) (Card, error)
	// SetStatus flips a card's administrative status (lost, inactive,
	// reactivated). Fails with ErrNotFound when the card is absent.
	SetStatus(ctx context.Context, number string, status Status) (Card, error)
}

// InMemory implements Service with in-process concurrency safety. It is
// the reference implementation; the pg store must behave identically.
type InMemory struct {
	mu    sync.RWMutex
	cards map[string]*Card
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{cards: make(map[string]*Card)}
}

func (s *InMemory) Register(ctx context.Context, number, ownerID string, kind Kind, expiresAt *time.Time) (Card, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return Card{}, fmt.Errorf("%w: card number is required", ErrInvalidInput)
	}
	if !ValidKind(kind) {
		return Card{}, fmt.Errorf("%w: unknown card kind %q", ErrInvalidInput, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cards[number]; exists {
		return Card{}, ErrConflict
	}
	card := &Card{
		Number:    number,
		OwnerID:   strings.TrimSpace(ownerID),
		Kind:      kind,
		Status:    StatusActive,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	s.cards[number] = card
	return *card, nil
}

func (s *InMemory) Lookup(ctx context.Context, number string) (Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[strings.TrimSpace(number)]
	if !ok {
		return Card{}, ErrNotFound
	}
	return *card, nil
}

func (s *InMemory) Authorize(ctx context.Context, number string, now time.Time) (Card, error) {
	card, err := s.Lookup(ctx, number)
	if err != nil {
		return Card{}, err
	}
	if err := card.Authorized(now); err != nil {
		return Card{}, err
	}
	return card, nil
}

func (s *InMemory) SetStatus(ctx context.Context, number string, status Status) (Card, error) {
	if !ValidStatus(status) {
		return Card{}, fmt.Errorf("%w: unknown card status %q", ErrInvalidInput, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[strings.TrimSpace(number)]
	if !ok {
		return Card{}, ErrNotFound
	}
	card.Status = status
	return *card, nil
}
