package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"campuspass.org/internal/ids"
)

// Service defines queue sequencer operations.
type Service interface {
	// Issue assigns the next sequence number for the service-day
	// containing now. Assignment is atomic: concurrent calls never share
	// or skip a number.
	Issue(ctx context.Context, requesterID, purpose string, now time.Time) (Ticket, error)
	// CallNext claims the oldest waiting ticket of the current
	// service-day for the window. Fails with ErrEmpty when nothing is
	// waiting and with ErrWindowBusy when the window still has a serving
	// ticket; the previous ticket must be completed or cancelled first.
	CallNext(ctx context.Context, window int, now time.Time) (Ticket, error)
	// Complete moves serving -> completed.
	Complete(ctx context.Context, ticketID string, now time.Time) (Ticket, error)
	// Cancel moves waiting|serving -> cancelled.
	Cancel(ctx context.Context, ticketID string) (Ticket, error)
	// Get returns the ticket by id.
	Get(ctx context.Context, ticketID string) (Ticket, error)
	// Display returns the waiting line and per-window serving tickets for
	// the current service-day.
	Display(ctx context.Context, now time.Time) (Display, error)
}

// InMemory implements Service with a per-day counter guarded by the same
// lock as the ticket table, which makes number assignment trivially atomic.
type InMemory struct {
	loc *time.Location

	mu       sync.Mutex
	tickets  map[string]*Ticket
	order    []string       // insertion order, for stable listings
	counters map[string]int // service-day -> last assigned number
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty sequencer. The location's midnight bounds
// the service-day; nil means time.Local.
func NewInMemory(loc *time.Location) *InMemory {
	if loc == nil {
		loc = time.Local
	}
	return &InMemory{
		loc:      loc,
		tickets:  make(map[string]*Ticket),
		counters: make(map[string]int),
	}
}

func (s *InMemory) Issue(ctx context.Context, requesterID, purpose string, now time.Time) (Ticket, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return Ticket{}, fmt.Errorf("%w: requester is required", ErrInvalidInput)
	}
	day := ServiceDay(now, s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[day]++
	t := &Ticket{
		ID:          ids.NewAt(now),
		ServiceDay:  day,
		Number:      s.counters[day],
		RequesterID: requesterID,
		Purpose:     strings.TrimSpace(purpose),
		Status:      StatusWaiting,
		CreatedAt:   now.UTC(),
	}
	s.tickets[t.ID] = t
	s.order = append(s.order, t.ID)
	return *t, nil
}

func (s *InMemory) CallNext(ctx context.Context, window int, now time.Time) (Ticket, error) {
	if window <= 0 {
		return Ticket{}, fmt.Errorf("%w: window must be positive", ErrInvalidInput)
	}
	day := ServiceDay(now, s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	var next *Ticket
	for _, id := range s.order {
		t := s.tickets[id]
		if t.ServiceDay != day {
			continue
		}
		if t.Status == StatusServing && t.Window == window {
			return Ticket{}, ErrWindowBusy
		}
		if t.Status == StatusWaiting && (next == nil || t.Number < next.Number) {
			next = t
		}
	}
	if next == nil {
		return Ticket{}, ErrEmpty
	}

	called := now.UTC()
	next.Status = StatusServing
	next.Window = window
	next.CalledAt = &called
	return *next, nil
}

func (s *InMemory) Complete(ctx context.Context, ticketID string, now time.Time) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	if !CanTransition(t.Status, StatusCompleted) {
		return Ticket{}, fmt.Errorf("%w: %s -> completed", ErrInvalidTransition, t.Status)
	}
	done := now.UTC()
	t.Status = StatusCompleted
	t.CompletedAt = &done
	return *t, nil
}

func (s *InMemory) Cancel(ctx context.Context, ticketID string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	if !CanTransition(t.Status, StatusCancelled) {
		return Ticket{}, fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, t.Status)
	}
	t.Status = StatusCancelled
	return *t, nil
}

func (s *InMemory) Get(ctx context.Context, ticketID string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return *t, nil
}

func (s *InMemory) Display(ctx context.Context, now time.Time) (Display, error) {
	day := ServiceDay(now, s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	d := Display{ServiceDay: day, Waiting: []Ticket{}, Serving: []Ticket{}}
	for _, id := range s.order {
		t := s.tickets[id]
		if t.ServiceDay != day {
			continue
		}
		switch t.Status {
		case StatusWaiting:
			d.Waiting = append(d.Waiting, *t)
		case StatusServing:
			d.Serving = append(d.Serving, *t)
		}
	}
	sort.Slice(d.Waiting, func(i, j int) bool { return d.Waiting[i].Number < d.Waiting[j].Number })
	sort.Slice(d.Serving, func(i, j int) bool { return d.Serving[i].Window < d.Serving[j].Window })
	return d, nil
}
