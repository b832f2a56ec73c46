// Package stream fan-outs domain events to live dashboard subscribers
// (safety dashboard, queue display) over SSE.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event types published to subscribers.
const (
	TypeTapRecorded  = "tap_recorded"
	TypeTicketIssued = "ticket_issued"
	TypeTicketCalled = "ticket_called"
	TypeVisitorLeft  = "visitor_left"
)

// Event is one dashboard update. Payload is marshalled as-is.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(typ string, payload any) {
	evt := Event{Type: typ, Payload: payload, Timestamp: time.Now().UTC()}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when a subscriber is slow to avoid blocking the gate.
		}
	}
}
