package queue

import (
	"errors"
	"time"
)

// Status of a ticket in the serving state machine.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Ticket identity is (ServiceDay, Number): numbers are gap-free and
// monotonically increasing within a service-day and are never reused —
// cancellation neither frees a number nor skips one.
type Ticket struct {
	ID          string     `json:"id"`
	ServiceDay  string     `json:"service_day"` // YYYY-MM-DD, local midnight boundary
	Number      int        `json:"number"`
	RequesterID string     `json:"requester_id"`
	Purpose     string     `json:"purpose,omitempty"`
	Status      Status     `json:"status"`
	Window      int        `json:"window,omitempty"` // set on transition to serving
	CreatedAt   time.Time  `json:"created_at"`
	CalledAt    *time.Time `json:"called_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Display is the lobby view: the waiting line plus whatever each window is
// currently serving, recomputed from ticket records on every read.
type Display struct {
	ServiceDay string   `json:"service_day"`
	Waiting    []Ticket `json:"waiting"`
	Serving    []Ticket `json:"serving"`
}

var (
	ErrNotFound          = errors.New("ticket not found")
	ErrConflict          = errors.New("duplicate sequence number")
	ErrEmpty             = errors.New("no ticket waiting")
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrWindowBusy        = errors.New("window already has a serving ticket")
	ErrInvalidInput      = errors.New("invalid input")
)

// ServiceDay buckets an instant into its local service-day.
func ServiceDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// CanTransition encodes the legal state machine:
// waiting -> serving|cancelled, serving -> completed|cancelled.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusServing || to == StatusCancelled
	case StatusServing:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}
