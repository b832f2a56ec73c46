package visitor

import (
	"errors"
	"time"
)

// Status of a visitor session. A session only ever moves forward:
// active -> completed.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Session is the bounded-lifetime identity issued to a one-time visitor,
// linked 1:1 to a temporary visitor card. Completing the session retires
// the card and vice versa; the pair never diverges.
type Session struct {
	ID            string     `json:"id"`
	CardNumber    string     `json:"card_number"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	ContactNumber string     `json:"contact_number,omitempty"`
	Purpose       string     `json:"purpose,omitempty"`
	Visiting      string     `json:"visiting,omitempty"` // host reference
	IDType        string     `json:"id_type,omitempty"`
	IDNumber      string     `json:"id_number,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

var (
	ErrNotFound     = errors.New("visitor session not found")
	ErrInvalidInput = errors.New("invalid input")
)
