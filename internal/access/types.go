package access

import (
	"errors"
	"time"

	"campuspass.org/internal/registry"
)

// Direction of a tap at an access point.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Event is an immutable fact: one authorized tap at one access point.
// Events are append-only; Sequence is the append order and breaks
// timestamp ties, so the log has a total order.
type Event struct {
	ID          string    `json:"id"`
	CardNumber  string    `json:"card_number"`
	AccessPoint string    `json:"access_point"`
	Direction   Direction `json:"direction"`
	VerifiedBy  string    `json:"verified_by,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	Sequence    uint64    `json:"sequence"`
}

// Presence is one row of the derived who-is-inside view.
type Presence struct {
	Card      registry.Card `json:"card"`
	EnteredAt time.Time     `json:"entered_at"`
}

var (
	ErrInvalidDirection = errors.New("direction must be in or out")
	ErrInvalidInput     = errors.New("invalid input")
)

// ValidDirection reports whether d is a known tap direction.
func ValidDirection(d Direction) bool {
	return d == DirectionIn || d == DirectionOut
}
