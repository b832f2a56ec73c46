package registry

import (
	"errors"
	"time"
)

// Kind classifies who carries a card.
type Kind string

const (
	KindStudent   Kind = "student"
	KindPersonnel Kind = "personnel"
	KindVisitor   Kind = "visitor"
	KindParent    Kind = "parent"
)

// Status is the administrative state of a card. Cards are never deleted;
// lost or retired cards stay on file for audit.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusLost     Status = "lost"
)

// Card is an issued RFID credential. Number is the identity and is
// immutable once issued.
type Card struct {
	Number    string     `json:"number"`
	OwnerID   string     `json:"owner_id,omitempty"` // empty for visitor cards
	Kind      Kind       `json:"kind"`
	Status    Status     `json:"status"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

var (
	ErrNotFound     = errors.New("card not found")
	ErrConflict     = errors.New("card number already registered")
	ErrInactive     = errors.New("card is not active")
	ErrExpired      = errors.New("card has expired")
	ErrInvalidInput = errors.New("invalid input")
)

// ValidKind reports whether k names a known card kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindStudent, KindPersonnel, KindVisitor, KindParent:
		return true
	}
	return false
}

// ValidStatus reports whether s names a known card status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusInactive, StatusLost:
		return true
	}
	return false
}

// Authorized is the pure authorization decision: nil only while the card
// is active and unexpired at the given instant. Expiry is evaluated at
// read time; nothing is written.
func (c Card) Authorized(now time.Time) error {
	if c.Status != StatusActive {
		return ErrInactive
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return ErrExpired
	}
	return nil
}
