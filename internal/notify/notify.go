// Package notify delivers fire-and-forget notifications after state
// transitions (ticket called, visitor admitted). Dispatch never blocks the
// caller and never fails the transition that triggered it: delivery errors
// are logged and dropped.
package notify

import (
	"strings"
	"time"

	"campuspass.org/internal/obs"
)

// Notification is one message to one recipient.
type Notification struct {
	Recipient string // email address of the recipient
	Subject   string
	Body      string
}

// Dispatcher sends notifications.
type Dispatcher interface {
	Dispatch(n Notification)
}

// Console logs notifications instead of delivering them; the default for
// local development and tests.
type Console struct{}

var _ Dispatcher = Console{}

func (Console) Dispatch(n Notification) {
	if strings.TrimSpace(n.Recipient) == "" {
		return
	}
	obs.LogEntry(map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"type":      "notify",
		"recipient": n.Recipient,
		"subject":   n.Subject,
		"body":      n.Body,
	})
}
