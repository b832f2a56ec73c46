package notify

import (
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"campuspass.org/internal/obs"
)

// SendGrid delivers notifications by email through the SendGrid v3 API.
type SendGrid struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

var _ Dispatcher = (*SendGrid)(nil)

// NewSendGrid creates a dispatcher sending from the given address.
func NewSendGrid(apiKey, appName, fromEmail string) *SendGrid {
	return &SendGrid{
		client:     sendgrid.NewSendClient(apiKey),
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

// Dispatch sends the message on a background goroutine. Errors are logged;
// the state transition that produced the notification is already durable
// and must not be rolled back by a delivery failure.
func (s *SendGrid) Dispatch(n Notification) {
	if strings.TrimSpace(n.Recipient) == "" {
		return
	}
	go func() {
		msg := sgmail.NewSingleEmail(
			s.from,
			s.subjPrefix+n.Subject,
			sgmail.NewEmail("", n.Recipient),
			n.Body,
			"",
		)
		resp, err := s.client.Send(msg)
		if err != nil {
			obs.LogEntry(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"type":  "notify",
				"level": "error",
				"error": err.Error(),
			})
			return
		}
		if resp.StatusCode >= 400 {
			obs.LogEntry(map[string]any{
				"ts":     time.Now().UTC().Format(time.RFC3339Nano),
				"type":   "notify",
				"level":  "error",
				"status": resp.StatusCode,
				"body":   resp.Body,
			})
		}
	}()
}
