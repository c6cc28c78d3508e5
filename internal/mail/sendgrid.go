package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGrid sends email through the SendGrid v3 API.
type SendGrid struct {
	client   *sendgrid.Client
	fromAddr string
	fromName string
}

// NewSendGrid creates a SendGrid transport.
func NewSendGrid(apiKey, fromAddr, fromName string) *SendGrid {
	return &SendGrid{
		client:   sendgrid.NewSendClient(apiKey),
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

// Send delivers msg. Any non-2xx response is an error.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail(s.fromName, s.fromAddr)
	to := sgmail.NewEmail(msg.ToName, msg.To)
	email := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
