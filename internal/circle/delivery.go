package circle

import (
	"context"
	"fmt"

	"github.com/bethatfriend/bethatfriend/internal/mail"
)

// InviteMessage is everything a delivery strategy needs to reach a contact.
type InviteMessage struct {
	To          string
	InviterName string
	ContactName string
	JoinURL     string
}

// DeliveryResult reports how an invite was handed off. MailtoURL is set when
// the user's own mail client has to finish the job.
type DeliveryResult struct {
	MailtoURL string
}

// InviteDelivery hands an invite to the contact. A nil error means the
// hand-off counts as sent.
type InviteDelivery interface {
	Deliver(ctx context.Context, msg InviteMessage) (DeliveryResult, error)
}

// DirectDelivery sends invites through an email transport.
type DirectDelivery struct {
	Transport mail.Transport
}

// Deliver renders and sends the invite email.
func (d DirectDelivery) Deliver(ctx context.Context, msg InviteMessage) (DeliveryResult, error) {
	m, err := mail.RenderInvite(msg.To, inviteData(msg))
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("invite email: %w", err)
	}
	if err := d.Transport.Send(ctx, m); err != nil {
		return DeliveryResult{}, transportError("failed to send invite email", err)
	}
	return DeliveryResult{}, nil
}

// MailtoDelivery returns a mailto: link for the user to send themselves.
type MailtoDelivery struct{}

// Deliver builds the mailto link.
func (MailtoDelivery) Deliver(_ context.Context, msg InviteMessage) (DeliveryResult, error) {
	return DeliveryResult{MailtoURL: mail.MailtoURL(msg.To, inviteData(msg))}, nil
}

func inviteData(msg InviteMessage) mail.InviteData {
	return mail.InviteData{InviterName: msg.InviterName, ContactName: msg.ContactName, JoinURL: msg.JoinURL}
}
