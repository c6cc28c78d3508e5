package circle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bethatfriend/bethatfriend/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ContactInput is one contact to invite.
type ContactInput struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// SendResult is the outcome of SendInvite. MailtoURL is set when the invite
// was handed to the user's own mail client.
type SendResult struct {
	Invite    *store.Invite `json:"invite"`
	MailtoURL string        `json:"mailto_url,omitempty"`
}

// JoinResult is the outcome of joining someone's circle. Invite is nil when no
// outstanding invite matched the member.
type JoinResult struct {
	Connection *store.Connection `json:"connection"`
	Invite     *store.Invite     `json:"invite,omitempty"`
}

// CreateInvites queues one invite per contact. Nothing is stored unless every
// contact is valid.
func (s *Service) CreateInvites(ctx context.Context, actor Actor, contacts []ContactInput) ([]store.Invite, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, validationf("at least one contact is required")
	}

	invites := make([]store.Invite, 0, len(contacts))
	for i, c := range contacts {
		name := cleanText(c.Name)
		if name == "" {
			return nil, validationf("contacts[%d]: name is required", i)
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return nil, validationf("contacts[%d]: name must be at most %d characters", i, maxNameLength)
		}
		inv := store.Invite{ContactName: name}
		if email := strings.ToLower(strings.TrimSpace(c.Email)); email != "" {
			if !ValidEmail(email) {
				return nil, validationf("contacts[%d]: invalid email %q", i, c.Email)
			}
			inv.ContactEmail = &email
		}
		invites = append(invites, inv)
	}

	if _, err := s.Profile(ctx, actor.UserID); err != nil {
		return nil, err
	}
	created, err := s.store.InsertInvites(ctx, actor.UserID, invites)
	if err != nil {
		return nil, fmt.Errorf("create invites: %w", err)
	}
	s.log.Info("invites queued", "inviter_id", actor.UserID, "count", len(created))
	return created, nil
}

// ListInvites returns every invite the inviter created, oldest first.
func (s *Service) ListInvites(ctx context.Context, inviterID string) ([]store.Invite, error) {
	invites, err := s.store.ListInvites(ctx, inviterID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invites, nil
}

// ListOpenInvites returns the inviter's invites that are still queued or sent.
func (s *Service) ListOpenInvites(ctx context.Context, inviterID string) ([]store.Invite, error) {
	invites, err := s.store.ListOpenInvites(ctx, inviterID)
	if err != nil {
		return nil, fmt.Errorf("list open invites: %w", err)
	}
	return invites, nil
}

// SendInvite delivers one of the actor's invites and marks it sent. Only one
// send per invite may be in flight; the status is left alone when delivery
// fails.
func (s *Service) SendInvite(ctx context.Context, actor Actor, inviteID string) (*SendResult, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	inv, err := s.store.GetInvite(ctx, inviteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("invite not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if inv.InviterID != actor.UserID {
		return nil, notFoundf("invite not found")
	}
	if inv.ContactEmail == nil || *inv.ContactEmail == "" {
		return nil, validationf("invite has no email address")
	}
	if inv.Status == store.InviteAccepted {
		return nil, conflictf("invite was already accepted")
	}

	release, ok, err := s.locker.TryLock(ctx, "invite-send:"+inv.ID, s.sendLockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock invite send: %w", err)
	}
	if !ok {
		return nil, conflictf("invite is already being sent")
	}
	defer release()

	inviter, err := s.Profile(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	res, err := s.delivery.Deliver(ctx, InviteMessage{
		To:          *inv.ContactEmail,
		InviterName: inviter.Name,
		ContactName: inv.ContactName,
		JoinURL:     s.JoinURL(inviter.InviteCode),
	})
	if err != nil {
		s.log.Warn("invite delivery failed", "invite_id", inv.ID, "error", err)
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("deliver invite: %w", err)
	}

	sent, err := s.store.MarkInviteSent(ctx, actor.UserID, inv.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, conflictf("invite was accepted while sending")
	}
	if err != nil {
		return nil, fmt.Errorf("mark invite sent: %w", err)
	}
	s.log.Info("invite sent", "invite_id", sent.ID, "mailto", res.MailtoURL != "")
	return &SendResult{Invite: sent, MailtoURL: res.MailtoURL}, nil
}

// AcceptInvite connects member to inviterID and, when one exists, marks the
// inviter's most recent outstanding invite to member's email as accepted. The
// connection is made first; failing to update the invite is logged only.
func (s *Service) AcceptInvite(ctx context.Context, inviterID string, member Actor) (*JoinResult, error) {
	conn, err := s.AutoConfirm(ctx, inviterID, member.UserID)
	if err != nil {
		return nil, err
	}
	res := &JoinResult{Connection: conn}
	if member.Email == "" {
		return res, nil
	}

	inv, err := s.store.AcceptLatestInvite(ctx, inviterID, member.Email)
	switch {
	case err == nil:
		res.Invite = inv
		s.log.Info("invite accepted", "invite_id", inv.ID)
	case errors.Is(err, store.ErrNotFound):
	default:
		s.log.Warn("invite bookkeeping failed", "inviter_id", inviterID, "error", err)
	}
	return res, nil
}

// RequestJoin joins the actor to the circle of whoever owns code.
func (s *Service) RequestJoin(ctx context.Context, code string, actor Actor) (*JoinResult, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	if _, err := s.Profile(ctx, actor.UserID); err != nil {
		return nil, err
	}
	inviter, err := s.ResolveByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if inviter.ID == actor.UserID {
		return nil, validationf("cannot join your own circle")
	}
	return s.AcceptInvite(ctx, inviter.ID, actor)
}
