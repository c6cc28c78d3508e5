package circle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/bethatfriend/bethatfriend/internal/store"
)

const maxNameLength = 100

// InviterPreview is what a contact sees before joining someone's circle.
type InviterPreview struct {
	ID    string                `json:"id"`
	Name  string                `json:"name"`
	Dates []store.ImportantDate `json:"dates"`
}

// cleanText trims s and puts it in NFC so length limits and comparisons see
// composed characters.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func cleanName(name string) (string, error) {
	name = cleanText(name)
	if name == "" {
		return "", validationf("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", validationf("name must be at most %d characters", maxNameLength)
	}
	return name, nil
}

// CreateProfile creates the actor's profile with a fresh invite code. Calling
// it again for an actor that already has a profile updates the name instead.
func (s *Service) CreateProfile(ctx context.Context, actor Actor, name string) (*store.User, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetUser(ctx, actor.UserID)
	if err == nil {
		return s.renameProfile(ctx, existing, name)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}

	for attempt := 1; attempt <= maxInviteCodeAttempts; attempt++ {
		code, err := s.newInviteCode()
		if err != nil {
			return nil, err
		}
		u := &store.User{
			ID:         actor.UserID,
			Email:      actor.Email,
			Name:       name,
			InviteCode: code,
			CreatedAt:  s.now().UnixMilli(),
		}
		err = s.store.InsertUser(ctx, u)
		if err == nil {
			s.log.Info("profile created", "user_id", u.ID)
			return u, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("create profile: %w", err)
		}

		// Either the code collided or a concurrent call created this
		// profile first.
		if existing, getErr := s.store.GetUser(ctx, actor.UserID); getErr == nil {
			return s.renameProfile(ctx, existing, name)
		}
		s.log.Debug("invite code collision, retrying", "attempt", attempt)
	}
	return nil, conflictf("could not allocate a unique invite code after %d attempts", maxInviteCodeAttempts)
}

func (s *Service) renameProfile(ctx context.Context, u *store.User, name string) (*store.User, error) {
	if u.Name == name {
		return u, nil
	}
	if err := s.store.UpdateUserName(ctx, u.ID, name); err != nil {
		return nil, fmt.Errorf("update profile name: %w", err)
	}
	u.Name = name
	return u, nil
}

// Profile returns the profile for userID.
func (s *Service) Profile(ctx context.Context, userID string) (*store.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return u, nil
}

// ResolveByInviteCode returns the profile owning code.
func (s *Service) ResolveByInviteCode(ctx context.Context, code string) (*store.User, error) {
	code = normalizeInviteCode(code)
	if !ValidInviteCode(code) {
		return nil, notFoundf("invite code not found")
	}
	u, err := s.store.GetUserByInviteCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("invite code not found")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve invite code: %w", err)
	}
	return u, nil
}

// InviterPreview returns the inviter's name and dates for a join page.
func (s *Service) InviterPreview(ctx context.Context, code string) (*InviterPreview, error) {
	u, err := s.ResolveByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	dates, err := s.store.ListDates(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list inviter dates: %w", err)
	}
	return &InviterPreview{ID: u.ID, Name: u.Name, Dates: dates}, nil
}

// UpdateOptIn turns reminder emails on or off for the actor.
func (s *Service) UpdateOptIn(ctx context.Context, actor Actor, enabled bool) (*store.User, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	err := s.store.SetEmailOptIn(ctx, actor.UserID, enabled)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("update opt-in: %w", err)
	}
	return s.Profile(ctx, actor.UserID)
}
