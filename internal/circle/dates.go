package circle

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bethatfriend/bethatfriend/internal/store"
)

const maxLabelLength = 100

// DateInput is a caller-supplied important date.
type DateInput struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Month int    `json:"month"`
	Day   int    `json:"day"`
}

func validateDate(in DateInput) (store.ImportantDate, error) {
	label := cleanText(in.Label)
	if label == "" {
		return store.ImportantDate{}, validationf("label is required")
	}
	if utf8.RuneCountInString(label) > maxLabelLength {
		return store.ImportantDate{}, validationf("label must be at most %d characters", maxLabelLength)
	}
	if in.Month < 1 || in.Month > 12 {
		return store.ImportantDate{}, validationf("month %d is out of range", in.Month)
	}
	if !ValidDay(in.Month, in.Day) {
		return store.ImportantDate{}, validationf("day %d is not valid for month %d", in.Day, in.Month)
	}
	return store.ImportantDate{ID: in.ID, Label: label, Month: in.Month, Day: in.Day}, nil
}

// ListDates returns ownerID's dates ordered by (month, day).
func (s *Service) ListDates(ctx context.Context, ownerID string) ([]store.ImportantDate, error) {
	dates, err := s.store.ListDates(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	return dates, nil
}

// ReplaceDates swaps the actor's entire date set for dates. Every entry is
// validated before anything is written; the swap itself is atomic.
func (s *Service) ReplaceDates(ctx context.Context, actor Actor, dates []DateInput) ([]store.ImportantDate, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	clean := make([]store.ImportantDate, 0, len(dates))
	for i, in := range dates {
		d, err := validateDate(in)
		if err != nil {
			var e *Error
			errors.As(err, &e)
			return nil, validationf("dates[%d]: %s", i, e.Message)
		}
		clean = append(clean, d)
	}

	if _, err := s.store.ReplaceDates(ctx, actor.UserID, clean); err != nil {
		return nil, fmt.Errorf("replace dates: %w", err)
	}
	return s.ListDates(ctx, actor.UserID)
}

// UpsertDate inserts a new date when in.ID is empty and otherwise edits the
// existing date, which must belong to the actor.
func (s *Service) UpsertDate(ctx context.Context, actor Actor, in DateInput) (*store.ImportantDate, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	d, err := validateDate(in)
	if err != nil {
		return nil, err
	}
	d.OwnerID = actor.UserID

	if d.ID == "" {
		if err := s.store.InsertDate(ctx, &d); err != nil {
			return nil, fmt.Errorf("insert date: %w", err)
		}
		return &d, nil
	}

	existing, err := s.ownedDate(ctx, actor, d.ID)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateDate(ctx, &d); err != nil {
		return nil, fmt.Errorf("update date: %w", err)
	}
	return &d, nil
}

// DeleteDate removes one of the actor's dates.
func (s *Service) DeleteDate(ctx context.Context, actor Actor, dateID string) error {
	if err := actor.requireConfirmed(); err != nil {
		return err
	}
	if _, err := s.ownedDate(ctx, actor, dateID); err != nil {
		return err
	}
	err := s.store.DeleteDate(ctx, actor.UserID, dateID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundf("date not found")
	}
	if err != nil {
		return fmt.Errorf("delete date: %w", err)
	}
	return nil
}

func (s *Service) ownedDate(ctx context.Context, actor Actor, dateID string) (*store.ImportantDate, error) {
	d, err := s.store.GetDate(ctx, dateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("date not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get date: %w", err)
	}
	if d.OwnerID != actor.UserID {
		return nil, authorizationf("date belongs to another user")
	}
	return d, nil
}

// ListCircleDates returns the dates of everyone in userID's circle.
func (s *Service) ListCircleDates(ctx context.Context, userID string) ([]store.CircleDate, error) {
	dates, err := s.store.ListCircleDates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list circle dates: %w", err)
	}
	return dates, nil
}
