package circle

import (
	"context"
	"fmt"
	"sort"

	"github.com/bethatfriend/bethatfriend/internal/store"
)

// ReminderCandidate is one email to send today: Recipient is told that
// Subject's date falls today.
type ReminderCandidate struct {
	RecipientID    string `json:"recipient_id"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	SubjectID      string `json:"subject_id"`
	SubjectName    string `json:"subject_name"`
	DateID         string `json:"date_id"`
	Label          string `json:"label"`
	Month          int    `json:"month"`
	Day            int    `json:"day"`
}

// Snapshot is the state reminder selection runs over. Users must contain
// every party referenced by Connections that should be considered.
type Snapshot struct {
	Connections []store.Connection
	Dates       []store.ImportantDate
	Users       map[string]store.User
}

type reminderKey struct {
	recipient, subject, date string
}

// SelectReminders decides who hears about what today. For every confirmed
// pair, each party's dates that fall today produce a candidate for the other
// party, provided the other party has opted in to email. A (recipient,
// subject, date) triple appears at most once.
func SelectReminders(today Today, snap Snapshot, policy LeapDayPolicy) []ReminderCandidate {
	fires := make(map[store.MonthDay]bool)
	for _, md := range policy.matchingDays(today) {
		fires[md] = true
	}

	byOwner := make(map[string][]store.ImportantDate)
	for _, d := range snap.Dates {
		if fires[store.MonthDay{Month: d.Month, Day: d.Day}] {
			byOwner[d.OwnerID] = append(byOwner[d.OwnerID], d)
		}
	}

	seen := make(map[reminderKey]bool)
	var out []ReminderCandidate
	add := func(recipientID, subjectID string) {
		dates := byOwner[subjectID]
		if len(dates) == 0 {
			return
		}
		recipient, ok := snap.Users[recipientID]
		if !ok || !recipient.EmailOptedIn {
			return
		}
		subject, ok := snap.Users[subjectID]
		if !ok {
			return
		}
		for _, d := range dates {
			k := reminderKey{recipientID, subjectID, d.ID}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, ReminderCandidate{
				RecipientID:    recipient.ID,
				RecipientEmail: recipient.Email,
				RecipientName:  recipient.Name,
				SubjectID:      subject.ID,
				SubjectName:    subject.Name,
				DateID:         d.ID,
				Label:          d.Label,
				Month:          d.Month,
				Day:            d.Day,
			})
		}
	}

	for _, c := range snap.Connections {
		if c.Status != store.ConnectionConfirmed || c.UserAID == c.UserBID {
			continue
		}
		add(c.UserBID, c.UserAID)
		add(c.UserAID, c.UserBID)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RecipientID != b.RecipientID {
			return a.RecipientID < b.RecipientID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.DateID < b.DateID
	})
	return out
}

// TodaysReminders loads the relevant slice of the store and selects today's
// reminders from it.
func (s *Service) TodaysReminders(ctx context.Context, today Today) ([]ReminderCandidate, error) {
	snap, err := s.loadSnapshot(ctx, today)
	if err != nil {
		return nil, err
	}
	return SelectReminders(today, snap, s.leapDay), nil
}

func (s *Service) loadSnapshot(ctx context.Context, today Today) (Snapshot, error) {
	dates, err := s.store.ListDatesOn(ctx, s.leapDay.matchingDays(today))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load dates: %w", err)
	}
	if len(dates) == 0 {
		return Snapshot{}, nil
	}

	owners := uniqueIDs(len(dates), func(add func(string)) {
		for _, d := range dates {
			add(d.OwnerID)
		}
	})
	conns, err := s.store.ListConfirmedConnectionsTouching(ctx, owners)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load connections: %w", err)
	}

	involved := uniqueIDs(len(conns)*2, func(add func(string)) {
		for _, c := range conns {
			add(c.UserAID)
			add(c.UserBID)
		}
	})
	users, err := s.store.ListUsers(ctx, involved)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load users: %w", err)
	}
	return Snapshot{Connections: conns, Dates: dates, Users: users}, nil
}

func uniqueIDs(capacity int, each func(add func(string))) []string {
	seen := make(map[string]bool, capacity)
	ids := make([]string, 0, capacity)
	each(func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	})
	return ids
}
