package circle

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/bethatfriend/bethatfriend/internal/mail"
	"github.com/bethatfriend/bethatfriend/internal/store"
)

// JobSummary reports one run of the daily reminder job.
type JobSummary struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// RunDailyReminders emails every reminder selected for today. Reminders already
// in the delivery ledger for today are skipped, so the job can be rerun safely.
// A failed send is counted and the loop moves on. If ctx is cancelled the
// partial summary is returned with the context error.
func (s *Service) RunDailyReminders(ctx context.Context, today Today) (JobSummary, error) {
	summary := JobSummary{Date: today.String()}
	if today.Year == 0 {
		return summary, validationf("the daily job needs a full date, got %s", today)
	}
	if s.transport == nil {
		return summary, errors.New("no email transport configured")
	}

	candidates, err := s.TodaysReminders(ctx, today)
	if err != nil {
		return summary, err
	}
	summary.Total = len(candidates)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		done, err := s.store.HasDelivery(ctx, summary.Date, c.RecipientID, c.DateID)
		if err != nil {
			return summary, fmt.Errorf("check ledger: %w", err)
		}
		if done {
			summary.Skipped++
			continue
		}

		msg, err := mail.RenderReminder(c.RecipientEmail, mail.ReminderData{
			RecipientName: c.RecipientName,
			FriendName:    c.SubjectName,
			Label:         c.Label,
			AppURL:        s.appURL,
		})
		if err == nil {
			err = s.transport.Send(ctx, msg)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			s.log.Warn("reminder send failed", "recipient_id", c.RecipientID, "date_id", c.DateID, "error", err)
			summary.Failed++
			continue
		}
		summary.Sent++

		if err := s.store.RecordDelivery(ctx, store.Delivery{
			SendDate:    summary.Date,
			RecipientID: c.RecipientID,
			DateID:      c.DateID,
			SubjectID:   c.SubjectID,
		}); err != nil {
			s.log.Error("ledger write failed", "recipient_id", c.RecipientID, "date_id", c.DateID, "error", err)
		}
	}

	s.log.Info("daily reminders processed", "date", summary.Date,
		"total", summary.Total, "sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// VerifyTrigger checks the secret presented by a scheduled trigger. An empty
// configured secret refuses every trigger.
func VerifyTrigger(configured, presented string) error {
	if configured == "" || presented == "" {
		return ErrUnauthorizedTrigger
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return ErrUnauthorizedTrigger
	}
	return nil
}

// StartReminderTimer runs the daily job once now and then every interval
// until Stop is called.
func (s *Service) StartReminderTimer(interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())

	s.timers.Add(1)
	go func() {
		defer s.timers.Done()
		defer cancel()
		go func() {
			select {
			case <-s.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		s.runScheduled(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runScheduled(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Service) runScheduled(ctx context.Context) {
	if _, err := s.RunDailyReminders(ctx, TodayFrom(s.now())); err != nil && ctx.Err() == nil {
		s.log.Error("scheduled reminder run failed", "error", err)
		sentry.CaptureException(err)
	}
}

// Stop halts the reminder timer and waits for a run in progress to return.
// Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.timers.Wait()
}
