package circle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bethatfriend/bethatfriend/internal/mail"
)

// jobFixture connects alex with sam and kim, all opted in, and gives alex a
// birthday on July 4.
func jobFixture(t *testing.T, transport *mail.MockTransport) *Service {
	t.Helper()
	svc, _ := testService(t, Options{Transport: transport})
	for _, id := range []string{"alex", "sam", "kim"} {
		mustProfile(t, svc, id, id)
		if _, err := svc.UpdateOptIn(ctx, member(id), true); err != nil {
			t.Fatalf("UpdateOptIn: %v", err)
		}
	}
	if _, err := svc.ReplaceDates(ctx, member("alex"), []DateInput{{Label: "Birthday", Month: 7, Day: 4}}); err != nil {
		t.Fatalf("ReplaceDates: %v", err)
	}
	svc.AutoConfirm(ctx, "alex", "sam")
	svc.AutoConfirm(ctx, "kim", "alex")
	return svc
}

var july4 = Today{Year: 2025, Month: 7, Day: 4}

func TestRunDailyReminders(t *testing.T) {
	transport := &mail.MockTransport{}
	svc := jobFixture(t, transport)

	summary, err := svc.RunDailyReminders(ctx, july4)
	if err != nil {
		t.Fatalf("RunDailyReminders: %v", err)
	}
	want := JobSummary{Date: "2025-07-04", Total: 2, Sent: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	msgs := transport.Messages()
	if len(msgs) != 2 {
		t.Fatalf("sent %d emails, want 2", len(msgs))
	}
	if msgs[0].Subject != "Don't forget — alex's Birthday is today!" {
		t.Errorf("subject = %q", msgs[0].Subject)
	}

	again, err := svc.RunDailyReminders(ctx, july4)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Sent != 0 || again.Skipped != 2 {
		t.Errorf("second run = %+v, want everything skipped", again)
	}
	if len(transport.Messages()) != 2 {
		t.Error("second run re-sent reminders")
	}

	nextYear, _ := svc.RunDailyReminders(ctx, Today{Year: 2026, Month: 7, Day: 4})
	if nextYear.Sent != 2 {
		t.Errorf("next year sent %d, want 2", nextYear.Sent)
	}
}

func TestRunDailyRemindersAfterDatesResaved(t *testing.T) {
	transport := &mail.MockTransport{}
	svc := jobFixture(t, transport)

	if _, err := svc.RunDailyReminders(ctx, july4); err != nil {
		t.Fatalf("RunDailyReminders: %v", err)
	}
	// Saving the same set again must not make today's reminders look new.
	if _, err := svc.ReplaceDates(ctx, member("alex"), []DateInput{{Label: "Birthday", Month: 7, Day: 4}}); err != nil {
		t.Fatalf("ReplaceDates: %v", err)
	}

	again, err := svc.RunDailyReminders(ctx, july4)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Sent != 0 || again.Skipped != 2 {
		t.Errorf("second run = %+v, want 0 sent 2 skipped", again)
	}
	if n := len(transport.Messages()); n != 2 {
		t.Errorf("sent %d emails in total, want 2", n)
	}
}

func TestRunDailyRemindersContinuesAfterFailure(t *testing.T) {
	transport := &mail.MockTransport{FailFor: map[string]error{"kim@example.com": errors.New("mailbox full")}}
	svc := jobFixture(t, transport)

	summary, err := svc.RunDailyReminders(ctx, july4)
	if err != nil {
		t.Fatalf("RunDailyReminders: %v", err)
	}
	if summary.Total != 2 || summary.Sent != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 sent 1 failed", summary)
	}

	// The failed reminder was not recorded, so a retry picks it up.
	delete(transport.FailFor, "kim@example.com")
	retry, _ := svc.RunDailyReminders(ctx, july4)
	if retry.Sent != 1 || retry.Skipped != 1 {
		t.Errorf("retry = %+v, want 1 sent 1 skipped", retry)
	}
}

func TestRunDailyRemindersCancelled(t *testing.T) {
	svc := jobFixture(t, &mail.MockTransport{})
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err := svc.RunDailyReminders(cancelled, july4)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunDailyRemindersNeedsYearAndTransport(t *testing.T) {
	svc := jobFixture(t, &mail.MockTransport{})
	_, err := svc.RunDailyReminders(ctx, Today{Month: 7, Day: 4})
	wantKind(t, err, KindValidation)

	bare, _ := testService(t, Options{})
	if _, err := bare.RunDailyReminders(ctx, july4); err == nil {
		t.Error("run without a transport should fail")
	}
}

func TestVerifyTrigger(t *testing.T) {
	tests := []struct {
		configured, presented string
		ok                    bool
	}{
		{"s3cret", "s3cret", true},
		{"s3cret", "wrong", false},
		{"s3cret", "", false},
		{"", "", false},
		{"", "anything", false},
	}
	for _, tt := range tests {
		err := VerifyTrigger(tt.configured, tt.presented)
		if (err == nil) != tt.ok {
			t.Errorf("VerifyTrigger(%q, %q) = %v, want ok=%v", tt.configured, tt.presented, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrUnauthorizedTrigger) {
			t.Errorf("err = %v, want ErrUnauthorizedTrigger", err)
		}
	}
}

func TestReminderTimer(t *testing.T) {
	transport := &mail.MockTransport{}
	svc := jobFixture(t, transport)
	svc.now = fixedClock(time.Date(2025, 7, 4, 8, 0, 0, 0, time.UTC))

	svc.StartReminderTimer(time.Hour)
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(transport.Messages()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timer sent %d emails, want 2", len(transport.Messages()))
		}
		time.Sleep(10 * time.Millisecond)
	}
	svc.Stop()
	svc.Stop()
}

// stallingTransport blocks every send until its context ends, then takes a
// moment more before returning.
type stallingTransport struct {
	started  chan struct{}
	once     sync.Once
	returned atomic.Bool
}

func (s *stallingTransport) Send(ctx context.Context, _ mail.Message) error {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	s.returned.Store(true)
	return ctx.Err()
}

func TestStopWaitsForRunningJob(t *testing.T) {
	transport := &stallingTransport{started: make(chan struct{})}
	svc, _ := testService(t, Options{Transport: transport})
	for _, id := range []string{"alex", "sam"} {
		mustProfile(t, svc, id, id)
		svc.UpdateOptIn(ctx, member(id), true)
	}
	svc.ReplaceDates(ctx, member("alex"), []DateInput{{Label: "Birthday", Month: 7, Day: 4}})
	svc.AutoConfirm(ctx, "alex", "sam")

	svc.now = fixedClock(time.Date(2025, 7, 4, 8, 0, 0, 0, time.UTC))

	svc.StartReminderTimer(time.Hour)
	select {
	case <-transport.started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled run never reached the transport")
	}

	svc.Stop()
	if !transport.returned.Load() {
		t.Error("Stop returned while a send was still in flight")
	}
}
