package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bethatfriend/bethatfriend/internal/circle"
)

func cronServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized trigger"})
			return
		}
		switch r.URL.Path {
		case "/api/cron/daily-reminders":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			json.NewEncoder(w).Encode(circle.JobSummary{Date: r.URL.Query().Get("date"), Total: 3, Sent: 2, Failed: 1})
		case "/api/cron/reminders":
			json.NewEncoder(w).Encode(map[string]any{
				"reminders": []circle.ReminderCandidate{{RecipientID: "sam", SubjectID: "alex", Label: "Birthday"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunDailyReminders(t *testing.T) {
	ts := cronServer(t)
	c := NewClient(ts.URL+"/", "s3cret")

	summary, err := c.RunDailyReminders(context.Background(), "2025-07-04")
	if err != nil {
		t.Fatalf("RunDailyReminders: %v", err)
	}
	want := circle.JobSummary{Date: "2025-07-04", Total: 3, Sent: 2, Failed: 1}
	if *summary != want {
		t.Errorf("summary = %+v, want %+v", *summary, want)
	}
}

func TestRunDailyRemindersUnauthorized(t *testing.T) {
	ts := cronServer(t)
	c := NewClient(ts.URL, "wrong")

	_, err := c.RunDailyReminders(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("err = %v, want status 401", err)
	}
}

func TestReminders(t *testing.T) {
	ts := cronServer(t)
	c := NewClient(ts.URL, "s3cret")

	got, err := c.Reminders(context.Background(), "2025-07-04")
	if err != nil {
		t.Fatalf("Reminders: %v", err)
	}
	if len(got) != 1 || got[0].RecipientID != "sam" {
		t.Errorf("reminders = %+v", got)
	}
}

func TestHealthy(t *testing.T) {
	ts := cronServer(t)
	if !NewClient(ts.URL, "").Healthy(context.Background()) {
		t.Error("Healthy = false, want true")
	}
	if NewClient("http://127.0.0.1:1", "").Healthy(context.Background()) {
		t.Error("Healthy = true for unreachable server")
	}
	if c := NewClient("", ""); c.serverURL != DefaultServerURL {
		t.Errorf("serverURL = %q, want default", c.serverURL)
	}
}
