// Package trigger is the HTTP client a scheduler uses to kick off the daily
// reminder job on a running server.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bethatfriend/bethatfriend/internal/circle"
)

const (
	// DefaultServerURL matches the default bind address and port.
	DefaultServerURL = "http://127.0.0.1:8080"
	httpTimeout      = 2 * time.Minute
)

// Client talks to the bethatfriend server's cron routes.
type Client struct {
	http      *http.Client
	serverURL string
	secret    string
}

// NewClient creates a trigger client. An empty serverURL uses DefaultServerURL.
func NewClient(serverURL, secret string) *Client {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
		secret:    secret,
	}
}

// RunDailyReminders asks the server to run the daily job for date
// (YYYY-MM-DD). An empty date means the server's today.
func (c *Client) RunDailyReminders(ctx context.Context, date string) (*circle.JobSummary, error) {
	var summary circle.JobSummary
	if err := c.do(ctx, http.MethodPost, "/api/cron/daily-reminders", date, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Reminders fetches the reminders selected for date without sending them.
func (c *Client) Reminders(ctx context.Context, date string) ([]circle.ReminderCandidate, error) {
	var out struct {
		Reminders []circle.ReminderCandidate `json:"reminders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/cron/reminders", date, &out); err != nil {
		return nil, err
	}
	return out.Reminders, nil
}

func (c *Client) do(ctx context.Context, method, path, date string, out any) error {
	u := c.serverURL + path
	if date != "" {
		u += "?" + url.Values{"date": {date}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
