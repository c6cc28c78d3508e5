// Package mail delivers outbound email through a pluggable transport.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bethatfriend/bethatfriend/internal/config"
)

// Message is a single outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Transport is the interface for email providers.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// NewTransport creates a transport based on the config provider setting.
func NewTransport(cfg config.MailConfig, logger *slog.Logger) (Transport, error) {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendGridKey == "" {
			return nil, fmt.Errorf("sendgrid provider requires BETHATFRIEND_SENDGRID_API_KEY")
		}
		if cfg.FromEmail == "" {
			return nil, fmt.Errorf("sendgrid provider requires a from address")
		}
		return NewSendGrid(cfg.SendGridKey, cfg.FromEmail, cfg.FromName), nil
	case "log", "":
		if logger == nil {
			logger = slog.Default()
		}
		return &LogTransport{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider: %q", cfg.Provider)
	}
}

// LogTransport writes messages to the log instead of sending them. Useful in
// development.
type LogTransport struct {
	Logger *slog.Logger
}

// Send logs msg.
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.Logger.InfoContext(ctx, "email", "to", msg.To, "subject", msg.Subject)
	return nil
}
