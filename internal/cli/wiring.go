package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/bethatfriend/bethatfriend/internal/circle"
	"github.com/bethatfriend/bethatfriend/internal/config"
	"github.com/bethatfriend/bethatfriend/internal/lock"
	"github.com/bethatfriend/bethatfriend/internal/logging"
	"github.com/bethatfriend/bethatfriend/internal/mail"
	"github.com/bethatfriend/bethatfriend/internal/store"
)

// app bundles what every command that touches the database needs.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	db     *store.DB
	svc    *circle.Service
	closer []io.Closer
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openDB(cfg config.Config) (*store.DB, string, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return db, dbPath, nil
}

// newApp loads configuration, opens the database and builds the service with
// its mail transport and send locker.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, dbPath, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger, db: db, closer: []io.Closer{db}}
	logger.Info("database ready", "path", dbPath)

	transport, err := mail.NewTransport(cfg.Mail, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("mail transport: %w", err)
	}

	var delivery circle.InviteDelivery = circle.DirectDelivery{Transport: transport}
	if cfg.Mail.InviteDelivery == "mailto" {
		delivery = circle.MailtoDelivery{}
	}

	var locker lock.Locker = lock.NewMemory()
	if cfg.Redis.URL != "" {
		r, err := lock.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closer = append(a.closer, r)
		locker = r
		logger.Info("using redis send locks")
	}

	leapDay, err := circle.ParseLeapDayPolicy(cfg.Reminders.LeapDayPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc = circle.New(db, circle.Options{
		AppURL:      cfg.Server.AppURL,
		Delivery:    delivery,
		Transport:   transport,
		Locker:      locker,
		SendLockTTL: cfg.Redis.SendLockTTL,
		LeapDay:     leapDay,
		Logger:      logger,
	})
	logger.Info("mail configured", "provider", cfg.Mail.Provider, "invite_delivery", cfg.Mail.InviteDelivery)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closer) - 1; i >= 0; i-- {
		if err := a.closer[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// initSentry turns on error reporting when a DSN is configured. The returned
// func flushes buffered events and is safe to call either way.
func initSentry(cfg config.SentryConfig, logger *slog.Logger) func() {
	if cfg.DSN == "" {
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     "bethatfriend@" + Version,
	})
	if err != nil {
		logger.Error("sentry init failed", "error", err)
		return func() {}
	}
	logger.Info("error reporting enabled", "environment", cfg.Environment)
	return func() { sentry.Flush(2 * time.Second) }
}

func commandContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}
