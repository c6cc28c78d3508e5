package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bethatfriend/bethatfriend/internal/auth"
	"github.com/bethatfriend/bethatfriend/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.log
	defer initSentry(cfg.Sentry, logger)()

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("auth: %w (set BETHATFRIEND_JWT_SECRET)", err)
	}
	if cfg.Reminders.CronSecret == "" {
		logger.Warn("BETHATFRIEND_CRON_SECRET is not set; scheduled trigger routes will refuse every call")
	}

	if cfg.Reminders.SchedulerEnabled {
		a.svc.StartReminderTimer(cfg.Reminders.SchedulerInterval)
		defer a.svc.Stop()
		logger.Info("reminder scheduler started", "interval", cfg.Reminders.SchedulerInterval)
	}

	srv := server.New(a.db, a.svc, verifier, server.Options{
		Version:    VersionString(),
		CronSecret: cfg.Reminders.CronSecret,
		Logger:     logger,
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bethatfriend serving", "addr", addr, "app_url", cfg.Server.AppURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
