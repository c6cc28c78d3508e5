package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/bethatfriend/bethatfriend/internal/circle"
	"github.com/bethatfriend/bethatfriend/internal/config"
	"github.com/bethatfriend/bethatfriend/internal/trigger"
)

var (
	remindDate   string
	remindURL    string
	remindSecret string
	remindDryRun bool
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run the daily reminder job",
	Long: "Selects today's reminders and emails them. With --url the job runs on a remote " +
		"server through its cron route; otherwise it runs against the local database. " +
		"Reminders already delivered today are skipped, so reruns are safe.",
	RunE: runRemind,
}

func init() {
	remindCmd.Flags().StringVar(&remindDate, "date", "", "day to run for (YYYY-MM-DD, default today)")
	remindCmd.Flags().StringVar(&remindURL, "url", "", "trigger the job on this server instead of locally")
	remindCmd.Flags().StringVar(&remindSecret, "secret", "", "cron secret for --url (default BETHATFRIEND_CRON_SECRET)")
	remindCmd.Flags().BoolVar(&remindDryRun, "dry-run", false, "list the reminders without sending")
}

func runRemind(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context(), 10*time.Minute)
	defer cancel()

	if remindURL != "" {
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return err
		}
		secret := remindSecret
		if secret == "" {
			secret = cfg.Reminders.CronSecret
		}
		client := trigger.NewClient(remindURL, secret)
		if !client.Healthy(ctx) {
			return fmt.Errorf("server unreachable at %s", remindURL)
		}
		if remindDryRun {
			reminders, err := client.Reminders(ctx, remindDate)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"reminders": reminders})
		}
		summary, err := client.RunDailyReminders(ctx, remindDate)
		if err != nil {
			return err
		}
		return printJSON(cmd, summary)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	defer initSentry(a.cfg.Sentry, a.log)()

	today := circle.TodayFrom(time.Now())
	if remindDate != "" {
		if today, err = circle.ParseToday(remindDate); err != nil {
			return err
		}
	}

	if remindDryRun {
		reminders, err := a.svc.TodaysReminders(ctx, today)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"date": today.String(), "reminders": reminders})
	}

	summary, err := a.svc.RunDailyReminders(ctx, today)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	return printJSON(cmd, summary)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
