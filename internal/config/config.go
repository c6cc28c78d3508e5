package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "BETHATFRIEND_"

// Config holds all bethatfriend configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mail      MailConfig
	Auth      AuthConfig
	Reminders RemindersConfig
	Redis     RedisConfig
	Log       LogConfig
	Sentry    SentryConfig
}

type ServerConfig struct {
	Bind   string `env:"BIND"`
	Port   int    `env:"PORT"`
	AppURL string `env:"APP_URL"` // public base URL for join links
}

type DatabaseConfig struct {
	Path string `env:"DB_PATH"`
}

type MailConfig struct {
	Provider       string `env:"MAIL_PROVIDER"` // "sendgrid", "log"
	SendGridKey    string `env:"SENDGRID_API_KEY"`
	FromEmail      string `env:"MAIL_FROM"`
	FromName       string `env:"MAIL_FROM_NAME"`
	InviteDelivery string `env:"INVITE_DELIVERY"` // "direct", "mailto"
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"JWT_ISSUER"`
}

type RemindersConfig struct {
	CronSecret        string        `env:"CRON_SECRET"`
	LeapDayPolicy     string        `env:"LEAP_DAY_POLICY"` // "exact", "feb28", "mar1"
	SchedulerEnabled  bool          `env:"SCHEDULER_ENABLED"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL"`
}

type RedisConfig struct {
	URL         string        `env:"REDIS_URL"` // empty means in-process locks
	SendLockTTL time.Duration `env:"SEND_LOCK_TTL"`
}

type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"` // empty disables error reporting
	Environment string `env:"ENVIRONMENT"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"`  // "debug", "info", "warn", "error"
	Format string `env:"LOG_FORMAT"` // "text", "json"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:   "127.0.0.1",
			Port:   8080,
			AppURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Mail: MailConfig{
			Provider:       "log",
			FromEmail:      "hello@bethatfriend.app",
			FromName:       "BeThatFriend",
			InviteDelivery: "direct",
		},
		Auth: AuthConfig{
			Issuer: "bethatfriend",
		},
		Reminders: RemindersConfig{
			LeapDayPolicy:     "exact",
			SchedulerInterval: 24 * time.Hour,
		},
		Redis: RedisConfig{
			SendLockTTL: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sentry: SentryConfig{
			Environment: "development",
		},
	}
}

// Load returns Default() overridden by the given .env files and then by the
// process environment. With no files, ./.env is read when it exists.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	cfg := Default()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot act on.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	switch c.Mail.Provider {
	case "sendgrid", "log":
	default:
		errs = append(errs, fmt.Errorf("unknown mail provider %q", c.Mail.Provider))
	}
	switch c.Mail.InviteDelivery {
	case "direct", "mailto":
	default:
		errs = append(errs, fmt.Errorf("unknown invite delivery %q", c.Mail.InviteDelivery))
	}
	switch c.Reminders.LeapDayPolicy {
	case "", "exact", "feb28", "mar1":
	default:
		errs = append(errs, fmt.Errorf("unknown leap day policy %q", c.Reminders.LeapDayPolicy))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
