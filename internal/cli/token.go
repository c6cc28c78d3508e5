package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bethatfriend/bethatfriend/internal/auth"
	"github.com/bethatfriend/bethatfriend/internal/circle"
	"github.com/bethatfriend/bethatfriend/internal/config"
)

var (
	tokenUser       string
	tokenEmail      string
	tokenUnverified bool
	tokenTTL        time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token",
	Long: "Signs a token with BETHATFRIEND_JWT_SECRET, standing in for the identity provider " +
		"when exercising the API locally.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == "" || tokenEmail == "" {
			return fmt.Errorf("--user and --email are required")
		}
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return err
		}
		v, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		tok, err := v.Issue(circle.Actor{
			UserID:         tokenUser,
			Email:          tokenEmail,
			EmailConfirmed: !tokenUnverified,
		}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (token subject)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email address")
	tokenCmd.Flags().BoolVar(&tokenUnverified, "unverified", false, "mark the email as not yet confirmed")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
