package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/troikatech/agent-console/pkg/auth"
)

func newIssueTokenCmd(rt *runtime, envFile *string) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token <user_id>",
		Short: "Sign a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.loadConfig(*envFile)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set, bearer auth is disabled")
			}
			if ttl <= 0 {
				ttl = cfg.AccessTTL()
			}

			token, expiresAt, err := auth.GenerateAccessToken(args[0], email, cfg.JWTSecret, cfg.JWTIssuer, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default ACCESS_TTL_MIN)")
	return cmd
}
