package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stardylog/backend/internal/auth"
)

func newTokenCommand(opts *globalOptions) *cobra.Command {
	var (
		uid      string
		email    string
		provider string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with JWT_SECRET",
		Long: `Print a bearer token the server accepts when FIREBASE_PROJECT_ID is unset.

Examples:
  server token --uid dev-user
  curl -H "Authorization: Bearer $(server token --uid dev-user)" localhost:8080/me`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.FirebaseProjectID != "" {
				logger.Warn("FIREBASE_PROJECT_ID is set; the server will not accept locally signed tokens")
			}

			v, err := auth.NewLocalVerifier(cfg.JWTSecret)
			if err != nil {
				return err
			}

			claims := auth.VerifiedClaims{Subject: uid}
			if email != "" {
				claims.Email = &email
			}
			if provider != "" {
				claims.Provider = &provider
			}
			token, err := v.Issue(claims, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "Subject identifier (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&provider, "provider", "password", "Sign-in provider claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	cmd.MarkFlagRequired("uid")

	return cmd
}
