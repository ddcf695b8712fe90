package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/vendorguard/internal/auth"
	"github.com/jmerrifield20/vendorguard/internal/bootstrap"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with auth.secret",
		Long: `token signs a bearer token for the vendorguard HTTP API using the
auth.secret from the local configuration (VENDORGUARD_AUTH_SECRET).

  vendorguard token --subject dashboard --scope reports:read`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(newLogger())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ttl") {
				cfg.Auth.TokenTTL = ttl
			}
			tokens, err := bootstrap.NewTokenIssuer(cfg.Auth)
			if err != nil {
				return err
			}
			if tokens == nil {
				return fmt.Errorf("auth.secret is not set; the API runs without authentication")
			}
			for _, s := range scopes {
				if s != auth.ScopeAnalyze && s != auth.ScopeRead {
					return fmt.Errorf("unknown scope %q (want %s or %s)", s, auth.ScopeAnalyze, auth.ScopeRead)
				}
			}

			token, err := tokens.Issue(subject, scopes...)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject (who the token is for)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to grant (default: all)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default auth.token_ttl)")
	return cmd
}
