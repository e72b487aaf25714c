package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/storesync/backend/internal/infrastructure/auth"
)

func (c *cli) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <shop-domain>",
		Short: "Issue a fallback bearer token for the query API",
		Long: `Issue a fallback bearer token for a shop, signed with auth.fallback_secret.
Use it for server-to-server calls where no embedded-app session token exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Auth.FallbackSecret == "" {
				return errors.New("auth.fallback_secret is not configured")
			}
			tokens := auth.NewTokenService(auth.TokenConfig{
				APIKey:         c.cfg.Shopify.APIKey,
				APISecret:      c.cfg.Shopify.APISecret,
				FallbackSecret: c.cfg.Auth.FallbackSecret,
				FallbackIssuer: c.cfg.Auth.FallbackIssuer,
				FallbackTTL:    c.cfg.Auth.FallbackTTL,
				Leeway:         c.cfg.Auth.Leeway,
			})
			token, expiresAt, err := tokens.IssueFallbackToken(args[0], ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"token":      token,
				"token_type": "Bearer",
				"expires_at": expiresAt.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; 0 uses auth.fallback_ttl")
	return cmd
}
