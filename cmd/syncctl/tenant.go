package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storesync/backend/internal/app"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// credentialEnv lets the access token stay out of shell history
const credentialEnv = "STORESYNC_TENANT_TOKEN"

func (c *cli) tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Register and disconnect tenants",
	}
	cmd.AddCommand(c.tenantConnectCmd(), c.tenantDisconnectCmd(), c.tenantStatusCmd())
	return cmd
}

func (c *cli) tenantConnectCmd() *cobra.Command {
	var token, timezone string
	cmd := &cobra.Command{
		Use:   "connect <shop-domain>",
		Short: "Register a tenant or reconnect it with a fresh access token",
		Example: `  STORESYNC_TENANT_TOKEN=shpat_... syncctl tenant connect acme.myshopify.com --timezone Europe/Berlin
  syncctl tenant connect acme --token shpat_...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv(credentialEnv)
			}
			if token == "" {
				return errors.New("an access token is required (--token or " + credentialEnv + ")")
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				tenant, err := a.Tenants.Connect(cmd.Context(), args[0], token, timezone)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewSyncStatusResponse(tenant))
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Admin API access token (default $"+credentialEnv+")")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA time zone of the shop; empty keeps the stored one or UTC")
	return cmd
}

func (c *cli) tenantDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <shop-domain>",
		Short: "Clear the tenant credential and stop scheduling it; synced data is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				tenant, err := a.Tenants.GetByDomain(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("resolve %s: %w", args[0], err)
				}
				tenant, err = a.Tenants.Disconnect(cmd.Context(), tenant.ID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.DisconnectResponse{
					TenantID:       tenant.ID,
					Domain:         tenant.Domain,
					DisconnectedAt: tenant.DisconnectedAt,
				})
			})
		},
	}
}

func (c *cli) tenantStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <shop-domain>",
		Short: "Show the sync status of a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				tenant, err := a.Tenants.GetByDomain(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("resolve %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), dto.NewSyncStatusResponse(tenant))
			})
		},
	}
}
