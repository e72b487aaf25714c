package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/app"
	"github.com/storesync/backend/internal/application/ingestion"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

func (c *cli) runDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-due",
		Short: "Run one sync pass over every tenant whose trigger window is open",
		Long: `Run one sync pass over every connected tenant whose local trigger window
is open and that has not run in the current occurrence. Tenants already
held by another run are skipped. The summary is printed as JSON.

Exits non-zero only when the tenant list cannot be read; per-tenant
failures are reported in the summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				summary, err := a.Scheduler.RunDue(cmd.Context())
				if err != nil {
					return err
				}
				c.log.Info("Due pass finished",
					zap.Int("due", summary.Due),
					zap.Int("completed", summary.Completed),
					zap.Int("degraded", summary.Degraded),
					zap.Int("failed", summary.Failed),
					zap.Int("skipped", summary.Skipped),
				)
				return printJSON(cmd.OutOrStdout(), dto.NewDueRunSummaryResponse(summary))
			})
		},
	}
}

func (c *cli) syncTenantCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sync-tenant <shop-domain>",
		Short:   "Run a delta sync for one tenant now, ignoring its trigger window",
		Example: "  syncctl sync-tenant acme.myshopify.com",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				tenant, err := a.Tenants.GetByDomain(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("resolve %s: %w", args[0], err)
				}
				if !tenant.IsConnected() {
					return fmt.Errorf("%s: %w", tenant.Domain, integration.ErrTenantDisconnected)
				}
				result, err := a.Sync.RunTenant(cmd.Context(), tenant.ID)
				if ingestion.IsSkip(err) {
					c.log.Warn("Tenant not run", zap.String("shop_domain", tenant.Domain), zap.Error(err))
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewRunResultResponse(*result))
			})
		},
	}
}
