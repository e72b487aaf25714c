// Command syncctl runs sync passes and administers tenants and the schema
// from the command line. run-due is the entry point for an external timer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/app"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/logger"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

// cli carries what the persistent pre-run loads for every subcommand
type cli struct {
	cfg      *config.Config
	log      *zap.Logger
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "storesync operations CLI",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			level := cfg.Log.Level
			if c.logLevel != "" {
				level = c.logLevel
			}
			// stdout is reserved for command output
			log, err := logger.New(logger.Config{Level: level, Format: cfg.Log.Format, Output: "stderr"})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		c.runDueCmd(),
		c.syncTenantCmd(),
		c.tenantCmd(),
		c.migrateCmd(),
		c.tokenCmd(),
	)
	return root
}

// withApp builds the full container for the duration of fn
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) (err error) {
	a, err := app.New(ctx, c.cfg, Version, c.log)
	if err != nil {
		return err
	}
	defer func() {
		// background runs must not outlive the process unnoticed
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
