// Package cli provides the command-line interface for plexus-metrics.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexus-ai/plexus-metrics/internal/config"
	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/services"
)

// rootOptions carries global flags and test hooks shared by subcommands.
type rootOptions struct {
	logOut      io.Writer
	envFiles    []string
	managerOpts []services.Option
	verbose     bool
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plexus-metrics",
		Short: "Hourly activity metrics for Plexus accounts",
		Long: `Plexus Metrics counts items and score results for a Plexus account
over clock-aligned windows, caches completed buckets in SQLite and
presents the trailing hours as a summary.

Configuration comes from the environment or a .env file:
  PLEXUS_API_URL, PLEXUS_API_KEY   GraphQL endpoint and key (required)
  PLEXUS_ACCOUNT_KEY               default account key
  PLEXUS_CACHE_PATH                SQLite cache location`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.logOut == nil {
				opts.logOut = cmd.ErrOrStderr()
			}
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger.Configure(opts.logOut, level, "text")
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "load configuration from this .env file (repeatable)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newSummaryCmd(opts),
		newCountCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newAccountsCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads configuration and applies its log settings. --verbose
// always wins over PLEXUS_LOG_LEVEL.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.envFiles...)
	if err != nil {
		return nil, err
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if o.verbose {
		level = slog.LevelDebug
	}
	out := o.logOut
	if out == nil {
		out = os.Stderr
	}
	logger.Configure(out, level, cfg.LogFormat)
	return cfg, nil
}

// openManager loads configuration and builds a service manager. The caller
// must close it.
func (o *rootOptions) openManager() (*services.Manager, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	mgr, err := services.NewManager(cfg, o.managerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return mgr, nil
}

func closeManager(mgr *services.Manager) {
	if err := mgr.Close(); err != nil {
		logger.Warn("error closing services", "error", err)
	}
}

// resolveAccount returns the account named by the flag, or the default one.
func resolveAccount(ctx context.Context, mgr *services.Manager, idOrKey string) (*models.Account, error) {
	if idOrKey != "" {
		return mgr.ResolveAccount(ctx, idOrKey)
	}
	return mgr.DefaultAccount(ctx)
}
