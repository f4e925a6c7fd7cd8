package cli

import (
	"github.com/spf13/cobra"

	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/server"
)

type serveOptions struct {
	addr    string
	refresh bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Long: `Serve exposes summaries, counts and cache statistics over HTTP.

Endpoints:
  GET /healthz
  GET /v1/accounts
  GET /v1/accounts/{accountID}/summary?entity=items_created&hours=24
  GET /v1/accounts/{accountID}/count?entity=items_created&start=...&end=...
  GET /v1/cache/stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			cfg := mgr.Config()
			addr := cfg.ListenAddr
			if cmd.Flags().Changed("addr") {
				addr = opts.addr
			}

			ctx := cmd.Context()
			if opts.refresh {
				logger.Info("starting background refresh", "interval", cfg.RefreshInterval.String())
				mgr.StartRefresh(ctx, cfg.RefreshInterval, cfg.SummaryHours)
			}

			return server.New(mgr, addr, cfg.SummaryHours).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default: PLEXUS_LISTEN_ADDR)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", true, "keep tracked accounts' summaries warm in the background")
	return cmd
}
