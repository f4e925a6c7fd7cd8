package cli

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/plexus-ai/plexus-metrics/internal/app"
	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/models"
)

type watchOptions struct {
	entity  string
	logFile string
	hours   int
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live dashboard",
		Long: `Watch opens a terminal dashboard with the hourly counts of the tracked
accounts. Logs go to a file while the dashboard owns the terminal.

Keys:
  tab        switch entity
  j/k        switch account
  r          refresh
  ?          toggle help
  q, Ctrl+C  quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.entity, "entity", "e", models.ItemsCreated.String(), "entity shown first")
	cmd.Flags().IntVar(&opts.hours, "hours", 0, "number of trailing hours (default: PLEXUS_SUMMARY_HOURS)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", filepath.Join(os.TempDir(), "plexus-metrics.log"), "where to write logs while the dashboard runs")
	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, opts *watchOptions) error {
	selector, err := models.ParseEntitySelector(opts.entity)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	root.logOut = f

	mgr, err := root.openManager()
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	ctx := cmd.Context()
	cfg := mgr.Config()

	// Track the configured account so the dashboard has something to show.
	if len(mgr.Accounts()) == 0 && cfg.AccountKey != "" {
		if _, err := mgr.AddAccount(ctx, models.Account{Key: cfg.AccountKey}); err != nil {
			return fmt.Errorf("failed to track %s: %w", cfg.AccountKey, err)
		}
	}

	hours := opts.hours
	if hours <= 0 {
		hours = cfg.SummaryHours
	}

	model := app.NewModel(ctx, mgr, app.Options{
		Hours:           hours,
		RefreshInterval: cfg.RefreshInterval,
		Selector:        selector,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	logger.Info("dashboard started", "accounts", len(mgr.Accounts()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
