package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the bucket cache",
	}
	cmd.AddCommand(
		newCacheStatsCmd(root),
		newCachePruneCmd(root),
		newCacheClearCmd(root),
	)
	return cmd
}

func newCacheStatsCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			stats, err := mgr.CacheStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, stats)
			}
			fmt.Fprintf(out, "path:    %s\n", stats.Path)
			fmt.Fprintf(out, "entries: %d\n", stats.Entries)
			if !stats.Oldest.IsZero() {
				fmt.Fprintf(out, "oldest:  %s\n", stats.Oldest.Format(time.RFC3339))
				fmt.Fprintf(out, "newest:  %s\n", stats.Newest.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func newCachePruneCmd(root *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cache entries written before a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			n, err := mgr.PruneCache(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "remove entries written longer ago than this")
	return cmd
}

func newCacheClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			n, err := mgr.ClearCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
			return nil
		},
	}
}
