package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

func newAccountsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage tracked accounts",
	}
	cmd.AddCommand(
		newAccountsListCmd(root),
		newAccountsAddCmd(root),
		newAccountsRemoveCmd(root),
		newAccountsUseCmd(root),
	)
	return cmd
}

func newAccountsListCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			accounts := mgr.Accounts()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{"accounts": accounts})
			}
			if len(accounts) == 0 {
				fmt.Fprintln(out, "No accounts tracked. Add one with: plexus-metrics accounts add <key>")
				return nil
			}

			activeID := ""
			if active := mgr.ActiveAccount(); active != nil {
				activeID = active.ID
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tKEY\tNAME")
			for _, acc := range accounts {
				marker := ""
				if acc.ID == activeID {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, acc.ID, acc.Key, acc.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func newAccountsAddCmd(root *rootOptions) *cobra.Command {
	var id, name string

	cmd := &cobra.Command{
		Use:   "add <key>",
		Short: "Track an account by key",
		Long: `Add resolves an account key to its id through the API and tracks it.
Pass --id to skip the lookup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			acc, err := mgr.AddAccount(cmd.Context(), models.Account{Key: args[0], ID: id, Name: name})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s (%s)\n", acc.DisplayName(), acc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "account id, when already known")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newAccountsRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id-or-key>",
		Aliases: []string{"rm"},
		Short:   "Stop tracking an account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			if err := mgr.RemoveAccount(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newAccountsUseCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id-or-key>",
		Short: "Set the default account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			if err := mgr.SetActiveAccount(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active account: %s\n", args[0])
			return nil
		},
	}
}
