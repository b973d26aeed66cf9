package credits

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the used count with recorded analyses",
	Long: `Recount the analyses recorded in the current billing period and
correct the ledger's used count. The cached snapshot is refreshed.

Examples:
  skinsight credits sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Credits == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Credit commands require database connection.")
			return nil
		}

		accountID, err := app.CurrentAccount()
		if err != nil {
			return err
		}

		snapshot, err := app.Credits.Sync(cmd.Context(), accountID)
		if err != nil {
			return fmt.Errorf("failed to sync credits: %w", err)
		}

		printSnapshot(cmd.OutOrStdout(), "Credits synced", snapshot)
		return nil
	},
}
