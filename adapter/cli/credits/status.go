package credits

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show remaining credits",
	Long: `Show the account's available, used and total analysis credits.

Examples:
  skinsight credits status
  skinsight credits status --account acct_123`,
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

		snapshot, err := app.Credits.CurrentCredits(cmd.Context(), accountID)
		if errors.Is(err, creditsDomain.ErrNoSubscription) {
			fmt.Fprintln(cmd.OutOrStdout(), "No active subscription. Start a trial with: skinsight credits trial")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load credits: %w", err)
		}

		printSnapshot(cmd.OutOrStdout(), "Credits", snapshot)
		return nil
	},
}
