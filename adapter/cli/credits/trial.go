package credits

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

var trialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Start a trial ledger",
	Long: `Grant a time-boxed trial allotment. Accounts already on a trial or
an active subscription are refused.

Examples:
  skinsight credits trial --account acct_123`,
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

		snapshot, err := app.Credits.StartTrial(cmd.Context(), accountID)
		if errors.Is(err, creditsDomain.ErrTrialUnavailable) {
			fmt.Fprintln(cmd.OutOrStdout(), "Trial not available: the account already has an active plan.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to start trial: %w", err)
		}

		printSnapshot(cmd.OutOrStdout(), "Trial ready", snapshot)
		return nil
	},
}
