package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	analysisApp "github.com/felixgeelhaar/skinsight/internal/analysis/application"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

var beginImageRef string

var beginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Begin an analysis",
	Long: `Check that the account has an active plan with credits left and record
a new analysis.
No credit is charged until the analysis is completed.

Examples:
  skinsight analysis begin
  skinsight analysis begin --image uploads/face-123.jpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Analysis == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Analysis commands require database connection.")
			return nil
		}

		accountID, err := app.CurrentAccount()
		if err != nil {
			return err
		}

		analysisID, err := app.Analysis.BeginAnalysis(cmd.Context(), analysisApp.BeginAnalysisCommand{
			AccountID: accountID,
			ImageRef:  beginImageRef,
		})
		if errors.Is(err, creditsDomain.ErrInsufficientCredits) {
			return fmt.Errorf("no credits left for %s", accountID)
		}
		if errors.Is(err, creditsDomain.ErrSubscriptionInactive) {
			return fmt.Errorf("subscription for %s is not active", accountID)
		}
		if err != nil {
			return fmt.Errorf("failed to begin analysis: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Analysis started")
		fmt.Fprintln(out, strings.Repeat("-", 40))
		fmt.Fprintf(out, "  Analysis ID: %s\n", analysisID)
		return nil
	},
}

func init() {
	beginCmd.Flags().StringVar(&beginImageRef, "image", "", "reference to the uploaded image")
}
