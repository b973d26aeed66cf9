package webhook

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
)

var testURL string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test payload to the endpoint",
	Long: `Post a test body to --url, or to the saved URL, and record the
outcome on the configuration.

Examples:
  skinsight webhook test
  skinsight webhook test --url https://crm.example.com/hooks/leads`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Webhooks == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Webhook commands require database connection.")
			return nil
		}

		accountID, err := app.CurrentAccount()
		if err != nil {
			return err
		}

		result, err := app.Webhooks.TestEndpoint(cmd.Context(), accountID, testURL)
		if err != nil {
			return fmt.Errorf("failed to test webhook: %w", err)
		}

		out := cmd.OutOrStdout()
		if result.Success {
			fmt.Fprintf(out, "Test delivered (HTTP %d) at %s\n", result.StatusCode, result.TestedAt.Format(time.RFC3339))
			return nil
		}
		fmt.Fprintf(out, "Test failed at %s\n", result.TestedAt.Format(time.RFC3339))
		if result.StatusCode != 0 {
			fmt.Fprintf(out, "  Status: %d\n", result.StatusCode)
		}
		if result.Error != "" {
			fmt.Fprintf(out, "  Error:  %s\n", result.Error)
		}
		return nil
	},
}

func init() {
	testCmd.Flags().StringVar(&testURL, "url", "", "endpoint to test instead of the saved URL")
}
