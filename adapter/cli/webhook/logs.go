package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	webhooksApp "github.com/felixgeelhaar/skinsight/internal/webhooks/application"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent delivery attempts",
	Long: `Show the newest webhook delivery log entries.

Examples:
  skinsight webhook logs
  skinsight webhook logs --limit 50`,
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

		entries, err := app.Webhooks.RecentLogs(cmd.Context(), accountID, logsLimit)
		if err != nil {
			return fmt.Errorf("failed to load webhook logs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No deliveries logged.")
			return nil
		}

		fmt.Fprintf(out, "Deliveries (%d):\n", len(entries))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, entry := range entries {
			status := "ok"
			if !entry.Success {
				status = "FAILED"
			}
			fmt.Fprintf(out, "%s %-6s %s", entry.Timestamp.Format("2006-01-02 15:04:05"), status, entry.DeliveryID)
			if entry.StatusCode != 0 {
				fmt.Fprintf(out, " HTTP %d", entry.StatusCode)
			}
			fmt.Fprintf(out, " retries=%d %s\n", entry.RetryCount, entry.RequestDuration.Round(time.Millisecond))
			if entry.Error != "" {
				fmt.Fprintf(out, "   %s\n", entry.Error)
			}
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", webhooksApp.DefaultLogLimit, "number of entries")
}
