package webhook

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	webhooksDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

// Cmd is the webhook command group.
var Cmd = &cobra.Command{
	Use:   "webhook",
	Short: "Configure the lead webhook",
	Long:  `Show or update the endpoint that receives completed analyses, test it, and read the delivery log.`,
}

func init() {
	Cmd.AddCommand(configCmd)
	Cmd.AddCommand(testCmd)
	Cmd.AddCommand(logsCmd)
}

func printConfig(out io.Writer, cfg *webhooksDomain.Config) {
	fmt.Fprintln(out, "Webhook")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	url := cfg.URL
	if url == "" {
		url = "(not set)"
	}
	fmt.Fprintf(out, "  URL:     %s\n", url)
	fmt.Fprintf(out, "  Enabled: %t\n", cfg.Enabled)
	if !cfg.LastUpdated.IsZero() {
		fmt.Fprintf(out, "  Updated: %s\n", cfg.LastUpdated.Format(time.RFC3339))
	}
	if cfg.LastTestSuccess != nil && cfg.LastTestTimestamp != nil {
		outcome := "failed"
		if *cfg.LastTestSuccess {
			outcome = "succeeded"
		}
		fmt.Fprintf(out, "  Last test %s at %s\n", outcome, cfg.LastTestTimestamp.Format(time.RFC3339))
	}
}
