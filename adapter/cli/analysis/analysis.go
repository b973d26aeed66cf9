package analysis

import "github.com/spf13/cobra"

// Cmd is the analysis command group.
var Cmd = &cobra.Command{
	Use:   "analysis",
	Short: "Run analyses against the credit ledger",
	Long: `Begin an analysis (checks credits and records the analysis id) and
complete it by submitting the lead form, which charges one credit and
delivers the lead webhook.`,
}

func init() {
	Cmd.AddCommand(beginCmd)
	Cmd.AddCommand(completeCmd)
}
