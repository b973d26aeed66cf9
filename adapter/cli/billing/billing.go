package billing

import "github.com/spf13/cobra"

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Payment processor sync and payment history",
	Long:  `Replay payment processor events against the credit ledger and list recorded payments.`,
}

func init() {
	Cmd.AddCommand(webhookCmd)
	Cmd.AddCommand(paymentsCmd)
}
