package billing

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	billingApp "github.com/felixgeelhaar/skinsight/internal/billing/application"
)

var paymentsLimit int

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "List recorded payments",
	Long: `List the account's newest successful payments.

Examples:
  skinsight billing payments --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Billing == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Billing commands require database connection.")
			return nil
		}

		accountID, err := app.CurrentAccount()
		if err != nil {
			return err
		}

		payments, err := app.Billing.Payments(cmd.Context(), accountID, paymentsLimit)
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(payments) == 0 {
			fmt.Fprintln(out, "No payments recorded.")
			return nil
		}

		fmt.Fprintf(out, "Payments (%d):\n", len(payments))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, p := range payments {
			fmt.Fprintf(out, "%s  %s %s  %s  %s\n",
				p.PaidAt.Format("2006-01-02"),
				p.Amount.StringFixed(2),
				strings.ToUpper(p.Currency),
				p.Status,
				p.InvoiceID,
			)
		}
		return nil
	},
}

func init() {
	paymentsCmd.Flags().IntVar(&paymentsLimit, "limit", billingApp.DefaultPaymentLimit, "number of payments")
}
