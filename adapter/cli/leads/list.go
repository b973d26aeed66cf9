package leads

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured leads",
	Long: `List the account's leads, newest first.

Examples:
  skinsight leads list`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Analysis == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Lead commands require database connection.")
			return nil
		}

		accountID, err := app.CurrentAccount()
		if err != nil {
			return err
		}

		leads, err := app.Analysis.ListLeads(cmd.Context(), accountID)
		if err != nil {
			return fmt.Errorf("failed to list leads: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(leads) == 0 {
			fmt.Fprintln(out, "No leads found.")
			return nil
		}

		fmt.Fprintf(out, "Leads (%d):\n", len(leads))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, lead := range leads {
			contact := lead.Contact()
			fmt.Fprintf(out, "%s <%s> %s\n", contact.Name, contact.Email, contact.Phone)
			fmt.Fprintf(out, "   ID:       %s\n", lead.ID())
			fmt.Fprintf(out, "   Analysis: %s\n", lead.AnalysisID())
			fmt.Fprintf(out, "   Captured: %s\n", lead.CreatedAt().Format("2006-01-02 15:04"))
			fmt.Fprintln(out)
		}
		return nil
	},
}
