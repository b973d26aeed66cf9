package leads

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	analysisDomain "github.com/felixgeelhaar/skinsight/internal/analysis/domain"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <lead-id>...",
	Short: "Delete leads",
	Long: `Delete one or more leads. Nothing is deleted if any id is unknown
or belongs to another account.

Examples:
  skinsight leads delete 550e8400-e29b-41d4-a716-446655440000`,
	Aliases: []string{"rm"},
	Args:    cobra.MinimumNArgs(1),
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

		ids := make([]uuid.UUID, 0, len(args))
		for _, arg := range args {
			id, err := uuid.Parse(arg)
			if err != nil {
				return fmt.Errorf("invalid lead ID %q: %w", arg, err)
			}
			ids = append(ids, id)
		}

		deleted, err := app.Analysis.DeleteLeads(cmd.Context(), accountID, ids)
		if errors.Is(err, analysisDomain.ErrLeadNotOwned) {
			return fmt.Errorf("refusing to delete: %w", err)
		}
		if err != nil {
			return fmt.Errorf("failed to delete leads: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d lead(s).\n", deleted)
		return nil
	},
}
