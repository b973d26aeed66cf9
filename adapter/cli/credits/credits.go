package credits

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

// Cmd is the credits command group.
var Cmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and maintain the credit ledger",
	Long:  `Show remaining analysis credits, reconcile the ledger, or start a trial.`,
}

func init() {
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(syncCmd)
	Cmd.AddCommand(trialCmd)
}

func printSnapshot(out io.Writer, title string, s creditsDomain.Snapshot) {
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintf(out, "  Available: %d\n", s.Available)
	fmt.Fprintf(out, "  Used:      %d\n", s.Used)
	fmt.Fprintf(out, "  Total:     %d\n", s.Total)
	if !s.LastUpdated.IsZero() {
		fmt.Fprintf(out, "  Updated:   %s\n", s.LastUpdated.Format(time.RFC3339))
	}
}
