package leads

import "github.com/spf13/cobra"

// Cmd is the leads command group.
var Cmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage captured leads",
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(deleteCmd)
}
