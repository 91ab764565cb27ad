// Package configurecmd implements "slipway configure": managing the named
// deployment environments in the local config file.
package configurecmd

import "github.com/spf13/cobra"

// Cmd returns the parent "slipway configure" command.
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage deployment environments",
	}

	cmd.AddCommand(listCmd())
	cmd.AddCommand(setCmd())
	cmd.AddCommand(useCmd())
	cmd.AddCommand(removeCmd())
	return cmd
}
