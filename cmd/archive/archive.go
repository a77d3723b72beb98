// Package archive provides CLI commands that work on a package as a whole.
package archive

import "github.com/spf13/cobra"

// NewCommand returns the package subcommand group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "package",
		Aliases: []string{"pkg"},
		Short:   "Verify, list and rewrite spreadsheet packages",
	}

	cmd.AddCommand(newVerifyCommand())
	cmd.AddCommand(newPartsCommand())
	cmd.AddCommand(newResaveCommand())

	return cmd
}
