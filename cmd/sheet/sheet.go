// Package sheet provides CLI commands that edit the worksheets of a package.
package sheet

import (
	"github.com/spf13/cobra"
)

// NewCommand returns the sheet subcommand group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Inspect and edit worksheets",
		Long: `Inspect, clone, edit, rename and remove worksheets.

Every part a worksheet owns travels with it: drawings, printer settings,
comments, form controls. Edits are written back in place unless -o names
another file.`,
	}

	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newCloneCommand())
	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newRenameCommand())
	cmd.AddCommand(newRemoveCommand())

	return cmd
}
