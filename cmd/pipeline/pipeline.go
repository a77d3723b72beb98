// Package pipeline provides the run command for YAML edit plans.
package pipeline

import "github.com/spf13/cobra"

// NewCommand returns the run command.
func NewCommand() *cobra.Command {
	return newRunCommand()
}
