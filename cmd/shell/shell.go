// Package shell provides the "sheetkit shell" interactive REPL command.
package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	shellpkg "github.com/klytics/sheetkit/internal/shell"
)

// NewCommand creates the "shell" command.
func NewCommand() *cobra.Command {
	var evalCmds []string

	cmd := &cobra.Command{
		Use:   "shell [file.xlsx]",
		Short: "Start an interactive sheetkit shell",
		Long: `Start an interactive REPL over one workbook held in memory.

Edits accumulate until "save"; the workbook can be saved any number of
times. Tab completion covers commands and sheet titles. --eval may be given
more than once; the commands run in order and the shell exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			session, err := shellpkg.NewSession()
			if err != nil {
				return err
			}
			session.Save = env.Config.SaveOptions()
			session.Options = env.Options()

			if len(args) == 1 {
				if _, err := session.Eval(cmd.Context(), "open "+strconv.Quote(args[0])); err != nil {
					return err
				}
			}
			if len(evalCmds) > 0 {
				for _, line := range evalCmds {
					output, err := session.Eval(cmd.Context(), line)
					if err != nil {
						return err
					}
					if output != "" {
						fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(output, "\n"))
					}
				}
				return nil
			}
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().StringArrayVar(&evalCmds, "eval", nil, "Run a command and exit (repeatable)")
	return cmd
}
