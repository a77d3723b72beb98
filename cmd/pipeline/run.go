package pipeline

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	pipelinepkg "github.com/klytics/sheetkit/internal/pipeline"
	"github.com/klytics/sheetkit/internal/pipeline/actions"
)

func newRunCommand() *cobra.Command {
	var dryRun bool
	var input string

	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Execute a workbook edit plan from a YAML file",
		Long: `Runs a multi-step plan defined in a YAML file against one workbook.

Steps are executed sequentially with variable interpolation between steps
(${{ steps.<id>.output }}, ${{ date.today }}, ${{ env.NAME }}).
--input opens a workbook before the first step. Use --dry-run to run every
step except saves.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}

			p, err := pipelinepkg.LoadPipeline(args[0])
			if err != nil {
				return err
			}

			session := &pipelinepkg.Session{
				Save:    env.Config.SaveOptions(),
				Options: env.Options(),
			}
			if input != "" {
				doc, err := env.Open(input)
				if err != nil {
					return err
				}
				session.Doc, session.Path = doc, input
			}

			executor := pipelinepkg.NewExecutor(env.Log)
			executor.SetDryRun(dryRun)
			actions.RegisterAll(executor)

			results, execErr := executor.Run(cmd.Context(), p, session)

			type jsonResult struct {
				StepID string `json:"stepId"`
				Output string `json:"output,omitempty"`
				Error  string `json:"error,omitempty"`
			}
			out := make([]jsonResult, len(results))
			for i, r := range results {
				out[i] = jsonResult{StepID: r.StepID, Output: r.Output}
				if r.Error != nil {
					out[i].Error = r.Error.Error()
				}
			}

			if err := env.Out.Result(out, func(w io.Writer) error {
				for _, r := range results {
					if r.Error != nil {
						fmt.Fprintf(w, "%s Step %s: %s\n", color.RedString("✗"), r.StepID, r.Error)
						continue
					}
					fmt.Fprintf(w, "%s Step %s\n", color.GreenString("✓"), r.StepID)
					if r.Output != "" {
						env.Log.Verbose("  output: %s", truncate(r.Output, 200))
					}
				}
				return nil
			}); err != nil {
				return err
			}
			return execErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run every step except saves")
	cmd.Flags().StringVar(&input, "input", "", "Workbook to open before the first step")

	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
