// Package watch provides the "sheetkit watch" commands for folder monitoring.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	w "github.com/klytics/sheetkit/internal/watch"
)

// NewCommand creates the "watch" command with subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor folders for spreadsheet packages and process them",
		Long: `Watch folders for new or modified .xlsx/.xlsm packages and verify,
resave or run a plan against each one.

Example:
  sheetkit watch start ./inbox --action verify
  sheetkit watch start ./inbox --action resave --out ./clean
  sheetkit watch start --config rules.yaml`,
	}

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newStartCmd() *cobra.Command {
	var (
		configFile string
		extensions []string
		pattern    string
		recursive  bool
		actionName string
		outDir     string
		plan       string
		debounce   int
	)

	cmd := &cobra.Command{
		Use:   "start [directory...]",
		Short: "Start watching folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}

			var config w.Config
			if configFile != "" {
				loaded, err := w.LoadConfigFile(configFile)
				if err != nil {
					return err
				}
				config = *loaded
				if len(args) > 0 {
					config.Directories = args
				}
			} else {
				config = w.Config{
					Directories: args,
					Rules: []w.Rule{{
						ID:         "default",
						Pattern:    pattern,
						Extensions: extensions,
						Action:     actionName,
						OutDir:     outDir,
						Plan:       plan,
						Enabled:    true,
					}},
					Recursive: recursive,
					Debounce:  debounce,
				}
			}
			if err := config.Validate(); err != nil {
				return err
			}

			watcher, err := w.New(config)
			if err != nil {
				return err
			}
			defer watcher.Close()

			logger := log.New(cmd.ErrOrStderr(), "[watch] ", log.LstdFlags)
			watcher.Logger = logger
			dispatcher := &w.Dispatcher{
				Save:    env.Config.SaveOptions(),
				Options: env.Options(),
				Log:     env.Log,
				Logger:  logger,
			}
			watcher.Handler = dispatcher.Handle

			// Remember the last configuration for "watch config".
			if err := w.SaveConfig(w.DefaultConfigDir(), config); err != nil {
				env.Log.Verbose("could not save watch config: %v", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", strings.Join(config.Directories, ", "))
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = watcher.Start(ctx)
			events := watcher.GetEvents()
			return reportEvents(env, events, err)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Load directories and rules from a watch YAML file")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Package extensions to watch (default: all of .xlsx,.xlsm,.xltx,.xltm)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob on the file name, e.g. 'report_*.xlsx'")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch directories recursively")
	cmd.Flags().StringVar(&actionName, "action", w.ActionVerify, "Action to perform: verify, resave or run")
	cmd.Flags().StringVar(&outDir, "out", "", "Output folder for resave")
	cmd.Flags().StringVar(&plan, "plan", "", "Plan file for run")
	cmd.Flags().IntVar(&debounce, "debounce", 500, "Debounce interval in milliseconds")

	return cmd
}

func reportEvents(env *cli.Env, events []w.Event, runErr error) error {
	failed := 0
	for _, e := range events {
		if e.Status == "error" {
			failed++
		}
	}
	err := env.Out.Result(events, func(out io.Writer) error {
		_, err := fmt.Fprintf(out, "\nStopped: %d events, %d failed\n", len(events), failed)
		return err
	})
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return err
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the configuration of the last watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			config, err := w.LoadConfig(w.DefaultConfigDir())
			if err != nil {
				return fmt.Errorf("no watcher configuration found (run 'sheetkit watch start' first)")
			}

			return env.Out.Result(config, func(out io.Writer) error {
				fmt.Fprintf(out, "Directories: %s\n", strings.Join(config.Directories, ", "))
				fmt.Fprintf(out, "Recursive:   %v\n", config.Recursive)
				fmt.Fprintf(out, "Debounce:    %dms\n", config.Debounce)
				fmt.Fprintf(out, "Rules:       %d\n", len(config.Rules))
				for _, r := range config.Rules {
					fmt.Fprintf(out, "  [%s] action=%s ext=%v pattern=%q enabled=%v\n",
						r.ID, r.Action, r.Extensions, r.Pattern, r.Enabled)
				}
				return nil
			})
		},
	}
}
