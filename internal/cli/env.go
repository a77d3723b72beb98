// Package cli holds the state every sheetkit command starts from: the loaded
// configuration, a console logger and the output writer.
package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/logging"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/workbook"
)

// Env is built once per command invocation.
type Env struct {
	Config *config.Config
	Log    *logging.ConsoleLogger
	Out    *output.Writer
}

// Setup loads the configuration and applies the persistent flags on top of it.
func Setup(cmd *cobra.Command) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !cfg.Output.Color {
		color.NoColor = true
	}
	return &Env{
		Config: cfg,
		Log:    logging.NewConsoleLogger(verbose || cfg.Verbose),
		Out:    output.ForCommand(cmd, output.ParseFormat(cfg.Output.Format)),
	}, nil
}

// Options returns the read options for workbook.Open.
func (e *Env) Options() []workbook.Option {
	return e.Config.ReadOptions(e.Log)
}

// Open reads a package, rejecting files that are not spreadsheet packages.
func (e *Env) Open(path string) (*workbook.Document, error) {
	if err := CheckPackagePath(path); err != nil {
		return nil, err
	}
	e.Log.Verbose("reading %s", path)
	return workbook.Open(path, e.Options()...)
}

// Save writes doc to path with the configured save options.
func (e *Env) Save(doc *workbook.Document, path string) error {
	if err := workbook.SaveAs(doc, path, e.Config.SaveOptions()); err != nil {
		return err
	}
	e.Log.Verbose("wrote %s", path)
	return nil
}

// CheckPackagePath rejects paths without a spreadsheet package extension.
func CheckPackagePath(path string) error {
	lower := strings.ToLower(path)
	for _, ext := range []string{".xlsx", ".xlsm", ".xltx", ".xltm"} {
		if strings.HasSuffix(lower, ext) {
			return nil
		}
	}
	return fmt.Errorf("expected an .xlsx or .xlsm file, got %q", path)
}

// Target returns the output path: out when set, otherwise the input.
func Target(in, out string) string {
	if out != "" {
		return out
	}
	return in
}
