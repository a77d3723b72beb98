package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/progress"
	"github.com/klytics/sheetkit/internal/workbook"
)

// VerifyResult combines the excelize check with the model check.
type VerifyResult struct {
	File     string       `json:"file"`
	Archive  *xlsx.Report `json:"archive"`
	Model    []string     `json:"modelProblems,omitempty"`
	Paths    int          `json:"paths"`
	Macros   bool         `json:"macros,omitempty"`
	Problems []string     `json:"problems,omitempty"`
}

// OK reports whether both checks passed.
func (r *VerifyResult) OK() bool { return len(r.Problems) == 0 }

// VerifyBytes runs both checks on an archive already in memory.
func VerifyBytes(name string, data []byte, opts ...workbook.Option) (*VerifyResult, error) {
	report, err := xlsx.Verify(data)
	if err != nil {
		return nil, fmt.Errorf("%s is not a zip archive: %w", name, err)
	}
	res := &VerifyResult{File: name, Archive: report}
	res.Problems = append(res.Problems, report.Problems...)

	doc, err := workbook.ReadBytes(data, opts...)
	if err != nil {
		res.Model = append(res.Model, err.Error())
	} else if paths, err := doc.Paths(); err != nil {
		res.Model = append(res.Model, err.Error())
	} else {
		res.Paths = len(paths)
		res.Macros = doc.MacroEnabled()
	}
	res.Problems = append(res.Problems, res.Model...)
	return res, nil
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file.xlsx> [file.xlsx...]",
		Short: "Check packages for duplicate entries and unreadable parts",
		Long: `Verifies a package two ways: excelize must open it and read every sheet,
and the central directory must not list any entry twice. The package is then
read into the sheetkit model, which must be able to write it back.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}

			bar := progress.New("verify", len(args), env.Out.JSON() || len(args) == 1)
			var results []*VerifyResult
			var failed []string
			for _, path := range args {
				res, err := verifyFile(path, env.Options()...)
				bar.Step(filepath.Base(path), err)
				if err != nil {
					return err
				}
				if !res.OK() {
					failed = append(failed, path)
				}
				results = append(results, res)
			}
			bar.Finish(fmt.Sprintf("%d packages, %d failed", len(args), len(failed)))

			var data interface{} = results
			if len(results) == 1 {
				data = results[0]
			}
			if err := env.Out.Result(data, func(w io.Writer) error {
				for _, res := range results {
					printVerify(w, res)
				}
				return nil
			}); err != nil {
				return err
			}
			switch {
			case len(failed) == 1 && len(results) == 1:
				return fmt.Errorf("%s failed verification: %s", failed[0], strings.Join(results[0].Problems, "; "))
			case len(failed) > 0:
				return fmt.Errorf("%d of %d packages failed verification: %s", len(failed), len(results), strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func verifyFile(path string, opts ...workbook.Option) (*VerifyResult, error) {
	if err := cli.CheckPackagePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return VerifyBytes(path, data, opts...)
}

func printVerify(w io.Writer, res *VerifyResult) {
	if res.OK() {
		fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), res.File)
	} else {
		fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), res.File)
	}
	fmt.Fprintf(w, "  Entries:  %d\n", res.Archive.Entries)
	fmt.Fprintf(w, "  Sheets:   %s\n", strings.Join(res.Archive.Sheets, ", "))
	fmt.Fprintf(w, "  Pictures: %d\n", res.Archive.Pictures)
	if res.Macros {
		fmt.Fprintln(w, "  Macros:   yes")
	}
	for _, p := range res.Problems {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("!"), p)
	}
}
