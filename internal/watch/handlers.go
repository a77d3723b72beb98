package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/logging"
	"github.com/klytics/sheetkit/internal/pipeline"
	"github.com/klytics/sheetkit/internal/pipeline/actions"
	"github.com/klytics/sheetkit/internal/workbook"
)

// Dispatcher runs the action a rule names.
type Dispatcher struct {
	Save    workbook.SaveOptions
	Options []workbook.Option
	Log     pipeline.Logger
	Logger  *log.Logger
}

// Handle implements EventHandler.
func (d *Dispatcher) Handle(ctx context.Context, path string, rule Rule) error {
	switch rule.Action {
	case ActionVerify:
		report, err := Verify(path, d.Options...)
		if err != nil {
			return err
		}
		if d.Logger != nil {
			d.Logger.Printf("%s: %d sheets, %d entries, %d pictures", filepath.Base(path), len(report.Sheets), report.Entries, report.Pictures)
		}
		return nil
	case ActionResave:
		_, err := Resave(path, rule.OutDir, d.Save, d.Options...)
		return err
	case ActionRun:
		return d.run(ctx, path, rule)
	default:
		return fmt.Errorf("unknown action %q", rule.Action)
	}
}

// Verify checks a package twice: with the independent excelize reader, and by
// reading it into a Document and validating what a save would write.
func Verify(path string, opts ...workbook.Option) (*xlsx.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	report, err := xlsx.Verify(data)
	if err != nil {
		return nil, err
	}
	if !report.OK() {
		return report, fmt.Errorf("%s: %s", filepath.Base(path), strings.Join(report.Problems, "; "))
	}
	doc, err := workbook.ReadBytes(data, opts...)
	if err != nil {
		return report, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := doc.Validate(); err != nil {
		return report, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return report, nil
}

// Resave reads path and writes it under the same name into outDir.
func Resave(path, outDir string, save workbook.SaveOptions, opts ...workbook.Option) (string, error) {
	srcDir, _ := filepath.Abs(filepath.Dir(path))
	dstDir, _ := filepath.Abs(outDir)
	if srcDir == dstDir {
		return "", fmt.Errorf("out_dir must differ from the watched folder")
	}
	doc, err := workbook.Open(path, opts...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("could not create %s: %w", outDir, err)
	}
	dst := filepath.Join(outDir, filepath.Base(path))
	if err := workbook.SaveAs(doc, dst, save); err != nil {
		return "", err
	}
	return dst, nil
}

func (d *Dispatcher) run(ctx context.Context, path string, rule Rule) error {
	p, err := pipeline.LoadPipeline(rule.Plan)
	if err != nil {
		return err
	}
	doc, err := workbook.Open(path, d.Options...)
	if err != nil {
		return err
	}
	var logger pipeline.Logger = logging.NullLogger{}
	if d.Log != nil {
		logger = d.Log
	}
	exec := pipeline.NewExecutor(logger)
	actions.RegisterAll(exec)
	// Path stays empty so a plan cannot save over the file that triggered
	// it; save steps need an explicit output.
	_, err = exec.Run(ctx, p, &pipeline.Session{Doc: doc, Save: d.Save, Options: d.Options})
	return err
}
