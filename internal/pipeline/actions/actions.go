// Package actions provides the built-in pipeline actions.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/pipeline"
	"github.com/klytics/sheetkit/internal/workbook"
)

// RegisterAll registers all built-in actions with the given executor.
func RegisterAll(exec *pipeline.Executor) {
	exec.RegisterAction("open", OpenAction)
	exec.RegisterAction("new", NewAction)
	exec.RegisterAction("clone", CloneAction)
	exec.RegisterAction("rename", RenameAction)
	exec.RegisterAction("set", SetAction)
	exec.RegisterAction("clear", ClearAction)
	exec.RegisterAction("read", ReadAction)
	exec.RegisterAction("remove", RemoveAction)
	exec.RegisterAction("move", MoveAction)
	exec.RegisterAction("activate", ActivateAction)
	exec.RegisterAction("picture", PictureAction)
	exec.RegisterWriteAction("save", SaveAction)
	exec.RegisterAction("verify", VerifyAction)
}

// OpenAction reads the package at step.Input into the session.
func OpenAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	if step.Input == "" {
		return "", fmt.Errorf("open requires an input file path")
	}
	doc, err := workbook.Open(step.Input, s.Options...)
	if err != nil {
		return "", err
	}
	s.Doc, s.Path = doc, step.Input
	return titles(doc), nil
}

// NewAction starts an empty workbook with one sheet (options.sheet, default "Sheet1").
func NewAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	title := step.Title
	if title == "" {
		title = "Sheet1"
	}
	doc := workbook.New(s.Options...)
	if _, err := doc.AddSheet(title); err != nil {
		return "", err
	}
	s.Doc, s.Path = doc, ""
	return title, nil
}

// CloneAction copies step.Sheet. The copy is titled step.Title, or the first
// free "<sheet> (n)" when no title is given. The output is the new title.
func CloneAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	src, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	title := step.Title
	if title == "" {
		title = s.Doc.FreeTitle(src.Title())
	}
	clone, err := s.Doc.CloneSheetAs(src, title)
	if err != nil {
		return "", err
	}
	return clone.Title(), nil
}

// RenameAction sets the title of step.Sheet to step.Title.
func RenameAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	if err := ws.SetTitle(step.Title); err != nil {
		return "", err
	}
	return ws.Title(), nil
}

// SetAction writes step.Value into step.Cell. A value starting with "=" is
// stored as a formula; options.type selects "string" (default), "number" or "bool".
func SetAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	if step.Cell == "" {
		return "", fmt.Errorf("set requires a 'cell' field")
	}
	if strings.HasPrefix(step.Value, "=") {
		return step.Value, ws.SetFormula(step.Cell, step.Value)
	}
	value, err := ParseValue(step.Value, step.Options["type"])
	if err != nil {
		return "", err
	}
	return step.Value, ws.SetCell(step.Cell, value)
}

// ParseValue converts text into the cell value type named by kind.
func ParseValue(text, kind string) (interface{}, error) {
	switch kind {
	case "", "string":
		return text, nil
	case "number":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", text)
		}
		return f, nil
	case "bool":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", text)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown value type %q — use string, number or bool", kind)
	}
}

// ClearAction empties step.Cell.
func ClearAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	return "", ws.ClearCell(step.Cell)
}

// ReadAction returns the value of step.Cell, or the whole sheet as JSON rows
// when no cell is given.
func ReadAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	if step.Cell != "" {
		c, err := ws.Cell(step.Cell)
		if err != nil {
			return "", err
		}
		return c.Value, nil
	}
	data, err := json.Marshal(ws.Rows())
	if err != nil {
		return "", fmt.Errorf("could not serialize sheet data: %w", err)
	}
	return string(data), nil
}

// RemoveAction deletes step.Sheet.
func RemoveAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	return ws.Title(), s.Doc.RemoveSheet(ws)
}

// MoveAction moves step.Sheet to tab position step.Index.
func MoveAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	if step.Index == nil {
		return "", fmt.Errorf("move requires an 'index' field")
	}
	if err := s.Doc.MoveSheet(ws, *step.Index); err != nil {
		return "", err
	}
	return strconv.Itoa(*step.Index), nil
}

// ActivateAction makes step.Sheet the tab the workbook opens on.
func ActivateAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	return ws.Title(), s.Doc.SetActiveSheet(s.Doc.SheetIndex(ws))
}

// PictureAction anchors the image at step.Input over the range in step.Cell.
func PictureAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	ws, err := s.Sheet(step)
	if err != nil {
		return "", err
	}
	if step.Input == "" {
		return "", fmt.Errorf("picture requires an input image path")
	}
	anchor, err := workbook.ParseAnchor(step.Cell)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(step.Input)
	if err != nil {
		return "", fmt.Errorf("could not read image %s: %w", step.Input, err)
	}
	if err := ws.AddPicture(anchor, data, filepath.Ext(step.Input)); err != nil {
		return "", err
	}
	return ws.Drawings()[0].Path(), nil
}

// SaveAction writes the Document to step.Output, or back to the file it was
// opened from. It may run any number of times in one pipeline.
func SaveAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	doc, err := s.Document(step)
	if err != nil {
		return "", err
	}
	path := step.Output
	if path == "" {
		path = s.Path
	}
	if path == "" {
		return "", fmt.Errorf("save requires an output path for a new workbook")
	}
	if err := workbook.SaveAs(doc, path, s.Save); err != nil {
		return "", err
	}
	s.Path = path
	return path, nil
}

// VerifyAction checks a written package (step.Input, default the file last
// opened or saved) for duplicate entries and opens it with an independent reader.
func VerifyAction(ctx context.Context, s *pipeline.Session, step pipeline.Step) (string, error) {
	path := step.Input
	if path == "" {
		path = s.Path
	}
	if path == "" {
		return "", fmt.Errorf("verify requires an input file path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	report, err := xlsx.Verify(data)
	if err != nil {
		return "", err
	}
	if !report.OK() {
		return "", fmt.Errorf("%s failed verification: %s", path, strings.Join(report.Problems, "; "))
	}
	return strings.Join(report.Sheets, ","), nil
}

func titles(doc *workbook.Document) string {
	names := make([]string, 0, len(doc.Sheets()))
	for _, ws := range doc.Sheets() {
		names = append(names, ws.Title())
	}
	return strings.Join(names, ",")
}
