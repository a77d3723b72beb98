package pipeline

import (
	"fmt"

	"github.com/klytics/sheetkit/internal/workbook"
)

// Session is the state the steps of one run share: the Document being
// edited and how it is read and saved.
type Session struct {
	Doc  *workbook.Document
	Path string // file the Document was opened from, if any

	Save    workbook.SaveOptions
	Options []workbook.Option
}

// Document returns the open Document or an error naming the step that
// needed one.
func (s *Session) Document(step Step) (*workbook.Document, error) {
	if s.Doc == nil {
		return nil, fmt.Errorf("step %q needs an open workbook — add an 'open' or 'new' step first", step.ID)
	}
	return s.Doc, nil
}

// Sheet resolves the sheet a step names by title.
func (s *Session) Sheet(step Step) (*workbook.Worksheet, error) {
	doc, err := s.Document(step)
	if err != nil {
		return nil, err
	}
	if step.Sheet == "" {
		return nil, fmt.Errorf("step %q is missing a 'sheet' field", step.ID)
	}
	return doc.Sheet(step.Sheet)
}
