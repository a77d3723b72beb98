// Package xlsx reads and builds .xlsx files through excelize. sheetkit uses it
// as an independent reader: anything sheetkit writes must open here with the
// same sheets, cells and pictures.
package xlsx

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Picture is one image anchored at a cell.
type Picture struct {
	Cell      string `json:"cell"`
	Extension string `json:"extension"`
	File      []byte `json:"-"`
}

// Sheet represents a single worksheet's data.
type Sheet struct {
	Name     string     `json:"name"`
	Hidden   bool       `json:"hidden,omitempty"`
	Rows     [][]string `json:"rows"`
	Pictures []Picture  `json:"pictures,omitempty"`
}

// Workbook represents a parsed Excel file with all its sheets.
type Workbook struct {
	Sheets      []Sheet `json:"sheets"`
	ActiveSheet int     `json:"active_sheet"`
}

// ReadFile reads an .xlsx file and returns its structured data.
func ReadFile(path string) (*Workbook, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s — check that the path is correct: %w", path, os.ErrNotExist)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s — is this a valid .xlsx file? %w", path, err)
	}
	defer f.Close()

	return readWorkbook(f)
}

// ReadBytes reads an .xlsx file from a byte slice and returns its structured data.
func ReadBytes(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not read Excel data: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (*Workbook, error) {
	wb := &Workbook{ActiveSheet: f.GetActiveSheetIndex()}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("could not read sheet %q: %w", name, err)
		}
		visible, err := f.GetSheetVisible(name)
		if err != nil {
			return nil, fmt.Errorf("could not read visibility of %q: %w", name, err)
		}
		pictures, err := readPictures(f, name)
		if err != nil {
			return nil, err
		}

		wb.Sheets = append(wb.Sheets, Sheet{
			Name:     name,
			Hidden:   !visible,
			Rows:     rows,
			Pictures: pictures,
		})
	}

	return wb, nil
}

func readPictures(f *excelize.File, sheet string) ([]Picture, error) {
	cells, err := f.GetPictureCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("could not list pictures of %q: %w", sheet, err)
	}
	var out []Picture
	for _, cell := range cells {
		pics, err := f.GetPictures(sheet, cell)
		if err != nil {
			return nil, fmt.Errorf("could not read picture at %s!%s: %w", sheet, cell, err)
		}
		for _, p := range pics {
			out = append(out, Picture{Cell: cell, Extension: p.Extension, File: p.File})
		}
	}
	return out, nil
}

// GetSheet returns a specific sheet by name. Returns an error if the sheet is not found.
func (wb *Workbook) GetSheet(name string) (*Sheet, error) {
	for i := range wb.Sheets {
		if wb.Sheets[i].Name == name {
			return &wb.Sheets[i], nil
		}
	}

	available := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		available[i] = s.Name
	}
	return nil, fmt.Errorf("sheet %q not found — available sheets: %v", name, available)
}

// Names returns the sheet names in workbook order.
func (wb *Workbook) Names() []string {
	out := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		out[i] = s.Name
	}
	return out
}

// Value returns the text of a cell by 1-based row and column, or "" when the
// row or column lies outside the sheet's data.
func (s *Sheet) Value(row, col int) string {
	if row < 1 || row > len(s.Rows) || col < 1 || col > len(s.Rows[row-1]) {
		return ""
	}
	return s.Rows[row-1][col-1]
}

// ToCSV converts a sheet's data to CSV format.
func (s *Sheet) ToCSV() string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.WriteAll(s.Rows)
	return sb.String()
}

// RowCount returns the total number of data rows (excluding empty rows).
func (s *Sheet) RowCount() int {
	count := 0
	for _, row := range s.Rows {
		for _, cell := range row {
			if cell != "" {
				count++
				break
			}
		}
	}
	return count
}
