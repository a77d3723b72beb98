package xlsx

import (
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/xuri/excelize/v2"
)

// Build creates an .xlsx package from the given workbook data and returns its
// bytes. Pictures are anchored at their cell; hidden sheets stay hidden.
func Build(wb *Workbook) ([]byte, error) {
	f, err := build(wb)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile creates a new .xlsx file from the given workbook data.
func WriteFile(wb *Workbook, path string) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	return nil
}

func build(wb *Workbook) (*excelize.File, error) {
	f := excelize.NewFile()

	for i, sheet := range wb.Sheets {
		sheetName := sheet.Name
		if sheetName == "" {
			sheetName = fmt.Sprintf("Sheet%d", i+1)
		}

		if i == 0 {
			// Rename default sheet
			if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not create sheet %q: %w", sheetName, err)
		}

		if err := fillSheet(f, sheetName, sheet); err != nil {
			f.Close()
			return nil, err
		}
	}

	if wb.ActiveSheet > 0 && wb.ActiveSheet < len(wb.Sheets) {
		f.SetActiveSheet(wb.ActiveSheet)
	}
	// Visibility last: the active sheet cannot be hidden.
	for i, sheet := range wb.Sheets {
		if i == wb.ActiveSheet || !sheet.Hidden || sheet.Name == "" {
			continue
		}
		if err := f.SetSheetVisible(sheet.Name, false); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not hide %q: %w", sheet.Name, err)
		}
	}
	return f, nil
}

func fillSheet(f *excelize.File, name string, sheet Sheet) error {
	for rowIdx, row := range sheet.Rows {
		for colIdx, cell := range row {
			cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("invalid cell coordinates: %w", err)
			}
			if err := f.SetCellValue(name, cellName, cell); err != nil {
				return fmt.Errorf("could not set cell %s: %w", cellName, err)
			}
		}
	}
	for _, pic := range sheet.Pictures {
		err := f.AddPictureFromBytes(name, pic.Cell, &excelize.Picture{
			Extension: pic.Extension,
			File:      pic.File,
			Format:    &excelize.GraphicOptions{},
		})
		if err != nil {
			return fmt.Errorf("could not add picture at %s!%s: %w", name, pic.Cell, err)
		}
	}
	return nil
}
