//go:build ignore

// This program generates the sample workbook used for manual testing.
package main

import (
	"fmt"
	"os"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/workbook"
)

// 1x1 transparent PNG.
var logo = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func main() {
	if err := generateXlsx(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating sample.xlsx: %v\n", err)
		os.Exit(1)
	}
	if err := generateClone(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating cloned.xlsx: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Test fixtures generated successfully.")
}

func generateXlsx() error {
	wb := &xlsx.Workbook{
		Sheets: []xlsx.Sheet{
			{
				Name: "Revenue",
				Rows: [][]string{
					{"Quarter", "Region", "Revenue", "Units"},
					{"Q1", "North", "125000", "450"},
					{"Q1", "South", "98000", "380"},
					{"Q2", "North", "142000", "510"},
					{"Q2", "South", "105000", "410"},
				},
			},
			{
				Name:     "Dashboard",
				Rows:     [][]string{{"Company logo"}},
				Pictures: []xlsx.Picture{{Cell: "B2", Extension: ".png", File: logo}},
			},
		},
	}
	return xlsx.WriteFile(wb, "testdata/sample.xlsx")
}

// generateClone writes a copy of the sample with the picture sheet cloned.
func generateClone() error {
	doc, err := workbook.Open("testdata/sample.xlsx")
	if err != nil {
		return err
	}
	src, err := doc.Sheet("Dashboard")
	if err != nil {
		return err
	}
	if _, err := doc.CloneSheetAs(src, "Dashboard (2)"); err != nil {
		return err
	}
	return workbook.SaveAs(doc, "testdata/cloned.xlsx", workbook.SaveOptions{})
}
