package xlsx

import (
	"fmt"

	"github.com/klytics/sheetkit/internal/container"
)

// Report is the outcome of Verify.
type Report struct {
	Entries    int      `json:"entries"`
	Duplicates []string `json:"duplicates,omitempty"`
	Sheets     []string `json:"sheets"`
	Pictures   int      `json:"pictures"`
	Problems   []string `json:"problems,omitempty"`
}

// OK reports whether the package passed every check.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Verify checks that data is a well-formed package: no entry name occurs twice
// in the central directory, and excelize can open it and read every sheet.
// Problems with the package are listed in the report; the error is only set
// when data is not a zip archive at all.
func Verify(data []byte) (*Report, error) {
	dups, err := container.DuplicateEntries(data)
	if err != nil {
		return nil, err
	}
	zr, err := container.OpenZip(data)
	if err != nil {
		return nil, err
	}

	r := &Report{Entries: len(zr.ListEntries()), Duplicates: dups}
	for _, d := range dups {
		r.Problems = append(r.Problems, fmt.Sprintf("duplicate entry %s", d))
	}

	wb, err := ReadBytes(data)
	if err != nil {
		r.Problems = append(r.Problems, err.Error())
		return r, nil
	}
	r.Sheets = wb.Names()
	for _, s := range wb.Sheets {
		r.Pictures += len(s.Pictures)
	}
	if len(wb.Sheets) == 0 {
		r.Problems = append(r.Problems, "workbook has no sheets")
	}
	return r, nil
}
