package workbook

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CellType is the stored type of a cell value.
type CellType int

const (
	// CellBlank is a cell with no value, usually kept for its style.
	CellBlank CellType = iota
	CellString
	CellNumber
	CellBool
	CellError
	CellDate
)

// Cell is one entry of a worksheet grid. Style is the raw style index into the
// workbook's styles part, which is carried verbatim.
type Cell struct {
	Type    CellType
	Value   string
	Formula string
	Style   string

	formulaAttrs []xml.Attr
	extra        []xml.Attr
}

type cellKey struct {
	row int
	col int
}

// grid is the cell storage of one worksheet.
type grid struct {
	cells map[cellKey]Cell
	rows  map[int][]xml.Attr
}

func newGrid() *grid {
	return &grid{
		cells: make(map[cellKey]Cell),
		rows:  make(map[int][]xml.Attr),
	}
}

func (g *grid) clone() *grid {
	out := &grid{
		cells: make(map[cellKey]Cell, len(g.cells)),
		rows:  make(map[int][]xml.Attr, len(g.rows)),
	}
	for k, c := range g.cells {
		if c.formulaAttrs != nil {
			c.formulaAttrs = append([]xml.Attr(nil), c.formulaAttrs...)
		}
		if c.extra != nil {
			c.extra = append([]xml.Attr(nil), c.extra...)
		}
		out.cells[k] = c
	}
	for r, attrs := range g.rows {
		out.rows[r] = append([]xml.Attr(nil), attrs...)
	}
	return out
}

func parseRef(ref string) (cellKey, error) {
	col, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return cellKey{}, fmt.Errorf("%w: %q", ErrInvalidCell, ref)
	}
	return cellKey{row: row, col: col}, nil
}

func (k cellKey) ref() string {
	name, _ := excelize.CoordinatesToCellName(k.col, k.row)
	return name
}

func (g *grid) sortedKeys() []cellKey {
	keys := make([]cellKey, 0, len(g.cells))
	for k := range g.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].row != keys[j].row {
			return keys[i].row < keys[j].row
		}
		return keys[i].col < keys[j].col
	})
	return keys
}

// sheetData XML as found inside <sheetData>. Parsed from a fragment, so
// prefixed attributes keep their literal prefix in Name.Space.

type xlsxSheetData struct {
	Rows []xlsxRow `xml:"row"`
}

type xlsxRow struct {
	R     int        `xml:"r,attr"`
	Attrs []xml.Attr `xml:",any,attr"`
	Cells []xlsxC    `xml:"c"`
}

type xlsxC struct {
	R  string     `xml:"r,attr"`
	S  string     `xml:"s,attr"`
	T  string     `xml:"t,attr"`
	F  *xlsxF     `xml:"f"`
	V  *string    `xml:"v"`
	IS *xlsxSI    `xml:"is"`
	X  []xml.Attr `xml:",any,attr"`
}

type xlsxF struct {
	Content string     `xml:",chardata"`
	Attrs   []xml.Attr `xml:",any,attr"`
}

type xlsxSST struct {
	SI []xlsxSI `xml:"si"`
}

type xlsxSI struct {
	T *xlsxT  `xml:"t"`
	R []xlsxR `xml:"r"`
}

type xlsxR struct {
	T xlsxT `xml:"t"`
}

type xlsxT struct {
	Value string `xml:",chardata"`
}

func (si *xlsxSI) text() string {
	if si == nil {
		return ""
	}
	if si.T != nil && len(si.R) == 0 {
		return si.T.Value
	}
	var b strings.Builder
	if si.T != nil {
		b.WriteString(si.T.Value)
	}
	for _, r := range si.R {
		b.WriteString(r.T.Value)
	}
	return b.String()
}

func parseSharedStrings(data []byte) ([]string, error) {
	var sst xlsxSST
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, fmt.Errorf("could not parse shared strings: %w", err)
	}
	out := make([]string, len(sst.SI))
	for i := range sst.SI {
		out[i] = sst.SI[i].text()
	}
	return out, nil
}

// parseSheetData fills g from the inner XML of <sheetData>.
func parseSheetData(g *grid, inner []byte, sst []string) error {
	if len(bytes.TrimSpace(inner)) == 0 {
		return nil
	}
	var data xlsxSheetData
	wrapped := append(append([]byte("<sheetData>"), inner...), "</sheetData>"...)
	if err := xml.Unmarshal(wrapped, &data); err != nil {
		return fmt.Errorf("could not parse sheet data: %w", err)
	}

	nextRow := 0
	for _, row := range data.Rows {
		if row.R == 0 {
			row.R = nextRow + 1
		}
		nextRow = row.R
		if attrs := dropAttr(row.Attrs, "r"); len(attrs) > 0 {
			g.rows[row.R] = attrs
		}

		nextCol := 0
		for _, c := range row.Cells {
			key := cellKey{row: row.R, col: nextCol + 1}
			if c.R != "" {
				k, err := parseRef(c.R)
				if err != nil {
					return err
				}
				key = k
			}
			nextCol = key.col

			cell, err := decodeCell(c, sst)
			if err != nil {
				return fmt.Errorf("cell %s: %w", key.ref(), err)
			}
			g.cells[key] = cell
		}
	}
	return nil
}

func decodeCell(c xlsxC, sst []string) (Cell, error) {
	cell := Cell{Style: c.S, extra: c.X}
	if c.F != nil {
		cell.Formula = c.F.Content
		cell.formulaAttrs = c.F.Attrs
	}
	v := ""
	hasV := c.V != nil
	if hasV {
		v = *c.V
	}

	switch c.T {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || idx < 0 || idx >= len(sst) {
			return cell, fmt.Errorf("shared string index %q out of range", v)
		}
		cell.Type, cell.Value = CellString, sst[idx]
	case "inlineStr":
		cell.Type, cell.Value = CellString, c.IS.text()
	case "str":
		cell.Type, cell.Value = CellString, v
	case "b":
		cell.Type, cell.Value = CellBool, v
	case "e":
		cell.Type, cell.Value = CellError, v
	case "d":
		cell.Type, cell.Value = CellDate, v
	default:
		if hasV || cell.Formula != "" || len(cell.formulaAttrs) > 0 {
			cell.Type, cell.Value = CellNumber, v
		}
	}
	return cell, nil
}

func dropAttr(attrs []xml.Attr, local string) []xml.Attr {
	out := attrs[:0:0]
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			continue
		}
		out = append(out, a)
	}
	return out
}

// renderSheetData writes the rows of g. prefix is the namespace prefix of the
// surrounding sheetData element ("" or "x:").
func renderSheetData(b *bytes.Buffer, g *grid, prefix string) {
	rowSet := make(map[int]struct{}, len(g.rows))
	for r := range g.rows {
		rowSet[r] = struct{}{}
	}
	byRow := make(map[int][]cellKey)
	for _, k := range g.sortedKeys() {
		byRow[k.row] = append(byRow[k.row], k)
		rowSet[k.row] = struct{}{}
	}
	rows := make([]int, 0, len(rowSet))
	for r := range rowSet {
		rows = append(rows, r)
	}
	sort.Ints(rows)

	for _, r := range rows {
		fmt.Fprintf(b, `<%srow r="%d"`, prefix, r)
		writeAttrs(b, g.rows[r])
		keys := byRow[r]
		if len(keys) == 0 {
			b.WriteString("/>")
			continue
		}
		b.WriteString(">")
		for _, k := range keys {
			renderCell(b, k.ref(), g.cells[k], prefix)
		}
		fmt.Fprintf(b, "</%srow>", prefix)
	}
}

func renderCell(b *bytes.Buffer, ref string, c Cell, prefix string) {
	fmt.Fprintf(b, `<%sc r="%s"`, prefix, ref)
	if c.Style != "" {
		fmt.Fprintf(b, ` s="%s"`, escapeAttr(c.Style))
	}
	writeAttrs(b, c.extra)

	hasFormula := c.Formula != "" || len(c.formulaAttrs) > 0
	switch c.Type {
	case CellString:
		if hasFormula {
			b.WriteString(` t="str"`)
		} else {
			b.WriteString(` t="inlineStr"`)
		}
	case CellBool:
		b.WriteString(` t="b"`)
	case CellError:
		b.WriteString(` t="e"`)
	case CellDate:
		b.WriteString(` t="d"`)
	}

	if c.Type == CellBlank && !hasFormula {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")

	if hasFormula {
		fmt.Fprintf(b, "<%sf", prefix)
		writeAttrs(b, c.formulaAttrs)
		if c.Formula == "" {
			b.WriteString("/>")
		} else {
			fmt.Fprintf(b, ">%s</%sf>", escapeText(c.Formula), prefix)
		}
	}

	switch {
	case c.Type == CellString && !hasFormula:
		fmt.Fprintf(b, `<%sis><%st xml:space="preserve">%s</%st></%sis>`,
			prefix, prefix, escapeText(c.Value), prefix, prefix)
	case c.Type != CellBlank && c.Value != "":
		fmt.Fprintf(b, "<%sv>%s</%sv>", prefix, escapeText(c.Value), prefix)
	}
	fmt.Fprintf(b, "</%sc>", prefix)
}

func writeAttrs(b *bytes.Buffer, attrs []xml.Attr) {
	for _, a := range attrs {
		b.WriteByte(' ')
		switch a.Name.Space {
		case "":
		case xmlURL:
			b.WriteString("xml:")
		default:
			b.WriteString(a.Name.Space)
			b.WriteByte(':')
		}
		fmt.Fprintf(b, `%s="%s"`, a.Name.Local, escapeAttr(a.Value))
	}
}

const xmlURL = "http://www.w3.org/XML/1998/namespace"

func escapeText(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func escapeAttr(s string) string {
	return escapeText(s)
}
