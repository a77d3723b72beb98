package sheet

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/workbook"
)

// SheetInfo is the JSON shape of one worksheet.
type SheetInfo struct {
	Title    string         `json:"title"`
	CodeName string         `json:"codeName"`
	Path     string         `json:"path"`
	SheetID  int            `json:"sheetId"`
	State    string         `json:"state,omitempty"`
	Active   bool           `json:"active,omitempty"`
	Drawings []string       `json:"drawings,omitempty"`
	Parts    map[string]int `json:"parts,omitempty"`
	Cells    int            `json:"cells"`
}

// Describe summarises every worksheet of doc in tab order.
func Describe(doc *workbook.Document) []SheetInfo {
	infos := make([]SheetInfo, 0, len(doc.Sheets()))
	for i, ws := range doc.Sheets() {
		info := SheetInfo{
			Title:    ws.Title(),
			CodeName: string(ws.CodeName()),
			Path:     ws.Path(),
			SheetID:  ws.SheetID(),
			State:    ws.State(),
			Active:   i == doc.ActiveSheet(),
			Cells:    len(ws.Cells()),
		}
		for _, dr := range ws.Drawings() {
			info.Drawings = append(info.Drawings, dr.Path())
		}
		for _, kind := range workbook.AllKinds {
			if n := len(ws.OpaqueParts(kind)); n > 0 {
				if info.Parts == nil {
					info.Parts = make(map[string]int)
				}
				info.Parts[kind.String()] = n
			}
		}
		infos = append(infos, info)
	}
	return infos
}

func newInspectCommand() *cobra.Command {
	var sheetName string
	var csvOutput bool

	cmd := &cobra.Command{
		Use:   "inspect <file.xlsx>",
		Short: "List worksheets, or print the cells of one",
		Long: `Without --sheet, lists every worksheet with its code name, part path,
drawings and opaque parts. With --sheet, prints that worksheet's cells.
--csv exports the sheet as CSV through excelize.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}

			if csvOutput {
				if sheetName == "" {
					return fmt.Errorf("--csv needs --sheet")
				}
				return exportCSV(args[0], sheetName)
			}

			doc, err := env.Open(args[0])
			if err != nil {
				return err
			}

			if sheetName != "" {
				ws, err := doc.Sheet(sheetName)
				if err != nil {
					return err
				}
				rows := ws.Rows()
				return env.Out.Result(rows, func(w io.Writer) error {
					return output.PrintLong(renderRows(rows))
				})
			}

			infos := Describe(doc)
			return env.Out.Result(infos, func(w io.Writer) error {
				return printSheets(w, infos)
			})
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "Print the cells of the named sheet")
	cmd.Flags().BoolVar(&csvOutput, "csv", false, "Export --sheet as CSV")

	return cmd
}

func exportCSV(path, sheetName string) error {
	if err := cli.CheckPackagePath(path); err != nil {
		return err
	}
	wb, err := xlsx.ReadFile(path)
	if err != nil {
		return err
	}
	sheet, err := wb.GetSheet(sheetName)
	if err != nil {
		return err
	}
	return output.PrintLong(sheet.ToCSV())
}

func printSheets(w io.Writer, infos []SheetInfo) error {
	bold := color.New(color.Bold)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tCODE NAME\tPATH\tCELLS\tDRAWINGS\tPARTS")
	for i, info := range infos {
		title := info.Title
		if info.Active {
			title = bold.Sprint(title) + " *"
		}
		if info.State != "" {
			title += " (" + info.State + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			i, title, info.CodeName, info.Path, info.Cells, len(info.Drawings), formatParts(info.Parts))
	}
	return tw.Flush()
}

func formatParts(parts map[string]int) string {
	if len(parts) == 0 {
		return "-"
	}
	var out []string
	for _, kind := range workbook.AllKinds {
		if n, ok := parts[kind.String()]; ok {
			out = append(out, fmt.Sprintf("%s=%d", kind, n))
		}
	}
	return strings.Join(out, " ")
}

func renderRows(rows [][]string) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	return b.String()
}
