package archive

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	"github.com/klytics/sheetkit/internal/workbook"
)

// PartInfo names the owner of one output path.
type PartInfo struct {
	Path  string `json:"path"`
	Owner string `json:"owner"`
	Kind  string `json:"kind"`
}

// ListParts returns every path the next write of doc produces, with the
// worksheet that owns it. Paths without a worksheet owner are "package".
func ListParts(doc *workbook.Document) ([]PartInfo, error) {
	paths, err := doc.Paths()
	if err != nil {
		return nil, err
	}

	type owner struct{ code, kind string }
	owners := make(map[string]owner)
	for _, ws := range doc.Sheets() {
		code := string(ws.CodeName())
		owners[ws.Path()] = owner{code, "worksheet"}
		for _, dr := range ws.Drawings() {
			owners[dr.Path()] = owner{code, "drawing"}
		}
		for _, kind := range workbook.AllKinds {
			for _, p := range ws.OpaqueParts(kind) {
				if p.Path != "" {
					owners[p.Path] = owner{code, kind.String()}
				}
			}
		}
	}
	for _, p := range doc.SharedParts() {
		owners[p] = owner{"package", "shared"}
	}

	out := make([]PartInfo, 0, len(paths))
	for _, p := range paths {
		o, ok := owners[p]
		if !ok {
			o = owner{"package", "structure"}
		}
		out = append(out, PartInfo{Path: p, Owner: o.code, Kind: o.kind})
	}
	return out, nil
}

func newPartsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parts <file.xlsx>",
		Short: "List every part a save would write, with its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			doc, err := env.Open(args[0])
			if err != nil {
				return err
			}
			parts, err := ListParts(doc)
			if err != nil {
				return err
			}
			return env.Out.Result(parts, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "PATH\tOWNER\tKIND")
				for _, p := range parts {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Path, p.Owner, p.Kind)
				}
				return tw.Flush()
			})
		},
	}
}
