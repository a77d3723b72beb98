package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	"github.com/klytics/sheetkit/internal/pipeline/actions"
)

// editResult is the JSON shape shared by the editing commands.
type editResult struct {
	File     string `json:"file"`
	Sheet    string `json:"sheet"`
	CodeName string `json:"codeName,omitempty"`
	Path     string `json:"path,omitempty"`
	Cell     string `json:"cell,omitempty"`
	Value    string `json:"value,omitempty"`
}

func newCloneCommand() *cobra.Command {
	var title, out string

	cmd := &cobra.Command{
		Use:   "clone <file.xlsx> <sheet>",
		Short: "Copy a worksheet with every part it owns",
		Long: `Clones a worksheet. The copy gets a new code name, new part paths and its
own copies of drawings, printer settings, comments and form controls; images
stay shared. Without --title the copy is named "<sheet> (2)".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			doc, err := env.Open(args[0])
			if err != nil {
				return err
			}
			src, err := doc.Sheet(args[1])
			if err != nil {
				return err
			}
			if title == "" {
				title = doc.FreeTitle(src.Title())
			}
			clone, err := doc.CloneSheetAs(src, title)
			if err != nil {
				return err
			}
			dst := cli.Target(args[0], out)
			if err := env.Save(doc, dst); err != nil {
				return err
			}

			res := editResult{File: dst, Sheet: clone.Title(), CodeName: string(clone.CodeName()), Path: clone.Path()}
			return env.Out.Result(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s Cloned %q as %q (%s, %s)\n",
					color.GreenString("✓"), src.Title(), clone.Title(), clone.CodeName(), clone.Path())
				return err
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title of the copy")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of the input")
	return cmd
}

func newSetCommand() *cobra.Command {
	var kind, out string

	cmd := &cobra.Command{
		Use:   "set <file.xlsx> <sheet> <cell> <value>",
		Short: "Set a cell value or formula",
		Long: `Sets one cell. A value starting with "=" is stored as a formula. --type
selects string (default), number or bool.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			doc, err := env.Open(args[0])
			if err != nil {
				return err
			}
			ws, err := doc.Sheet(args[1])
			if err != nil {
				return err
			}

			ref, text := args[2], args[3]
			if strings.HasPrefix(text, "=") && kind == "" {
				err = ws.SetFormula(ref, strings.TrimPrefix(text, "="))
			} else {
				var v interface{}
				v, err = actions.ParseValue(text, kind)
				if err == nil {
					err = ws.SetCell(ref, v)
				}
			}
			if err != nil {
				return err
			}

			dst := cli.Target(args[0], out)
			if err := env.Save(doc, dst); err != nil {
				return err
			}
			res := editResult{File: dst, Sheet: ws.Title(), Cell: strings.ToUpper(ref), Value: text}
			return env.Out.Result(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s %s!%s = %s\n", color.GreenString("✓"), ws.Title(), res.Cell, text)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&kind, "type", "", "Value type: string, number or bool")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of the input")
	return cmd
}

func newRenameCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "rename <file.xlsx> <sheet> <new-title>",
		Short: "Rename a worksheet",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			doc, err := env.Open(args[0])
			if err != nil {
				return err
			}
			ws, err := doc.Sheet(args[1])
			if err != nil {
				return err
			}
			if err := ws.SetTitle(args[2]); err != nil {
				return err
			}
			dst := cli.Target(args[0], out)
			if err := env.Save(doc, dst); err != nil {
				return err
			}
			res := editResult{File: dst, Sheet: ws.Title(), CodeName: string(ws.CodeName())}
			return env.Out.Result(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s Renamed %q to %q\n", color.GreenString("✓"), args[1], ws.Title())
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of the input")
	return cmd
}

func newRemoveCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "remove <file.xlsx> <sheet>",
		Short: "Delete a worksheet and the parts it owns",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			doc, err := env.Open(args[0])
			if err != nil {
				return err
			}
			ws, err := doc.Sheet(args[1])
			if err != nil {
				return err
			}
			if err := doc.RemoveSheet(ws); err != nil {
				return err
			}
			dst := cli.Target(args[0], out)
			if err := env.Save(doc, dst); err != nil {
				return err
			}
			res := editResult{File: dst, Sheet: ws.Title(), CodeName: string(ws.CodeName())}
			return env.Out.Result(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s Removed %q\n", color.GreenString("✓"), ws.Title())
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of the input")
	return cmd
}
