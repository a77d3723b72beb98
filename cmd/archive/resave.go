package archive

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/cli"
	"github.com/klytics/sheetkit/internal/config"
)

func newResaveCommand() *cobra.Command {
	var out string
	var store bool

	cmd := &cobra.Command{
		Use:   "resave <file.xlsx>",
		Short: "Read a package and write it back",
		Long: `Reads a package into the model and writes it again. Opaque parts are
copied byte for byte; calcChain.xml is dropped unless read.keep_calc_chain is
set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.Setup(cmd)
			if err != nil {
				return err
			}
			if store {
				env.Config.Write.Compression = config.CompressionStore
			}
			doc, err := env.Open(args[0])
			if err != nil {
				return err
			}
			dst := cli.Target(args[0], out)
			if err := env.Save(doc, dst); err != nil {
				return err
			}
			paths, err := doc.Paths()
			if err != nil {
				return err
			}
			res := map[string]interface{}{"file": dst, "entries": len(paths)}
			return env.Out.Result(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s Wrote %s (%d entries)\n", color.GreenString("✓"), dst, len(paths))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of the input")
	cmd.Flags().BoolVar(&store, "store", false, "Write entries without compression")
	return cmd
}
