// Package output provides formatting utilities for CLI output.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Format represents an output format.
type Format int

const (
	// FormatText is plain text output.
	FormatText Format = iota
	// FormatJSON is the JSON envelope.
	FormatJSON
)

// ParseFormat maps the output.format config value to a Format.
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}

// Writer handles formatted output to a destination.
type Writer struct {
	dest    io.Writer
	format  Format
	command string
}

// NewWriter creates a new output writer with the given format.
func NewWriter(format Format) *Writer {
	return &Writer{
		dest:   os.Stdout,
		format: format,
	}
}

// ForCommand returns a writer for cmd. The --json flag wins over the
// configured default format.
func ForCommand(cmd *cobra.Command, fallback Format) *Writer {
	format := fallback
	if jsonRequested(cmd) {
		format = FormatJSON
	}
	return &Writer{
		dest:    cmd.OutOrStdout(),
		format:  format,
		command: cmd.CommandPath(),
	}
}

// jsonRequested looks at the local flags and at the persistent flags of the
// parents, which cobra only merges into Flags() once the command is parsed.
func jsonRequested(cmd *cobra.Command) bool {
	if v, err := cmd.Flags().GetBool("json"); err == nil && v {
		return true
	}
	v, err := cmd.InheritedFlags().GetBool("json")
	return err == nil && v
}

// JSON reports whether results are written as the JSON envelope.
func (w *Writer) JSON() bool { return w.format == FormatJSON }

// Result writes data as the JSON envelope, or calls text when the writer is
// in text mode.
func (w *Writer) Result(data interface{}, text func(io.Writer) error) error {
	if w.format == FormatJSON {
		return FprintJSON(w.dest, w.command, data)
	}
	return text(w.dest)
}

// WriteText writes plain text.
func (w *Writer) WriteText(s string) error {
	_, err := fmt.Fprint(w.dest, s)
	return err
}

// WriteLn writes a line of text.
func (w *Writer) WriteLn(s string) error {
	_, err := fmt.Fprintln(w.dest, s)
	return err
}

// WriteError writes an error message to stderr.
func WriteError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
