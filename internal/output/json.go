package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klytics/sheetkit/cmd/version"
	"github.com/klytics/sheetkit/internal/workbook"
)

// Exit codes for consistent error reporting.
const (
	ExitOK          = 0 // success
	ExitUserError   = 1 // bad flags, missing file, unknown sheet or title clash
	ExitSystemError = 2 // IO error, malformed or inconsistent package
)

// JSONResult is the standard JSON output envelope for all commands.
type JSONResult struct {
	OK      bool        `json:"ok"`
	Command string      `json:"command"`
	Version string      `json:"version"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"`
}

var userErrors = []error{
	fs.ErrNotExist,
	workbook.ErrSheetNotFound,
	workbook.ErrDuplicateTitle,
	workbook.ErrInvalidTitle,
	workbook.ErrUntitledSheet,
	workbook.ErrInvalidCell,
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return ExitUserError
		}
	}
	return ExitSystemError
}

// PrintJSON writes a standard success JSON result to stdout.
func PrintJSON(cmd string, data interface{}) error {
	return FprintJSON(os.Stdout, cmd, data)
}

// FprintJSON writes a standard success JSON result to w.
func FprintJSON(w io.Writer, cmd string, data interface{}) error {
	return encode(w, JSONResult{
		OK:      true,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	})
}

// PrintJSONError writes a standard error JSON result to stdout. The code is
// derived from err.
func PrintJSONError(cmd string, err error) error {
	result := JSONResult{
		OK:      false,
		Command: cmd,
		Version: version.Version,
		Error:   err.Error(),
		Code:    ExitCode(err),
	}
	if encErr := encode(os.Stdout, result); encErr != nil {
		return fmt.Errorf("could not encode JSON error: %w", encErr)
	}
	return nil
}

func encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
