// Package container provides the path-addressed archive that spreadsheet
// packages are read from and written to.
//
// Entry paths are slash separated and never carry a leading slash
// ("xl/worksheets/sheet1.xml"). Writers in this package refuse to write the
// same path twice; callers must never rely on overwrite semantics.
package container

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by ReadEntry when the archive has no such entry.
	ErrNotFound = errors.New("container: entry not found")

	// ErrDuplicateEntry is returned by WriteEntry when the path was already written.
	ErrDuplicateEntry = errors.New("container: duplicate entry")
)

// Reader lists and reads archive entries.
type Reader interface {
	ListEntries() []string
	ReadEntry(path string) ([]byte, error)
}

// Writer appends entries to an archive.
type Writer interface {
	WriteEntry(path string, data []byte) error
}

// IOError wraps a failure of the underlying storage. The wrapped error is
// kept unchanged so callers can test it with errors.Is / errors.As.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("container: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("container: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
