package container

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"
)

// ZipReader exposes the entries of a zip archive held in memory.
type ZipReader struct {
	names []string
	files map[string]*zip.File
}

// OpenZip parses a zip archive from bytes. When the archive contains the same
// name twice, the first entry wins for reading; use DuplicateEntries to detect
// such archives.
func OpenZip(data []byte) (*ZipReader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid zip archive: %w", err)
	}

	r := &ZipReader{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if _, ok := r.files[f.Name]; ok {
			continue
		}
		r.files[f.Name] = f
		r.names = append(r.names, f.Name)
	}
	return r, nil
}

// OpenZipFile reads the archive at path into memory and parses it.
func OpenZipFile(path string) (*ZipReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s — check that the path is correct: %w", path, os.ErrNotExist)
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return OpenZip(data)
}

// ListEntries returns entry names in archive order.
func (r *ZipReader) ListEntries() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// ReadEntry returns the uncompressed bytes of one entry.
func (r *ZipReader) ReadEntry(path string) ([]byte, error) {
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// ZipOptions controls how entries are stored.
type ZipOptions struct {
	// Store disables compression.
	Store bool
	// Modified is stamped on every entry. Zero means the zip epoch, which keeps
	// output byte-stable across saves.
	Modified time.Time
}

// ZipWriter writes entries into a zip stream and rejects duplicate names.
type ZipWriter struct {
	zw   *zip.Writer
	opts ZipOptions
	seen map[string]struct{}
}

// NewZipWriter returns a writer targeting w. Close must be called to flush the
// central directory.
func NewZipWriter(w io.Writer, opts ZipOptions) *ZipWriter {
	return &ZipWriter{
		zw:   zip.NewWriter(w),
		opts: opts,
		seen: make(map[string]struct{}),
	}
}

// WriteEntry adds one entry to the archive.
func (z *ZipWriter) WriteEntry(path string, data []byte) error {
	if _, ok := z.seen[path]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, path)
	}
	z.seen[path] = struct{}{}

	header := &zip.FileHeader{
		Name:   path,
		Method: zip.Deflate,
	}
	if z.opts.Store {
		header.Method = zip.Store
	}
	if !z.opts.Modified.IsZero() {
		header.Modified = z.opts.Modified
	}

	w, err := z.zw.CreateHeader(header)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Close finalizes the archive.
func (z *ZipWriter) Close() error {
	if err := z.zw.Close(); err != nil {
		return &IOError{Op: "close", Err: err}
	}
	return nil
}

// DuplicateEntries returns every entry name that occurs more than once in the
// central directory of a zip archive.
func DuplicateEntries(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid zip archive: %w", err)
	}

	counts := make(map[string]int, len(zr.File))
	var dups []string
	for _, f := range zr.File {
		counts[f.Name]++
		if counts[f.Name] == 2 {
			dups = append(dups, f.Name)
		}
	}
	return dups, nil
}
