package container

import "fmt"

// Memory is an in-memory archive. It is both a Reader and a Writer and is
// mostly useful in tests and for staging a package before zipping it.
type Memory struct {
	names   []string
	entries map[string][]byte
}

// NewMemory returns an empty archive.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// ListEntries returns entry names in write order.
func (m *Memory) ListEntries() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// ReadEntry returns a copy of the stored bytes.
func (m *Memory) ReadEntry(path string) ([]byte, error) {
	data, ok := m.entries[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteEntry stores a copy of data under path.
func (m *Memory) WriteEntry(path string, data []byte) error {
	if _, ok := m.entries[path]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, path)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.entries[path] = buf
	m.names = append(m.names, path)
	return nil
}

// Len returns the number of entries.
func (m *Memory) Len() int { return len(m.names) }

// CopyTo writes every entry, in order, to w.
func (m *Memory) CopyTo(w Writer) error {
	for _, name := range m.names {
		if err := w.WriteEntry(name, m.entries[name]); err != nil {
			return err
		}
	}
	return nil
}
