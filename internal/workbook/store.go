package workbook

import (
	"fmt"
)

// OpaquePart is a part the model preserves without interpreting. Payload is
// copied verbatim on clone; Path is fixed when the part is created and never
// recomputed by the writer.
type OpaquePart struct {
	Kind         PartKind
	Owner        CodeName
	Payload      []byte
	OriginalPath string
	Path         string
	RelID        string
	RelType      string
	ContentType  string

	// Rels are the part's own relationships. Their targets are shared parts
	// and are not duplicated when the part is copied.
	Rels []Relationship
}

func (p *OpaquePart) copyFor(owner CodeName, path string) *OpaquePart {
	return &OpaquePart{
		Kind:         p.Kind,
		Owner:        owner,
		Payload:      append([]byte(nil), p.Payload...),
		OriginalPath: p.OriginalPath,
		Path:         path,
		RelID:        p.RelID,
		RelType:      p.RelType,
		ContentType:  p.ContentType,
		Rels:         cloneRels(p.Rels),
	}
}

// Store holds the opaque parts of every worksheet of a Document, keyed by the
// worksheet's code name. Parts of one owner keep their insertion order.
type Store struct {
	doc   *Document
	parts map[CodeName][]*OpaquePart
}

func newStore(doc *Document) *Store {
	return &Store{doc: doc, parts: make(map[CodeName][]*OpaquePart)}
}

// Put adds a new part of kind to owner and returns it. Parts with an archive
// entry of their own get a fresh path and relationship ID.
func (s *Store) Put(owner CodeName, kind PartKind, payload []byte) (*OpaquePart, error) {
	ws := s.doc.SheetByCodeName(owner)
	if ws == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodeName, owner)
	}
	switch kind {
	case KindVBAProject:
		return nil, fmt.Errorf("workbook: %s parts belong to the workbook, not a sheet", kind)
	case KindOther:
		// Relationship and content type are only known for parts read from an archive.
		return nil, fmt.Errorf("workbook: %s parts can only be read from an archive", kind)
	}

	part := &OpaquePart{
		Kind:    kind,
		Owner:   owner,
		Payload: append([]byte(nil), payload...),
	}
	if !kind.Inline() {
		tx := s.doc.alloc.Begin()
		defer tx.Rollback()

		p, err := tx.NewPath(kindNamespaces[kind])
		if err != nil {
			return nil, err
		}
		relID, err := tx.NewRelID(ws.relIDs())
		if err != nil {
			return nil, err
		}
		tx.Commit()

		part.Path = p
		part.OriginalPath = p
		part.RelID = relID
		part.RelType = kindRelTypes[kind]
		part.ContentType = kindContentTypes[kind]
	}

	s.parts[owner] = append(s.parts[owner], part)
	s.doc.log.Verbose("stored %s part for %s at %q", kind, owner, part.Path)
	return part, nil
}

// Get returns copies of the payloads of owner's parts of kind, in order.
func (s *Store) Get(owner CodeName, kind PartKind) [][]byte {
	var out [][]byte
	for _, p := range s.parts[owner] {
		if p.Kind == kind {
			out = append(out, append([]byte(nil), p.Payload...))
		}
	}
	return out
}

// Parts returns owner's parts of every kind, in order.
func (s *Store) Parts(owner CodeName) []*OpaquePart {
	out := make([]*OpaquePart, len(s.parts[owner]))
	copy(out, s.parts[owner])
	return out
}

// Count returns how many parts of kind owner has.
func (s *Store) Count(owner CodeName, kind PartKind) int {
	n := 0
	for _, p := range s.parts[owner] {
		if p.Kind == kind {
			n++
		}
	}
	return n
}

// Owners returns every code name that owns at least one part.
func (s *Store) Owners() []CodeName {
	out := make([]CodeName, 0, len(s.parts))
	for owner, parts := range s.parts {
		if len(parts) > 0 {
			out = append(out, owner)
		}
	}
	return out
}

// CopyAllFor duplicates every part owned by src and gives the copies to dst,
// each at a freshly allocated path. Either all parts are copied or none.
func (s *Store) CopyAllFor(src, dst CodeName) error {
	if s.doc.SheetByCodeName(src) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCodeName, src)
	}
	if s.doc.SheetByCodeName(dst) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCodeName, dst)
	}

	tx := s.doc.alloc.Begin()
	defer tx.Rollback()

	copies, err := s.copyParts(tx, src, dst, s.doc.SheetByCodeName(dst).relIDs())
	if err != nil {
		return err
	}
	tx.Commit()
	s.parts[dst] = append(s.parts[dst], copies...)
	return nil
}

// copyParts prepares copies of src's parts for dst without inserting them.
// Relationship IDs are kept unless they collide with taken, so alternate
// content that refers to them stays valid.
func (s *Store) copyParts(tx *Tx, src, dst CodeName, taken []string) ([]*OpaquePart, error) {
	used := make(map[string]bool, len(taken))
	for _, id := range taken {
		used[id] = true
	}
	var copies []*OpaquePart
	for _, p := range s.parts[src] {
		newPath := ""
		if !p.Kind.Inline() {
			ns, _, ok := NamespaceOf(p.Path)
			if !ok {
				ns = kindNamespaces[p.Kind]
			}
			var err error
			newPath, err = tx.NewPath(ns)
			if err != nil {
				return nil, fmt.Errorf("could not copy %s part %q: %w", p.Kind, p.Path, err)
			}
		}
		c := p.copyFor(dst, newPath)
		if c.RelID != "" {
			if used[c.RelID] {
				ids := make([]string, 0, len(used))
				for id := range used {
					ids = append(ids, id)
				}
				relID, err := tx.NewRelID(ids)
				if err != nil {
					return nil, err
				}
				c.RelID = relID
			}
			used[c.RelID] = true
		}
		copies = append(copies, c)
	}
	return copies, nil
}

// adopt inserts a part read from an archive. Its path is already registered.
func (s *Store) adopt(p *OpaquePart) {
	s.parts[p.Owner] = append(s.parts[p.Owner], p)
}

// Remove drops every part of owner and releases their paths.
func (s *Store) Remove(owner CodeName) {
	for _, p := range s.parts[owner] {
		if p.Path != "" {
			s.doc.alloc.Release(p.Path)
		}
	}
	delete(s.parts, owner)
}
