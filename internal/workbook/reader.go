package workbook

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/klytics/sheetkit/internal/container"
)

// KeepCalcChain keeps xl/calcChain.xml on read. By default it is dropped,
// since it goes stale as soon as cells are edited or sheets cloned and the
// application rebuilds it on open.
func KeepCalcChain(keep bool) Option {
	return func(d *Document) { d.keepCalcChain = keep }
}

// Open reads the spreadsheet package at path.
func Open(path string, opts ...Option) (*Document, error) {
	r, err := container.OpenZipFile(path)
	if err != nil {
		return nil, err
	}
	return Read(r, opts...)
}

// ReadBytes reads a spreadsheet package held in memory.
func ReadBytes(data []byte, opts ...Option) (*Document, error) {
	r, err := container.OpenZip(data)
	if err != nil {
		return nil, err
	}
	return Read(r, opts...)
}

// Read materializes a Document from r. Every entry of the archive ends up in
// exactly one place: a worksheet, a drawing, an opaque part, or the shared
// parts carried verbatim. Paths and code names found in the archive are
// claimed through the Allocator so later allocations never collide with them.
func Read(r container.Reader, opts ...Option) (*Document, error) {
	d := newDocument(opts...)
	rd := &reader{
		r:        r,
		d:        d,
		entries:  make(map[string]bool),
		consumed: make(map[string]bool),
		pending:  make(map[*Worksheet][]*OpaquePart),
	}
	// Copies made while splitting shared parts must not land on an entry
	// that is claimed later.
	for _, e := range r.ListEntries() {
		rd.entries[e] = true
		d.alloc.Seed(e)
	}
	if err := rd.read(); err != nil {
		return nil, err
	}
	return d, nil
}

type reader struct {
	r        container.Reader
	d        *Document
	entries  map[string]bool
	consumed map[string]bool
	sst      []string

	// Opaque parts found per sheet before its code name is settled.
	pending map[*Worksheet][]*OpaquePart
}

func (rd *reader) readEntry(p string) ([]byte, error) {
	data, err := rd.r.ReadEntry(p)
	if err != nil {
		if errors.Is(err, container.ErrNotFound) {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedPackage, p)
		}
		return nil, err
	}
	rd.consumed[p] = true
	return data, nil
}

// readRels returns the relationships of part p, or nil when it has none.
func (rd *reader) readRels(p string) ([]Relationship, error) {
	rp := relsPathFor(p)
	if !rd.entries[rp] {
		return nil, nil
	}
	data, err := rd.readEntry(rp)
	if err != nil {
		return nil, err
	}
	return parseRels(data, p)
}

type xlsxSheets struct {
	Sheets []xlsxSheet `xml:"sheet"`
}

type xlsxSheet struct {
	Name    string     `xml:"name,attr"`
	SheetID int        `xml:"sheetId,attr"`
	State   string     `xml:"state,attr"`
	Attrs   []xml.Attr `xml:",any,attr"`
}

// relID returns the r:id attribute and the prefix it was written with.
func (s xlsxSheet) relID() (id, prefix string, rest []xml.Attr) {
	for _, a := range s.Attrs {
		if a.Name.Local == "id" && a.Name.Space != "" && id == "" {
			id, prefix = a.Value, a.Name.Space
			continue
		}
		rest = append(rest, a)
	}
	return id, prefix, rest
}

func (rd *reader) read() error {
	d := rd.d

	ctData, err := rd.readEntry(contentTypesPath)
	if err != nil {
		return err
	}
	types, err := parseContentTypes(ctData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	d.types = types

	rootRels, err := rd.readRels("")
	if err != nil {
		return err
	}
	for _, rel := range rootRels {
		if rel.Type == RelTypeOfficeDocument && !rel.External {
			d.bookPath = rel.Target
			break
		}
	}
	if d.bookPath == "" {
		return fmt.Errorf("%w: no office document relationship", ErrMalformedPackage)
	}
	// The package rels point at parts whose paths never change.
	rd.consumed[relsPathFor("")] = false

	if err := rd.readWorkbook(); err != nil {
		return err
	}
	rd.readShared()

	d.log.Verbose("read %d sheets, %d shared parts, %d paths", len(d.sheets), len(d.sharedOrder), len(d.alloc.paths))
	return nil
}

func (rd *reader) readWorkbook() error {
	d := rd.d
	raw, err := rd.readEntry(d.bookPath)
	if err != nil {
		return err
	}
	d.bookContentType = d.types.lookup(d.bookPath)
	d.alloc.Claim(d.bookPath)

	head, inner, tail, prefix, ok := splitElement(raw, sheetsOpen, "sheets")
	if !ok {
		return fmt.Errorf("%w: %s has no <sheets> element", ErrMalformedPackage, d.bookPath)
	}
	d.bookHead = append([]byte(nil), head...)
	d.bookTail = append([]byte(nil), tail...)
	d.sheetsPrefix = prefix

	var sheets xlsxSheets
	wrapped := append(append([]byte("<sheets>"), inner...), "</sheets>"...)
	if err := xml.Unmarshal(wrapped, &sheets); err != nil {
		return fmt.Errorf("%w: could not parse sheets of %s: %v", ErrMalformedPackage, d.bookPath, err)
	}

	rels, err := rd.readRels(d.bookPath)
	if err != nil {
		return err
	}
	byID := make(map[string]Relationship, len(rels))
	for _, rel := range rels {
		byID[rel.ID] = rel
		switch rel.Type {
		case RelTypeSharedStrings:
			data, err := rd.readEntry(rel.Target)
			if err != nil {
				return err
			}
			if rd.sst, err = parseSharedStrings(data); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedPackage, err)
			}
			continue
		case RelTypeCalcChain:
			if !d.keepCalcChain {
				rd.consumed[rel.Target] = true
				d.log.Verbose("dropped %s", rel.Target)
				continue
			}
		}
		d.bookRels = append(d.bookRels, rel)
	}

	d.relPrefix = "r"
	read := make([]*Worksheet, 0, len(sheets.Sheets))
	for _, s := range sheets.Sheets {
		id, relPrefix, rest := s.relID()
		if relPrefix != "" {
			d.relPrefix = relPrefix
		}
		rel, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: sheet %q refers to unknown relationship %q", ErrMalformedPackage, s.Name, id)
		}
		if rel.Type != RelTypeWorksheet {
			return fmt.Errorf("workbook: sheet %q is a %s, only worksheets are supported", s.Name, relTypeName(rel.Type))
		}
		ws, err := rd.readSheet(rel.Target)
		if err != nil {
			return fmt.Errorf("could not read sheet %q: %w", s.Name, err)
		}
		ws.title = s.Name
		ws.relID = id
		ws.sheetID = s.SheetID
		ws.state = s.State
		ws.sheetAttrs = rest
		d.alloc.ClaimSheetID(s.SheetID)
		read = append(read, ws)
	}

	// Code names written in the archive win; sheets without one, or with a
	// duplicate, get a fresh one afterwards.
	for _, ws := range read {
		if code := readCodeName(ws.head); d.alloc.ClaimCodeName(code) {
			ws.codeName = code
		}
	}
	for _, ws := range read {
		if ws.codeName != "" {
			continue
		}
		code, err := d.alloc.NewCodeName()
		if err != nil {
			return err
		}
		d.log.Verbose("sheet %q has no usable code name, assigned %s", ws.title, code)
		ws.codeName = code
	}
	for _, ws := range read {
		ws.doc = d
		if ws.drawing != nil {
			ws.drawing.owner = ws.codeName
		}
		for _, p := range rd.pending[ws] {
			p.Owner = ws.codeName
			d.store.adopt(p)
		}
		d.sheets = append(d.sheets, ws)
	}

	d.activeTab = readActiveTab(d.bookHead)
	if d.activeTab >= len(d.sheets) {
		d.activeTab = len(d.sheets) - 1
	}
	if d.activeTab < 0 {
		d.activeTab = 0
	}
	return nil
}

func relTypeName(t string) string {
	if i := strings.LastIndex(t, "/"); i >= 0 {
		return t[i+1:]
	}
	return t
}

// claimOrCopy registers p. When another owner already holds it, a fresh path
// in the same namespace is issued so the two owners stop sharing one entry.
func (rd *reader) claimOrCopy(p string, fallback Namespace) (string, error) {
	if rd.d.alloc.Claim(p) {
		return p, nil
	}
	ns, _, ok := NamespaceOf(p)
	if !ok {
		ns = fallback
	}
	fresh, err := rd.d.alloc.NewPath(ns)
	if err != nil {
		return "", err
	}
	rd.d.log.Verbose("%s is referenced by more than one sheet, copied to %s", p, fresh)
	return fresh, nil
}

func (rd *reader) readSheet(p string) (*Worksheet, error) {
	raw, err := rd.readEntry(p)
	if err != nil {
		return nil, err
	}
	sheetPath, err := rd.claimOrCopy(p, nsWorksheet)
	if err != nil {
		return nil, err
	}

	head, inner, tail, prefix, ok := splitElement(raw, sheetDataOpen, "sheetData")
	if !ok {
		return nil, fmt.Errorf("%w: %s has no <sheetData> element", ErrMalformedPackage, p)
	}
	ws := &Worksheet{
		path:       sheetPath,
		grid:       newGrid(),
		head:       append([]byte(nil), head...),
		dataPrefix: prefix,
	}
	if err := parseSheetData(ws.grid, inner, rd.sst); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPackage, p, err)
	}

	segments, blocks := splitAlternateContent(tail)
	for _, seg := range segments {
		ws.tail = append(ws.tail, append([]byte(nil), seg...))
	}
	for _, block := range blocks {
		rd.pending[ws] = append(rd.pending[ws], &OpaquePart{
			Kind:    KindAlternateContent,
			Payload: append([]byte(nil), block...),
		})
	}

	rels, err := rd.readRels(p)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		switch {
		case rel.External || !rd.entries[rel.Target]:
			ws.links = append(ws.links, rel)
		case rel.Type == RelTypeDrawing && ws.drawing == nil:
			dr, err := rd.readDrawing(rel)
			if err != nil {
				return nil, err
			}
			ws.drawing = dr
		default:
			part, err := rd.readPart(rel)
			if err != nil {
				return nil, err
			}
			rd.pending[ws] = append(rd.pending[ws], part)
		}
	}
	return ws, nil
}

func (rd *reader) readDrawing(rel Relationship) (*Drawing, error) {
	raw, err := rd.readEntry(rel.Target)
	if err != nil {
		return nil, err
	}
	rels, err := rd.readRels(rel.Target)
	if err != nil {
		return nil, err
	}
	p, err := rd.claimOrCopy(rel.Target, nsDrawing)
	if err != nil {
		return nil, err
	}
	return &Drawing{path: p, relID: rel.ID, raw: raw, rels: rels}, nil
}

func (rd *reader) readPart(rel Relationship) (*OpaquePart, error) {
	payload, err := rd.readEntry(rel.Target)
	if err != nil {
		return nil, err
	}
	rels, err := rd.readRels(rel.Target)
	if err != nil {
		return nil, err
	}
	kind := kindForRelType(rel.Type)
	p, err := rd.claimOrCopy(rel.Target, kindNamespaces[kind])
	if err != nil {
		return nil, err
	}
	return &OpaquePart{
		Kind:         kind,
		Payload:      payload,
		OriginalPath: rel.Target,
		Path:         p,
		RelID:        rel.ID,
		RelType:      rel.Type,
		ContentType:  rd.d.types.lookup(rel.Target),
		Rels:         rels,
	}, nil
}

// readShared carries every entry nobody claimed through verbatim. Rels parts
// of consumed parts are regenerated on write; rels parts whose source part
// does not exist are dropped.
func (rd *reader) readShared() {
	d := rd.d
	for _, e := range rd.r.ListEntries() {
		if rd.consumed[e] {
			continue
		}
		if isRelsPath(e) && e != relsPathFor("") {
			if owner := relsOwner(e); !rd.entries[owner] || rd.consumed[owner] {
				d.log.Verbose("dropped relationships %s", e)
				continue
			}
		}
		data, err := rd.r.ReadEntry(e)
		if err != nil {
			d.log.Error("could not read %s: %v", e, err)
			continue
		}
		if !d.alloc.Claim(e) {
			d.log.Error("%s is already owned by a sheet, dropped the shared copy", e)
			continue
		}
		d.addShared(e, data, d.types.lookup(e))
	}
}

// relsOwner is the inverse of relsPathFor.
func relsOwner(relsPath string) string {
	dir := strings.TrimSuffix(relsPath[:strings.LastIndex(relsPath, "_rels/")], "/")
	base := strings.TrimSuffix(relsPath[strings.LastIndex(relsPath, "/")+1:], ".rels")
	if dir == "" {
		return base
	}
	return dir + "/" + base
}
