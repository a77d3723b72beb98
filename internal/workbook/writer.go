package workbook

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/klytics/sheetkit/internal/container"
)

// SaveOptions controls how an archive is produced.
type SaveOptions struct {
	// NoCompression stores entries without deflating them.
	NoCompression bool
	// Direct writes the destination file in place. By default SaveAs writes a
	// temporary file next to it and renames it over the destination only
	// once the archive is complete.
	Direct bool
}

// Write emits every part of d into w. It only reads d: paths, code names and
// relationship IDs were fixed when their owners were created, so Write may be
// called any number of times, before and after further edits.
//
// Nothing is written unless the whole package passes its integrity checks.
func Write(d *Document, w container.Writer) error {
	p, err := buildPlan(d)
	if err != nil {
		return err
	}
	for _, e := range p.entries {
		if err := w.WriteEntry(e.path, e.data); err != nil {
			return err
		}
	}
	d.log.Verbose("wrote %d entries", len(p.entries))
	return nil
}

// WriteTo writes d as a zip archive to w.
func WriteTo(d *Document, w io.Writer, opts SaveOptions) error {
	p, err := buildPlan(d)
	if err != nil {
		return err
	}
	zw := container.NewZipWriter(w, container.ZipOptions{Store: opts.NoCompression})
	for _, e := range p.entries {
		if err := zw.WriteEntry(e.path, e.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// WriteBytes returns d as zip archive bytes.
func WriteBytes(d *Document, opts SaveOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTo(d, &buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveAs writes d to path. Unless opts.Direct is set, an existing file at path
// is replaced only after the new archive has been fully written.
func SaveAs(d *Document, path string, opts SaveOptions) error {
	// Fail on integrity errors before touching the file system.
	if err := d.Validate(); err != nil {
		return err
	}
	write := container.WriteFileAtomic
	if opts.Direct {
		write = container.WriteFile
	}
	if err := write(path, func(w io.Writer) error { return WriteTo(d, w, opts) }); err != nil {
		return err
	}
	d.log.Info("saved %s", path)
	return nil
}

type planEntry struct {
	path string
	data []byte
}

// plan is the complete output of one write: every entry with its bytes, in
// emission order.
type plan struct {
	entries []planEntry
	seen    map[string]string // path -> what produced it
	types   map[string]string // path -> content type
}

func (p *plan) add(path string, data []byte, contentType, origin string) error {
	if prev, ok := p.seen[path]; ok {
		return fmt.Errorf("%w: %s is produced by both %s and %s", ErrPackageIntegrity, path, prev, origin)
	}
	p.seen[path] = origin
	p.types[path] = contentType
	p.entries = append(p.entries, planEntry{path: path, data: data})
	return nil
}

func (p *plan) addRels(source string, rels []Relationship, origin string) error {
	if len(rels) == 0 {
		return nil
	}
	ids := make(map[string]bool, len(rels))
	for _, r := range rels {
		if ids[r.ID] {
			return fmt.Errorf("%w: relationship %s used twice in the relationships of %s", ErrPackageIntegrity, r.ID, source)
		}
		ids[r.ID] = true
	}
	data, err := marshalRels(source, rels)
	if err != nil {
		return err
	}
	return p.add(relsPathFor(source), data, ContentTypeRelationships, origin)
}

func (p *plan) paths() []string {
	out := make([]string, 0, len(p.seen))
	for path := range p.seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func buildPlan(d *Document) (*plan, error) {
	if err := checkSheets(d); err != nil {
		return nil, err
	}
	p := &plan{seen: make(map[string]string), types: make(map[string]string)}

	// [Content_Types].xml is rendered last but its path is reserved first.
	p.seen[contentTypesPath] = "content types"

	if err := p.add(d.bookPath, renderWorkbook(d), d.bookContentType, "workbook"); err != nil {
		return nil, err
	}
	if err := p.addRels(d.bookPath, d.bookRels, "workbook"); err != nil {
		return nil, err
	}

	for i, ws := range d.sheets {
		if err := planSheet(p, d, i, ws); err != nil {
			return nil, err
		}
	}

	for _, path := range d.sharedOrder {
		sp := d.shared[path]
		if err := p.add(path, sp.payload, sp.contentType, "shared part"); err != nil {
			return nil, err
		}
	}

	ct, err := d.types.marshal(p.types)
	if err != nil {
		return nil, err
	}
	p.entries = append([]planEntry{{path: contentTypesPath, data: ct}}, p.entries...)
	return p, nil
}

// checkSheets verifies titles, the code name bijection and part ownership.
func checkSheets(d *Document) error {
	if len(d.sheets) == 0 {
		return fmt.Errorf("%w: a workbook needs at least one sheet", ErrMalformedPackage)
	}
	titles := make(map[string]CodeName, len(d.sheets))
	codes := make(map[CodeName]bool, len(d.sheets))
	for _, ws := range d.sheets {
		if ws.title == "" {
			return fmt.Errorf("%w: %s", ErrUntitledSheet, ws.codeName)
		}
		key := strings.ToLower(ws.title)
		if other, ok := titles[key]; ok {
			return fmt.Errorf("%w: %q is used by %s and %s", ErrDuplicateTitle, ws.title, other, ws.codeName)
		}
		titles[key] = ws.codeName
		if codes[ws.codeName] {
			return fmt.Errorf("%w: code name %s is carried by two sheets", ErrPackageIntegrity, ws.codeName)
		}
		codes[ws.codeName] = true
		if ws.drawing != nil && ws.drawing.owner != ws.codeName {
			return fmt.Errorf("%w: drawing %s is owned by %s but referenced from %s", ErrUnknownCodeName, ws.drawing.path, ws.drawing.owner, ws.codeName)
		}
	}
	for owner, parts := range d.store.parts {
		if len(parts) > 0 && !codes[owner] {
			return fmt.Errorf("%w: %d opaque parts owned by %s", ErrUnknownCodeName, len(parts), owner)
		}
		for _, part := range parts {
			if part.Owner != owner {
				return fmt.Errorf("%w: %s part %q filed under %s", ErrUnknownCodeName, part.Kind, part.Path, owner)
			}
		}
	}
	return nil
}

func renderWorkbook(d *Document) []byte {
	var b bytes.Buffer
	b.Write(withActiveTab(d.bookHead, d.activeTab))

	sp := d.sheetsPrefix
	fmt.Fprintf(&b, "<%ssheets>", sp)
	for _, ws := range d.sheets {
		fmt.Fprintf(&b, `<%ssheet name="%s" sheetId="%d"`, sp, escapeAttr(ws.title), ws.sheetID)
		if ws.state != "" {
			fmt.Fprintf(&b, ` state="%s"`, ws.state)
		}
		fmt.Fprintf(&b, ` %s:id="%s"`, d.relPrefix, escapeAttr(ws.relID))
		writeAttrs(&b, ws.sheetAttrs)
		b.WriteString("/>")
	}
	fmt.Fprintf(&b, "</%ssheets>", sp)
	// TODO: renumber localSheetId of sheet scoped definedNames after
	// MoveSheet and RemoveSheet; the tail is written verbatim.
	b.Write(d.bookTail)
	return b.Bytes()
}

func planSheet(p *plan, d *Document, index int, ws *Worksheet) error {
	origin := "sheet " + strconv.Quote(ws.title)
	parts := d.store.parts[ws.codeName]

	var blocks [][]byte
	for _, part := range parts {
		if part.Kind == KindAlternateContent {
			blocks = append(blocks, part.Payload)
		}
	}

	head := withCodeName(ws.head, ws.codeName)
	if index != d.activeTab {
		head = withoutTabSelected(head)
	}
	var b bytes.Buffer
	b.Write(head)
	fmt.Fprintf(&b, "<%ssheetData>", ws.dataPrefix)
	renderSheetData(&b, ws.grid, ws.dataPrefix)
	fmt.Fprintf(&b, "</%ssheetData>", ws.dataPrefix)
	b.Write(joinAlternateContent(ws.tail, blocks))

	body := b.Bytes()
	var rels []Relationship
	if dr := ws.drawing; dr != nil {
		body = withDrawingRef(body, dr.relID)
		rels = append(rels, Relationship{ID: dr.relID, Type: RelTypeDrawing, Target: dr.path})
		drawingOrigin := "drawing of " + origin
		if err := p.add(dr.path, dr.render(), ContentTypeDrawing, drawingOrigin); err != nil {
			return err
		}
		if err := p.addRels(dr.path, dr.rels, drawingOrigin); err != nil {
			return err
		}
	}

	for _, part := range parts {
		if part.Kind.Inline() {
			continue
		}
		partOrigin := fmt.Sprintf("%s part of %s", part.Kind, origin)
		ct := part.ContentType
		if ct == "" {
			ct = kindContentTypes[part.Kind]
		}
		if err := p.add(part.Path, part.Payload, ct, partOrigin); err != nil {
			return err
		}
		if err := p.addRels(part.Path, part.Rels, partOrigin); err != nil {
			return err
		}
		rels = append(rels, Relationship{ID: part.RelID, Type: part.RelType, Target: part.Path})
	}
	rels = append(rels, ws.links...)

	if err := p.add(ws.path, body, ContentTypeWorksheet, origin); err != nil {
		return err
	}
	return p.addRels(ws.path, rels, origin)
}
