package workbook

import (
	"fmt"
	"strings"
)

// Document is an in-memory spreadsheet package. It owns its worksheets, the
// opaque part Store and the Allocator. A Document has a single owner and is
// not safe for concurrent use.
type Document struct {
	sheets []*Worksheet
	alloc  *Allocator
	store  *Store
	log    Logger

	bookPath        string
	bookContentType string
	bookHead        []byte
	bookTail        []byte
	sheetsPrefix    string
	relPrefix       string
	bookRels        []Relationship
	activeTab       int
	keepCalcChain   bool

	// Parts carried verbatim and never owned by a single sheet: styles,
	// theme, media, charts, document properties and the like.
	shared      map[string]*sharedPart
	sharedOrder []string
	types       *contentTypes
}

type sharedPart struct {
	path        string
	payload     []byte
	contentType string
}

// Option configures a Document.
type Option func(*Document)

// WithLogger routes the Document's diagnostics to l.
func WithLogger(l Logger) Option {
	return func(d *Document) {
		if l != nil {
			d.log = l
		}
	}
}

func newDocument(opts ...Option) *Document {
	d := &Document{
		alloc:  NewAllocator(),
		log:    nopLogger{},
		shared: make(map[string]*sharedPart),
		types:  newContentTypes(),
	}
	d.store = newStore(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const (
	defaultWorkbookPath = "xl/workbook.xml"
	defaultStylesPath   = "xl/styles.xml"

	relTypeStyles     = relBase + "styles"
	contentTypeStyles = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"

	minimalStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<styleSheet xmlns="` + mainNamespace + `"><fonts count="1"><font><sz val="11"/><name val="Calibri"/></font></fonts><fills count="2"><fill><patternFill patternType="none"/></fill><fill><patternFill patternType="gray125"/></fill></fills><borders count="1"><border><left/><right/><top/><bottom/><diagonal/></border></borders><cellStyleXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellStyleXfs><cellXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0" xfId="0"/></cellXfs><cellStyles count="1"><cellStyle name="Normal" xfId="0" builtinId="0"/></cellStyles></styleSheet>`
)

// New returns an empty workbook with no sheets. At least one sheet must be
// added before it can be written.
func New(opts ...Option) *Document {
	d := newDocument(opts...)
	d.bookPath = defaultWorkbookPath
	d.bookContentType = ContentTypeWorkbook
	d.bookHead = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<workbook xmlns="` + mainNamespace + `" xmlns:r="` + relNamespace + `">` +
		`<bookViews><workbookView activeTab="0"/></bookViews>`)
	d.bookTail = []byte(`</workbook>`)
	d.relPrefix = "r"

	rootRels, _ := marshalRels("", []Relationship{{ID: "rId1", Type: RelTypeOfficeDocument, Target: d.bookPath}})
	d.alloc.Claim(relsPathFor(""))
	d.addShared(relsPathFor(""), rootRels, ContentTypeRelationships)

	d.alloc.Claim(d.bookPath)
	d.alloc.Claim(defaultStylesPath)
	d.addShared(defaultStylesPath, []byte(minimalStyles), contentTypeStyles)
	d.bookRels = []Relationship{{ID: "rId1", Type: relTypeStyles, Target: defaultStylesPath}}
	return d
}

func (d *Document) addShared(p string, payload []byte, contentType string) {
	if _, ok := d.shared[p]; !ok {
		d.sharedOrder = append(d.sharedOrder, p)
	}
	d.shared[p] = &sharedPart{path: p, payload: payload, contentType: contentType}
}

// SharedParts returns the paths of the parts carried verbatim, in the order
// they were read or added.
func (d *Document) SharedParts() []string {
	return append([]string(nil), d.sharedOrder...)
}

// SharedPart returns the payload of a shared part.
func (d *Document) SharedPart(p string) ([]byte, bool) {
	sp, ok := d.shared[p]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), sp.payload...), true
}

// Sheets returns the worksheets in tab order.
func (d *Document) Sheets() []*Worksheet {
	return append([]*Worksheet(nil), d.sheets...)
}

// Sheet finds a worksheet by title, ignoring case.
func (d *Document) Sheet(title string) (*Worksheet, error) {
	if ws := d.titleOwner(title); ws != nil {
		return ws, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, title)
}

func (d *Document) titleOwner(title string) *Worksheet {
	for _, ws := range d.sheets {
		if ws.title != "" && strings.EqualFold(ws.title, title) {
			return ws
		}
	}
	return nil
}

// FreeTitle returns base if no sheet uses it, otherwise the first of
// "base (2)", "base (3)", ... that is free, shortened to fit MaxTitleLength.
func (d *Document) FreeTitle(base string) string {
	if d.titleOwner(base) == nil {
		return base
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		stem := []rune(base)
		if max := MaxTitleLength - len(suffix); len(stem) > max {
			stem = stem[:max]
		}
		title := string(stem) + suffix
		if d.titleOwner(title) == nil {
			return title
		}
	}
}

// SheetByCodeName returns the live worksheet carrying code, or nil.
func (d *Document) SheetByCodeName(code CodeName) *Worksheet {
	for _, ws := range d.sheets {
		if ws.codeName == code {
			return ws
		}
	}
	return nil
}

// SheetIndex returns the tab position of ws, or -1.
func (d *Document) SheetIndex(ws *Worksheet) int {
	for i, s := range d.sheets {
		if s == ws {
			return i
		}
	}
	return -1
}

// AddSheet appends an empty worksheet titled title.
func (d *Document) AddSheet(title string) (*Worksheet, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if d.titleOwner(title) != nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
	}

	tx := d.alloc.Begin()
	defer tx.Rollback()

	code, err := tx.NewCodeName()
	if err != nil {
		return nil, err
	}
	p, err := tx.NewPath(nsWorksheet)
	if err != nil {
		return nil, err
	}
	id, err := tx.NewSheetID()
	if err != nil {
		return nil, err
	}
	relID, err := tx.NewRelID(relIDs(d.bookRels))
	if err != nil {
		return nil, err
	}
	tx.Commit()

	ws := &Worksheet{
		doc:      d,
		title:    title,
		codeName: code,
		path:     p,
		relID:    relID,
		sheetID:  id,
		grid:     newGrid(),
		head: []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<worksheet xmlns="` + mainNamespace + `" xmlns:r="` + relNamespace + `">` +
			`<sheetPr codeName="` + string(code) + `"/><sheetViews><sheetView workbookViewId="0"/></sheetViews>`),
		tail: [][]byte{[]byte(`</worksheet>`)},
	}
	d.bookRels = append(d.bookRels, Relationship{ID: relID, Type: RelTypeWorksheet, Target: p})
	d.sheets = append(d.sheets, ws)
	d.log.Verbose("added sheet %q as %s at %s", title, code, p)
	return ws, nil
}

// RemoveSheet deletes ws together with its drawing and opaque parts. The code
// name and paths it held are never issued again.
func (d *Document) RemoveSheet(ws *Worksheet) error {
	i := d.SheetIndex(ws)
	if i < 0 {
		return unknownSheet(ws)
	}
	if len(d.sheets) == 1 {
		return fmt.Errorf("workbook: cannot remove the only sheet %q", ws.title)
	}

	d.store.Remove(ws.codeName)
	if ws.drawing != nil {
		d.alloc.Release(ws.drawing.path)
	}
	d.alloc.Release(ws.path)
	d.bookRels = withoutRel(d.bookRels, ws.relID)
	d.sheets = append(d.sheets[:i:i], d.sheets[i+1:]...)

	switch {
	case d.activeTab > i:
		d.activeTab--
	case d.activeTab >= len(d.sheets):
		d.activeTab = len(d.sheets) - 1
	}
	ws.doc = nil
	d.log.Verbose("removed sheet %q (%s)", ws.title, ws.codeName)
	return nil
}

// unknownSheet reports a sheet, possibly nil, that d does not hold.
func unknownSheet(ws *Worksheet) error {
	var code CodeName
	if ws != nil {
		code = ws.codeName
	}
	return fmt.Errorf("%w: %q", ErrUnknownCodeName, code)
}

func withoutRel(rels []Relationship, id string) []Relationship {
	out := rels[:0:0]
	for _, r := range rels {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// MoveSheet moves ws to tab position index. The active sheet stays active.
func (d *Document) MoveSheet(ws *Worksheet, index int) error {
	from := d.SheetIndex(ws)
	if from < 0 {
		return unknownSheet(ws)
	}
	if index < 0 || index >= len(d.sheets) {
		return fmt.Errorf("workbook: sheet position %d out of range [0,%d)", index, len(d.sheets))
	}
	var active *Worksheet
	if d.activeTab >= 0 && d.activeTab < len(d.sheets) {
		active = d.sheets[d.activeTab]
	}

	rest := append(d.sheets[:from:from], d.sheets[from+1:]...)
	moved := make([]*Worksheet, 0, len(d.sheets))
	moved = append(moved, rest[:index]...)
	moved = append(moved, ws)
	moved = append(moved, rest[index:]...)
	d.sheets = moved

	if active != nil {
		d.activeTab = d.SheetIndex(active)
	}
	return nil
}

// ActiveSheet returns the tab index the workbook opens on.
func (d *Document) ActiveSheet() int { return d.activeTab }

// SetActiveSheet makes the sheet at index the one the workbook opens on.
func (d *Document) SetActiveSheet(index int) error {
	if index < 0 || index >= len(d.sheets) {
		return fmt.Errorf("workbook: sheet position %d out of range [0,%d)", index, len(d.sheets))
	}
	d.activeTab = index
	return nil
}

// Store returns the Document's opaque part store.
func (d *Document) Store() *Store { return d.store }

// Allocator returns the Document's identifier allocator.
func (d *Document) Allocator() *Allocator { return d.alloc }

// MacroEnabled reports whether the workbook carries a VBA project.
func (d *Document) MacroEnabled() bool {
	for _, r := range d.bookRels {
		if r.Type == RelTypeVBAProject {
			return true
		}
	}
	return false
}

// Paths returns every archive path the Document would be written to, sorted.
func (d *Document) Paths() ([]string, error) {
	plan, err := buildPlan(d)
	if err != nil {
		return nil, err
	}
	return plan.paths(), nil
}

// Validate checks the Document for everything Write would reject, without
// producing any output.
func (d *Document) Validate() error {
	_, err := buildPlan(d)
	return err
}
