package workbook

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the longest sheet title spreadsheet applications accept.
const MaxTitleLength = 31

// Worksheet is one tab of a Document. Its title is what users see and may
// change at any time; its code name is fixed at creation and keys every
// opaque part the sheet owns.
type Worksheet struct {
	doc *Document

	title    string
	codeName CodeName
	path     string
	relID    string
	sheetID  int
	state    string

	grid *grid

	// Raw XML around <sheetData>. tail is split around top-level
	// alternate content blocks, which live in the Store.
	head       []byte
	dataPrefix string
	tail       [][]byte

	drawing *Drawing
	links   []Relationship

	// Attributes of the workbook <sheet> element the model does not manage.
	// Clones do not inherit them.
	sheetAttrs []xml.Attr
}

// Title returns the user-visible name. It is empty for a fresh clone until
// SetTitle is called.
func (ws *Worksheet) Title() string { return ws.title }

// CodeName returns the sheet's internal identity.
func (ws *Worksheet) CodeName() CodeName { return ws.codeName }

// Path returns the archive path of the sheet XML.
func (ws *Worksheet) Path() string { return ws.path }

// SheetID returns the workbook sheetId attribute.
func (ws *Worksheet) SheetID() int { return ws.sheetID }

// State returns "", "hidden" or "veryHidden".
func (ws *Worksheet) State() string { return ws.state }

// SetState changes the sheet's visibility.
func (ws *Worksheet) SetState(state string) error {
	switch state {
	case "", "visible":
		ws.state = ""
	case "hidden", "veryHidden":
		ws.state = state
	default:
		return fmt.Errorf("workbook: unknown sheet state %q", state)
	}
	return nil
}

// SetTitle renames the sheet. A title used by a sibling (compared without
// regard to case) fails with ErrDuplicateTitle and leaves every title as it was.
func (ws *Worksheet) SetTitle(title string) error {
	if ws.title == title {
		return nil
	}
	if err := validateTitle(title); err != nil {
		return err
	}
	if ws.doc != nil {
		if other := ws.doc.titleOwner(title); other != nil && other != ws {
			return fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
		}
	}
	ws.title = title
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidTitle)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidTitle, title, MaxTitleLength)
	}
	if i := strings.IndexAny(title, `:\/?*[]`); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidTitle, title, title[i])
	}
	if strings.HasPrefix(title, "'") || strings.HasSuffix(title, "'") {
		return fmt.Errorf("%w: %q starts or ends with an apostrophe", ErrInvalidTitle, title)
	}
	return nil
}

// Cell returns the cell at ref ("B7"). A missing cell is returned blank.
func (ws *Worksheet) Cell(ref string) (Cell, error) {
	k, err := parseRef(ref)
	if err != nil {
		return Cell{}, err
	}
	c := ws.grid.cells[k]
	c.formulaAttrs, c.extra = nil, nil
	return c, nil
}

// Value returns the stored value at ref, or "" for blank and invalid refs.
func (ws *Worksheet) Value(ref string) string {
	c, err := ws.Cell(ref)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetCell stores value at ref, keeping the cell's style. Strings, booleans,
// integers and floats are accepted; nil clears the value.
func (ws *Worksheet) SetCell(ref string, value interface{}) error {
	k, err := parseRef(ref)
	if err != nil {
		return err
	}
	c := ws.grid.cells[k]
	c.Formula, c.formulaAttrs = "", nil

	switch v := value.(type) {
	case nil:
		c.Type, c.Value = CellBlank, ""
	case string:
		c.Type, c.Value = CellString, v
	case bool:
		c.Type, c.Value = CellBool, "0"
		if v {
			c.Value = "1"
		}
	case int:
		c.Type, c.Value = CellNumber, strconv.Itoa(v)
	case int64:
		c.Type, c.Value = CellNumber, strconv.FormatInt(v, 10)
	case float64:
		c.Type, c.Value = CellNumber, strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		c.Type, c.Value = CellNumber, strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		c.Type, c.Value = CellString, fmt.Sprint(v)
	}

	if c.Type == CellBlank && c.Style == "" {
		delete(ws.grid.cells, k)
		return nil
	}
	ws.grid.cells[k] = c
	return nil
}

// SetFormula stores a formula at ref. The cached value is dropped so the
// application recalculates it.
func (ws *Worksheet) SetFormula(ref, formula string) error {
	k, err := parseRef(ref)
	if err != nil {
		return err
	}
	c := ws.grid.cells[k]
	c.Type, c.Value = CellNumber, ""
	c.Formula = strings.TrimPrefix(formula, "=")
	c.formulaAttrs = nil
	ws.grid.cells[k] = c
	return nil
}

// ClearCell removes the cell at ref entirely, style included.
func (ws *Worksheet) ClearCell(ref string) error {
	k, err := parseRef(ref)
	if err != nil {
		return err
	}
	delete(ws.grid.cells, k)
	return nil
}

// Cells returns the references of every stored cell in row-major order.
func (ws *Worksheet) Cells() []string {
	keys := ws.grid.sortedKeys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.ref()
	}
	return out
}

// Rows returns the cell values as a dense grid starting at A1, the shape the
// CSV exporter and the CLI print.
func (ws *Worksheet) Rows() [][]string {
	maxRow, maxCol := 0, 0
	for k := range ws.grid.cells {
		if k.row > maxRow {
			maxRow = k.row
		}
		if k.col > maxCol {
			maxCol = k.col
		}
	}
	rows := make([][]string, maxRow)
	for r := range rows {
		rows[r] = make([]string, maxCol)
	}
	for k, c := range ws.grid.cells {
		rows[k.row-1][k.col-1] = c.Value
	}
	return rows
}

// Drawings returns the sheet's drawing parts. A worksheet references at most
// one drawing part, so the slice has zero or one element.
func (ws *Worksheet) Drawings() []*Drawing {
	if ws.drawing == nil {
		return nil
	}
	return []*Drawing{ws.drawing}
}

// OpaqueParts returns the sheet's parts of kind, in order.
func (ws *Worksheet) OpaqueParts(kind PartKind) []*OpaquePart {
	if ws.doc == nil {
		return nil
	}
	var out []*OpaquePart
	for _, p := range ws.doc.store.parts[ws.codeName] {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Links returns the sheet's external relationships (hyperlink targets).
func (ws *Worksheet) Links() []Relationship { return cloneRels(ws.links) }

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
}

// AddPicture anchors an image on the sheet, creating the sheet's drawing part
// on first use. The image bytes become a shared media part.
func (ws *Worksheet) AddPicture(anchor Anchor, image []byte, ext string) error {
	if ws.doc == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCodeName, ws.codeName)
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	ct, ok := imageContentTypes[ext]
	if !ok {
		return fmt.Errorf("workbook: unsupported image type %q", ext)
	}
	if anchor.ToCol < anchor.FromCol || anchor.ToRow < anchor.FromRow {
		return fmt.Errorf("workbook: anchor ends before it starts: %+v", anchor)
	}

	d := ws.doc
	tx := d.alloc.Begin()
	defer tx.Rollback()

	media, err := tx.NewPath(Namespace{Dir: nsMedia.Dir, Stem: nsMedia.Stem, Ext: "." + ext})
	if err != nil {
		return err
	}
	dr := ws.drawing
	if dr == nil {
		p, err := tx.NewPath(nsDrawing)
		if err != nil {
			return err
		}
		relID, err := tx.NewRelID(ws.relIDs())
		if err != nil {
			return err
		}
		dr = &Drawing{owner: ws.codeName, path: p, relID: relID}
	}
	imgRel, err := tx.NewRelID(relIDs(dr.rels))
	if err != nil {
		return err
	}
	tx.Commit()

	d.addShared(media, append([]byte(nil), image...), ct)
	if _, ok := d.types.defaults[ext]; !ok {
		d.types.defaults[ext] = ct
	}
	dr.rels = append(dr.rels, Relationship{ID: imgRel, Type: RelTypeImage, Target: media})
	dr.added = append(dr.added, picture{
		anchor: anchor,
		name:   fmt.Sprintf("Picture %d", len(dr.Anchors())+1),
		relID:  imgRel,
	})
	ws.drawing = dr
	d.log.Verbose("added picture %s to %s (%s)", media, ws.codeName, dr.path)
	return nil
}

// relIDs lists every relationship ID used in the sheet's rels part.
func (ws *Worksheet) relIDs() []string {
	ids := relIDs(ws.links)
	if ws.drawing != nil {
		ids = append(ids, ws.drawing.relID)
	}
	if ws.doc != nil {
		for _, p := range ws.doc.store.parts[ws.codeName] {
			if p.RelID != "" {
				ids = append(ids, p.RelID)
			}
		}
	}
	return ids
}

// copyStructure deep-copies everything the sheet owns except its drawing and
// opaque parts, which the clone engine re-keys separately.
func (ws *Worksheet) copyStructure() *Worksheet {
	tail := make([][]byte, len(ws.tail))
	for i, seg := range ws.tail {
		tail[i] = append([]byte(nil), seg...)
	}
	return &Worksheet{
		state:      ws.state,
		grid:       ws.grid.clone(),
		head:       append([]byte(nil), ws.head...),
		dataPrefix: ws.dataPrefix,
		tail:       tail,
		links:      cloneRels(ws.links),
	}
}
