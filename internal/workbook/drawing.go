package workbook

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	drawingNamespace = "http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing"
	dmlNamespace     = "http://schemas.openxmlformats.org/drawingml/2006/main"
)

// Anchor positions a drawing object on the cell grid. Columns and rows are
// zero based, as stored in the drawing part.
type Anchor struct {
	FromCol int
	FromRow int
	ToCol   int
	ToRow   int
}

// ParseAnchor converts a cell range ("B2:E10") or a single cell into an
// Anchor covering those cells.
func ParseAnchor(rng string) (Anchor, error) {
	from, to := rng, rng
	if i := strings.IndexByte(rng, ':'); i >= 0 {
		from, to = rng[:i], rng[i+1:]
	}
	a, err := parseRef(from)
	if err != nil {
		return Anchor{}, err
	}
	b, err := parseRef(to)
	if err != nil {
		return Anchor{}, err
	}
	if b.col < a.col || b.row < a.row {
		return Anchor{}, fmt.Errorf("%w: range %q is reversed", ErrInvalidCell, rng)
	}
	// The end of a two-cell anchor is the top-left corner of the cell after it.
	return Anchor{FromCol: a.col - 1, FromRow: a.row - 1, ToCol: b.col, ToRow: b.row}, nil
}

// AnchoredObject describes one anchor found in a drawing part.
type AnchoredObject struct {
	Type   string // twoCellAnchor, oneCellAnchor or absoluteAnchor
	Name   string
	Anchor Anchor
}

type picture struct {
	anchor Anchor
	name   string
	relID  string
}

// Drawing is a drawing part owned by exactly one worksheet. The XML read from
// the archive is kept verbatim; pictures added later are appended to it on
// write. Its relationships (images, charts) point at shared parts, so copies
// of a drawing reuse the same image bytes.
type Drawing struct {
	owner CodeName
	path  string
	relID string

	raw   []byte
	rels  []Relationship
	added []picture
}

// Path returns the archive path the drawing is written to.
func (d *Drawing) Path() string { return d.path }

// RelID returns the ID under which the owning sheet references the drawing.
func (d *Drawing) RelID() string { return d.relID }

// Owner returns the code name of the owning worksheet.
func (d *Drawing) Owner() CodeName { return d.owner }

// Relationships returns a copy of the drawing's own relationships.
func (d *Drawing) Relationships() []Relationship { return cloneRels(d.rels) }

// Anchors lists every anchored object, read ones first.
func (d *Drawing) Anchors() []AnchoredObject {
	var out []AnchoredObject
	if len(d.raw) > 0 {
		out = append(out, parseAnchors(d.raw)...)
	}
	for _, p := range d.added {
		out = append(out, AnchoredObject{Type: "twoCellAnchor", Name: p.name, Anchor: p.anchor})
	}
	return out
}

func (d *Drawing) clone(owner CodeName, path string) *Drawing {
	return &Drawing{
		owner: owner,
		path:  path,
		relID: d.relID,
		raw:   append([]byte(nil), d.raw...),
		rels:  cloneRels(d.rels),
		added: append([]picture(nil), d.added...),
	}
}

// xlsxWsDr maps the anchors of a spreadsheet drawing part.
type xlsxWsDr struct {
	TwoCellAnchors []xlsxAnchor `xml:"twoCellAnchor"`
	OneCellAnchors []xlsxAnchor `xml:"oneCellAnchor"`
	AbsAnchors     []xlsxAnchor `xml:"absoluteAnchor"`
}

type xlsxAnchor struct {
	From *xlsxPos   `xml:"from"`
	To   *xlsxPos   `xml:"to"`
	Pic  *xlsxNvObj `xml:"pic"`
	Sp   *xlsxNvObj `xml:"sp"`
	Grp  *xlsxNvObj `xml:"grpSp"`
	Gf   *xlsxNvObj `xml:"graphicFrame"`
}

type xlsxPos struct {
	Col int `xml:"col"`
	Row int `xml:"row"`
}

type xlsxNvObj struct {
	Pic   *xlsxCNvPr `xml:"nvPicPr>cNvPr"`
	Sp    *xlsxCNvPr `xml:"nvSpPr>cNvPr"`
	Grp   *xlsxCNvPr `xml:"nvGrpSpPr>cNvPr"`
	Frame *xlsxCNvPr `xml:"nvGraphicFramePr>cNvPr"`
}

type xlsxCNvPr struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

func (a xlsxAnchor) name() string {
	for _, obj := range []*xlsxNvObj{a.Pic, a.Sp, a.Grp, a.Gf} {
		if obj == nil {
			continue
		}
		for _, c := range []*xlsxCNvPr{obj.Pic, obj.Sp, obj.Grp, obj.Frame} {
			if c != nil {
				return c.Name
			}
		}
	}
	return ""
}

func parseAnchors(raw []byte) []AnchoredObject {
	var dr xlsxWsDr
	if err := xml.Unmarshal(raw, &dr); err != nil {
		return nil
	}
	var out []AnchoredObject
	add := func(typ string, anchors []xlsxAnchor) {
		for _, a := range anchors {
			obj := AnchoredObject{Type: typ, Name: a.name()}
			if a.From != nil {
				obj.Anchor.FromCol, obj.Anchor.FromRow = a.From.Col, a.From.Row
			}
			if a.To != nil {
				obj.Anchor.ToCol, obj.Anchor.ToRow = a.To.Col, a.To.Row
			} else {
				obj.Anchor.ToCol, obj.Anchor.ToRow = obj.Anchor.FromCol, obj.Anchor.FromRow
			}
			out = append(out, obj)
		}
	}
	add("twoCellAnchor", dr.TwoCellAnchors)
	add("oneCellAnchor", dr.OneCellAnchors)
	add("absoluteAnchor", dr.AbsAnchors)
	return out
}

var (
	wsDrClose = regexp.MustCompile(`</(\w+:)?wsDr>`)
	cNvPrID   = regexp.MustCompile(`<(\w+:)?cNvPr\b[^>]*?\sid="(\d+)"`)
)

// nextShapeID returns an object ID above every cNvPr id already in raw.
func nextShapeID(raw []byte) int {
	next := 2
	for _, m := range cNvPrID.FindAllSubmatch(raw, -1) {
		if n, err := strconv.Atoi(string(m[2])); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

// render returns the bytes written for the drawing part.
func (d *Drawing) render() []byte {
	if len(d.added) == 0 && d.raw != nil {
		return d.raw
	}

	var anchors bytes.Buffer
	id := nextShapeID(d.raw)
	for i, p := range d.added {
		writePictureAnchor(&anchors, p, id+i)
	}

	if d.raw == nil {
		var b bytes.Buffer
		b.WriteString(xml.Header)
		fmt.Fprintf(&b, `<xdr:wsDr xmlns:xdr="%s" xmlns:a="%s" xmlns:r="%s">`, drawingNamespace, dmlNamespace, relNamespace)
		b.Write(anchors.Bytes())
		b.WriteString(`</xdr:wsDr>`)
		return b.Bytes()
	}

	locs := wsDrClose.FindAllIndex(d.raw, -1)
	if len(locs) == 0 {
		return d.raw
	}
	at := locs[len(locs)-1][0]
	return splice(d.raw, at, at, anchors.Bytes())
}

func writePictureAnchor(b *bytes.Buffer, p picture, id int) {
	fmt.Fprintf(b, `<xdr:twoCellAnchor xmlns:xdr="%s" xmlns:a="%s" xmlns:r="%s" editAs="oneCell">`,
		drawingNamespace, dmlNamespace, relNamespace)
	fmt.Fprintf(b, `<xdr:from><xdr:col>%d</xdr:col><xdr:colOff>0</xdr:colOff><xdr:row>%d</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:from>`,
		p.anchor.FromCol, p.anchor.FromRow)
	fmt.Fprintf(b, `<xdr:to><xdr:col>%d</xdr:col><xdr:colOff>0</xdr:colOff><xdr:row>%d</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:to>`,
		p.anchor.ToCol, p.anchor.ToRow)
	fmt.Fprintf(b, `<xdr:pic><xdr:nvPicPr><xdr:cNvPr id="%d" name="%s"/><xdr:cNvPicPr><a:picLocks noChangeAspect="1"/></xdr:cNvPicPr></xdr:nvPicPr>`,
		id, escapeAttr(p.name))
	fmt.Fprintf(b, `<xdr:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></xdr:blipFill>`, escapeAttr(p.relID))
	b.WriteString(`<xdr:spPr><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></xdr:spPr></xdr:pic><xdr:clientData/></xdr:twoCellAnchor>`)
}
