package workbook

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
)

// Raw XML splicing. Worksheet and workbook parts are kept as bytes; only the
// regions the model owns (sheetData, sheets, a handful of attributes) are
// replaced on write so every element the model does not understand survives.

var (
	sheetDataOpen    = regexp.MustCompile(`<(\w+:)?sheetData\b[^>]*?(/?)>`)
	sheetsOpen       = regexp.MustCompile(`<(\w+:)?sheets\b[^>]*?(/?)>`)
	rootOpen         = regexp.MustCompile(`<(\w+:)?(worksheet|workbook)\b[^>]*>`)
	sheetPrOpen      = regexp.MustCompile(`<(\w+:)?sheetPr\b[^>]*?/?>`)
	codeNameAttr     = regexp.MustCompile(`\scodeName="([^"]*)"`)
	workbookViewOpen = regexp.MustCompile(`<(\w+:)?workbookView\b[^>]*?/?>`)
	activeTabAttr    = regexp.MustCompile(`\sactiveTab="(\d+)"`)
	tabSelectedAttr  = regexp.MustCompile(`\stabSelected="(1|true)"`)
	alternateToken   = regexp.MustCompile(`<(/?)(\w+:)?AlternateContent\b[^>]*?(/?)>`)
)

// splitElement cuts raw around the element matched by open. It returns the
// bytes before the element, the element's inner content, the bytes after it,
// and the namespace prefix the element was written with.
func splitElement(raw []byte, open *regexp.Regexp, local string) (head, inner, tail []byte, prefix string, ok bool) {
	loc := open.FindSubmatchIndex(raw)
	if loc == nil {
		return nil, nil, nil, "", false
	}
	if loc[2] >= 0 {
		prefix = string(raw[loc[2]:loc[3]])
	}
	head = raw[:loc[0]]
	selfClosing := loc[5] > loc[4]
	if selfClosing {
		return head, nil, raw[loc[1]:], prefix, true
	}

	closing := []byte("</" + prefix + local + ">")
	end := bytes.Index(raw[loc[1]:], closing)
	if end < 0 {
		return nil, nil, nil, "", false
	}
	inner = raw[loc[1] : loc[1]+end]
	tail = raw[loc[1]+end+len(closing):]
	return head, inner, tail, prefix, true
}

func rootPrefix(raw []byte) string {
	m := rootOpen.FindSubmatch(raw)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// readCodeName returns the codeName attribute of <sheetPr>, if any.
func readCodeName(head []byte) CodeName {
	tag := sheetPrOpen.Find(head)
	if tag == nil {
		return ""
	}
	m := codeNameAttr.FindSubmatch(tag)
	if m == nil {
		return ""
	}
	return CodeName(m[1])
}

// withCodeName returns head with <sheetPr codeName> set to code, adding the
// attribute or the element when missing.
func withCodeName(head []byte, code CodeName) []byte {
	attr := []byte(fmt.Sprintf(` codeName="%s"`, escapeAttr(string(code))))

	if loc := sheetPrOpen.FindIndex(head); loc != nil {
		tag := head[loc[0]:loc[1]]
		var newTag []byte
		if codeNameAttr.Match(tag) {
			newTag = codeNameAttr.ReplaceAllLiteral(tag, attr)
		} else {
			nameEnd := bytes.Index(tag, []byte("sheetPr")) + len("sheetPr")
			newTag = append(append(append([]byte{}, tag[:nameEnd]...), attr...), tag[nameEnd:]...)
		}
		return splice(head, loc[0], loc[1], newTag)
	}

	loc := rootOpen.FindSubmatchIndex(head)
	if loc == nil {
		return head
	}
	prefix := ""
	if loc[2] >= 0 {
		prefix = string(head[loc[2]:loc[3]])
	}
	el := []byte(fmt.Sprintf("<%ssheetPr%s/>", prefix, attr))
	return splice(head, loc[1], loc[1], el)
}

// readActiveTab returns the activeTab of the first workbookView.
func readActiveTab(raw []byte) int {
	tag := workbookViewOpen.Find(raw)
	if tag == nil {
		return 0
	}
	m := activeTabAttr.FindSubmatch(tag)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(string(m[1]))
	return n
}

// withActiveTab rewrites activeTab on the first workbookView.
func withActiveTab(raw []byte, tab int) []byte {
	loc := workbookViewOpen.FindIndex(raw)
	if loc == nil {
		return raw
	}
	tag := raw[loc[0]:loc[1]]
	attr := []byte(fmt.Sprintf(` activeTab="%d"`, tab))
	var newTag []byte
	if activeTabAttr.Match(tag) {
		newTag = activeTabAttr.ReplaceAllLiteral(tag, attr)
	} else {
		nameEnd := bytes.Index(tag, []byte("workbookView")) + len("workbookView")
		newTag = append(append(append([]byte{}, tag[:nameEnd]...), attr...), tag[nameEnd:]...)
	}
	return splice(raw, loc[0], loc[1], newTag)
}

// withoutTabSelected clears tabSelected on every sheetView of a sheet that is
// not the active one, so a cloned sheet does not open grouped with its source.
func withoutTabSelected(head []byte) []byte {
	return tabSelectedAttr.ReplaceAllLiteral(head, []byte(` tabSelected="0"`))
}

// splitAlternateContent cuts the top-level mc:AlternateContent blocks out of
// raw. It returns the surrounding segments (always len(blocks)+1 of them) and
// the blocks themselves.
func splitAlternateContent(raw []byte) (segments [][]byte, blocks [][]byte) {
	depth, start, last := 0, 0, 0
	for _, m := range alternateToken.FindAllSubmatchIndex(raw, -1) {
		closing := m[3] > m[2]
		selfClosing := m[7] > m[6]
		switch {
		case closing:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				segments = append(segments, raw[last:start])
				blocks = append(blocks, raw[start:m[1]])
				last = m[1]
			}
		case selfClosing:
			if depth == 0 {
				segments = append(segments, raw[last:m[0]])
				blocks = append(blocks, raw[m[0]:m[1]])
				last = m[1]
			}
		default:
			if depth == 0 {
				start = m[0]
			}
			depth++
		}
	}
	if depth != 0 {
		// Unbalanced markup; keep everything verbatim.
		return [][]byte{raw}, nil
	}
	segments = append(segments, raw[last:])
	return segments, blocks
}

// joinAlternateContent interleaves segments and blocks. Blocks beyond the
// number of segment gaps go in front of the last segment.
func joinAlternateContent(segments [][]byte, blocks [][]byte) []byte {
	var b bytes.Buffer
	for i, seg := range segments {
		if i == len(segments)-1 {
			for j := i; j < len(blocks); j++ {
				b.Write(blocks[j])
			}
			b.Write(seg)
			break
		}
		b.Write(seg)
		if i < len(blocks) {
			b.Write(blocks[i])
		}
	}
	return b.Bytes()
}

// Worksheet children that the schema orders after <drawing>.
var afterDrawing = map[string]bool{
	"legacyDrawing": true, "legacyDrawingHF": true, "drawingHF": true,
	"picture": true, "oleObjects": true, "controls": true,
	"webPublishItems": true, "tableParts": true, "extLst": true,
	"AlternateContent": true,
}

// withDrawingRef inserts a <drawing r:id> child into a complete worksheet
// document unless one is already present. Malformed input is returned as is.
func withDrawingRef(doc []byte, relID string) []byte {
	d := xml.NewDecoder(bytes.NewReader(doc))
	depth := 0
	prefix := ""
	element := func() []byte {
		return []byte(fmt.Sprintf(`<%sdrawing xmlns:r="%s" r:id="%s"/>`, prefix, relNamespace, escapeAttr(relID)))
	}
	for {
		off := int(d.InputOffset())
		tok, err := d.RawToken()
		if err != nil {
			return doc
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 1:
				if t.Name.Space != "" {
					prefix = t.Name.Space + ":"
				}
			case depth == 2 && t.Name.Local == "drawing":
				return doc
			case depth == 2 && afterDrawing[t.Name.Local]:
				return splice(doc, off, off, element())
			}
		case xml.EndElement:
			if depth == 1 {
				return splice(doc, off, off, element())
			}
			depth--
		}
	}
}

func splice(raw []byte, from, to int, insert []byte) []byte {
	out := make([]byte, 0, len(raw)-(to-from)+len(insert))
	out = append(out, raw[:from]...)
	out = append(out, insert...)
	return append(out, raw[to:]...)
}

const (
	mainNamespace = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	relNamespace  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)
