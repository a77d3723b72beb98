package workbook

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

const relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// Relationship is one entry of a .rels file. Target is an absolute package
// path (no leading slash) for internal relationships and the raw target for
// external ones.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

type xlsxRelationships struct {
	XMLName       xml.Name           `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationships []xlsxRelationship `xml:"Relationship"`
}

type xlsxRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// relsPathFor returns the path of the relationship part belonging to p.
// The package itself ("") maps to "_rels/.rels".
func relsPathFor(p string) string {
	dir, base := path.Split(p)
	return dir + "_rels/" + base + ".rels"
}

func isRelsPath(p string) bool {
	return strings.HasSuffix(p, ".rels") && strings.Contains(p, "_rels/")
}

func parseRels(data []byte, source string) ([]Relationship, error) {
	var doc xlsxRelationships
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not parse relationships of %q: %w", source, err)
	}

	baseDir := path.Dir(source)
	if source == "" {
		baseDir = ""
	}
	rels := make([]Relationship, 0, len(doc.Relationships))
	for _, r := range doc.Relationships {
		rel := Relationship{ID: r.ID, Type: r.Type, Target: r.Target}
		if strings.EqualFold(r.TargetMode, "External") {
			rel.External = true
		} else {
			rel.Target = resolveTarget(baseDir, r.Target)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func resolveTarget(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	if baseDir == "" || baseDir == "." {
		return path.Clean(target)
	}
	return path.Clean(path.Join(baseDir, target))
}

// relativeTarget expresses the package path to as seen from the directory of
// the part source.
func relativeTarget(source, to string) string {
	fromDir := path.Dir(source)
	if source == "" || fromDir == "." {
		return to
	}
	from := strings.Split(fromDir, "/")
	dest := strings.Split(to, "/")

	i := 0
	for i < len(from) && i < len(dest)-1 && from[i] == dest[i] {
		i++
	}
	var parts []string
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, dest[i:]...)
	return strings.Join(parts, "/")
}

func marshalRels(source string, rels []Relationship) ([]byte, error) {
	doc := xlsxRelationships{}
	for _, r := range rels {
		x := xlsxRelationship{ID: r.ID, Type: r.Type, Target: r.Target}
		if r.External {
			x.TargetMode = "External"
		} else {
			x.Target = relativeTarget(source, r.Target)
		}
		doc.Relationships = append(doc.Relationships, x)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("could not encode relationships of %q: %w", source, err)
	}
	return buf.Bytes(), nil
}

func relIDs(rels []Relationship) []string {
	ids := make([]string, len(rels))
	for i, r := range rels {
		ids[i] = r.ID
	}
	return ids
}

func cloneRels(rels []Relationship) []Relationship {
	if rels == nil {
		return nil
	}
	out := make([]Relationship, len(rels))
	copy(out, rels)
	return out
}
