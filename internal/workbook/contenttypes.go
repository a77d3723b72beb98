package workbook

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"
)

const contentTypesPath = "[Content_Types].xml"

// xlsxTypes directly maps the Types element of [Content_Types].xml.
type xlsxTypes struct {
	XMLName   xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []xlsxDefault  `xml:"Default"`
	Overrides []xlsxOverride `xml:"Override"`
}

type xlsxDefault struct {
	Extension   string `xml:",attr"`
	ContentType string `xml:",attr"`
}

type xlsxOverride struct {
	PartName    string `xml:",attr"`
	ContentType string `xml:",attr"`
}

// contentTypes resolves the content type of a part path.
type contentTypes struct {
	defaults  map[string]string // lower-cased extension without dot
	overrides map[string]string // path without leading slash
}

func newContentTypes() *contentTypes {
	return &contentTypes{
		defaults: map[string]string{
			"rels": ContentTypeRelationships,
			"xml":  ContentTypeXML,
		},
		overrides: make(map[string]string),
	}
}

func parseContentTypes(data []byte) (*contentTypes, error) {
	var doc xlsxTypes
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", contentTypesPath, err)
	}
	ct := newContentTypes()
	for _, d := range doc.Defaults {
		ct.defaults[strings.ToLower(d.Extension)] = d.ContentType
	}
	for _, o := range doc.Overrides {
		ct.overrides[strings.TrimPrefix(o.PartName, "/")] = o.ContentType
	}
	return ct, nil
}

func extOf(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

func (c *contentTypes) lookup(p string) string {
	if t, ok := c.overrides[p]; ok {
		return t
	}
	return c.defaults[extOf(p)]
}

// marshal emits the defaults known to c plus one override for every part
// whose content type is not already implied by its extension.
func (c *contentTypes) marshal(parts map[string]string) ([]byte, error) {
	doc := xlsxTypes{}

	exts := make([]string, 0, len(c.defaults))
	for ext := range c.defaults {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		doc.Defaults = append(doc.Defaults, xlsxDefault{Extension: ext, ContentType: c.defaults[ext]})
	}

	paths := make([]string, 0, len(parts))
	for p := range parts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		t := parts[p]
		if t == "" || c.defaults[extOf(p)] == t {
			continue
		}
		doc.Overrides = append(doc.Overrides, xlsxOverride{PartName: "/" + p, ContentType: t})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", contentTypesPath, err)
	}
	return buf.Bytes(), nil
}
