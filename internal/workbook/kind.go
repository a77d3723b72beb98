package workbook

import (
	"path"
	"strconv"
	"strings"
)

// PartKind tags an opaque part. The set is closed; a new kind is added only
// when a new part type gets explicit handling.
type PartKind int

const (
	// KindPrinterSettings is a binary DEVMODE blob referenced from pageSetup.
	KindPrinterSettings PartKind = iota
	// KindLegacyDrawing is a VML drawing (comments shapes, form controls).
	KindLegacyDrawing
	// KindCtrlProp is a form control properties part.
	KindCtrlProp
	// KindActiveX is a legacy ActiveX control part.
	KindActiveX
	// KindComments is a legacy comments part.
	KindComments
	// KindAlternateContent is an mc:AlternateContent fragment of the sheet XML.
	// It has no archive path of its own.
	KindAlternateContent
	// KindVBAProject is the workbook's macro project.
	KindVBAProject
	// KindOther is any other internal part a sheet relates to. Its relationship
	// type is kept on the part.
	KindOther
)

var kindNames = map[PartKind]string{
	KindPrinterSettings:  "printer-settings",
	KindLegacyDrawing:    "legacy-drawing",
	KindCtrlProp:         "ctrl-prop",
	KindActiveX:          "activex",
	KindComments:         "comments",
	KindAlternateContent: "alternate-content",
	KindVBAProject:       "vba-project",
	KindOther:            "other",
}

// AllKinds lists every kind in declaration order.
var AllKinds = []PartKind{
	KindPrinterSettings, KindLegacyDrawing, KindCtrlProp, KindActiveX,
	KindComments, KindAlternateContent, KindVBAProject, KindOther,
}

func (k PartKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind maps a kind name ("printer-settings") back to its PartKind.
func ParseKind(s string) (PartKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Inline reports whether parts of this kind live inside the sheet XML rather
// than in their own archive entry.
func (k PartKind) Inline() bool { return k == KindAlternateContent }

// Relationship types used by the package model.
const (
	relBase = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"

	RelTypeOfficeDocument  = relBase + "officeDocument"
	RelTypeWorksheet       = relBase + "worksheet"
	RelTypeSharedStrings   = relBase + "sharedStrings"
	RelTypeCalcChain       = relBase + "calcChain"
	RelTypeDrawing         = relBase + "drawing"
	RelTypeImage           = relBase + "image"
	RelTypeHyperlink       = relBase + "hyperlink"
	RelTypePrinterSettings = relBase + "printerSettings"
	RelTypeVMLDrawing      = relBase + "vmlDrawing"
	RelTypeCtrlProp        = relBase + "ctrlProp"
	RelTypeControl         = relBase + "control"
	RelTypeComments        = relBase + "comments"
	RelTypeVBAProject      = "http://schemas.microsoft.com/office/2006/relationships/vbaProject"
)

var kindRelTypes = map[PartKind]string{
	KindPrinterSettings: RelTypePrinterSettings,
	KindLegacyDrawing:   RelTypeVMLDrawing,
	KindCtrlProp:        RelTypeCtrlProp,
	KindActiveX:         RelTypeControl,
	KindComments:        RelTypeComments,
	KindVBAProject:      RelTypeVBAProject,
}

func kindForRelType(relType string) PartKind {
	for k, t := range kindRelTypes {
		if t == relType {
			return k
		}
	}
	return KindOther
}

// Content types of the parts the writer emits overrides for.
const (
	ContentTypeRelationships   = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeXML             = "application/xml"
	ContentTypeWorkbook        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ContentTypeWorkbookMacro   = "application/vnd.ms-excel.sheet.macroEnabled.main+xml"
	ContentTypeWorksheet       = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ContentTypeDrawing         = "application/vnd.openxmlformats-officedocument.drawing+xml"
	ContentTypePrinterSettings = "application/vnd.openxmlformats-officedocument.spreadsheetml.printerSettings"
	ContentTypeVML             = "application/vnd.openxmlformats-officedocument.vmlDrawing"
	ContentTypeCtrlProp        = "application/vnd.ms-excel.controlproperties+xml"
	ContentTypeActiveX         = "application/vnd.ms-office.activeX+xml"
	ContentTypeComments        = "application/vnd.openxmlformats-officedocument.spreadsheetml.comments+xml"
	ContentTypeVBAProject      = "application/vnd.ms-office.vbaProject"
)

var kindContentTypes = map[PartKind]string{
	KindPrinterSettings: ContentTypePrinterSettings,
	KindLegacyDrawing:   ContentTypeVML,
	KindCtrlProp:        ContentTypeCtrlProp,
	KindActiveX:         ContentTypeActiveX,
	KindComments:        ContentTypeComments,
	KindVBAProject:      ContentTypeVBAProject,
}

// Namespace is a family of numbered archive paths, Dir/Stem<N>Ext.
type Namespace struct {
	Dir  string
	Stem string
	Ext  string
}

// Path returns the n-th path of the namespace.
func (n Namespace) Path(i int) string {
	return path.Join(n.Dir, n.Stem+strconv.Itoa(i)+n.Ext)
}

func (n Namespace) String() string { return path.Join(n.Dir, n.Stem+"N"+n.Ext) }

var (
	nsWorksheet = Namespace{Dir: "xl/worksheets", Stem: "sheet", Ext: ".xml"}
	nsDrawing   = Namespace{Dir: "xl/drawings", Stem: "drawing", Ext: ".xml"}
	nsMedia     = Namespace{Dir: "xl/media", Stem: "image"}
)

var kindNamespaces = map[PartKind]Namespace{
	KindPrinterSettings: {Dir: "xl/printerSettings", Stem: "printerSettings", Ext: ".bin"},
	KindLegacyDrawing:   {Dir: "xl/drawings", Stem: "vmlDrawing", Ext: ".vml"},
	KindCtrlProp:        {Dir: "xl/ctrlProps", Stem: "ctrlProp", Ext: ".xml"},
	KindActiveX:         {Dir: "xl/activeX", Stem: "activeX", Ext: ".xml"},
	KindComments:        {Dir: "xl", Stem: "comments", Ext: ".xml"},
	KindVBAProject:      {Dir: "xl", Stem: "vbaProject", Ext: ".bin"},
	KindOther:           {Dir: "xl/parts", Stem: "part", Ext: ".bin"},
}

// NamespaceOf splits an archive path into its namespace and numeric index.
// ok is false when the file name carries no trailing number.
func NamespaceOf(p string) (ns Namespace, index int, ok bool) {
	dir, base := path.Split(p)
	ns.Dir = strings.TrimSuffix(dir, "/")
	ns.Ext = path.Ext(base)
	name := strings.TrimSuffix(base, ns.Ext)

	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	ns.Stem = name[:i]
	if i == len(name) {
		return ns, 0, false
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return ns, 0, false
	}
	return ns, n, true
}
