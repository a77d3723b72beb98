package workbook

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klytics/sheetkit/internal/container"
)

// Parts of a two sheet workbook. The second sheet carries a drawing with one
// picture, printer settings, a VML drawing, a form control wrapped in
// alternate content, and an external hyperlink.

const fixtureContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="bin" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.printerSettings"/>` +
	`<Default Extension="png" ContentType="image/png"/>` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="vml" ContentType="application/vnd.openxmlformats-officedocument.vmlDrawing"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>` +
	`<Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>` +
	`<Override PartName="/xl/worksheets/sheet2.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>` +
	`<Override PartName="/xl/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>` +
	`<Override PartName="/xl/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"/>` +
	`<Override PartName="/xl/sharedStrings.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"/>` +
	`<Override PartName="/xl/calcChain.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.calcChain+xml"/>` +
	`<Override PartName="/xl/drawings/drawing1.xml" ContentType="application/vnd.openxmlformats-officedocument.drawing+xml"/>` +
	`<Override PartName="/xl/ctrlProps/ctrlProp1.xml" ContentType="application/vnd.ms-excel.controlproperties+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const fixtureRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>` +
	`</Relationships>`

const fixtureWorkbook = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
	`<workbookPr codeName="ThisWorkbook"/><bookViews><workbookView xWindow="0" yWindow="0" activeTab="1"/></bookViews>` +
	`<sheets><sheet name="Data" sheetId="1" r:id="rId1"/><sheet name="Controls" sheetId="2" r:id="rId2"/></sheets>` +
	`<calcPr calcId="191029"/></workbook>`

const fixtureWorkbookRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="theme/theme1.xml"/>` +
	`<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/>` +
	`<Relationship Id="rId6" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/calcChain" Target="calcChain.xml"/>` +
	`</Relationships>`

const fixtureSheet1 = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" xmlns:x14ac="http://schemas.microsoft.com/office/spreadsheetml/2009/9/ac" mc:Ignorable="x14ac">` +
	`<sheetPr codeName="Sheet1"/><dimension ref="A1:B2"/>` +
	`<sheetViews><sheetView workbookViewId="0"/></sheetViews>` +
	`<sheetFormatPr defaultRowHeight="15" x14ac:dyDescent="0.25"/>` +
	`<sheetData>` +
	`<row r="1" spans="1:2" x14ac:dyDescent="0.25"><c r="A1" t="s"><v>0</v></c><c r="B1"><v>42</v></c></row>` +
	`<row r="2" spans="1:2" x14ac:dyDescent="0.25"><c r="A2" s="0"><f>B1*2</f><v>84</v></c><c r="B2" t="b"><v>1</v></c></row>` +
	`</sheetData>` +
	`<pageMargins left="0.7" right="0.7" top="0.75" bottom="0.75" header="0.3" footer="0.3"/>` +
	`</worksheet>`

const fixtureSheet2 = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" xmlns:x14="http://schemas.microsoft.com/office/spreadsheetml/2009/9/main" mc:Ignorable="x14">` +
	`<sheetPr codeName="Sheet2"/><dimension ref="A1"/>` +
	`<sheetViews><sheetView tabSelected="1" workbookViewId="0"/></sheetViews>` +
	`<sheetData><row r="1"><c r="A1" t="s"><v>1</v></c></row></sheetData>` +
	`<hyperlinks><hyperlink ref="A1" r:id="rId5"/></hyperlinks>` +
	`<pageMargins left="0.7" right="0.7" top="0.75" bottom="0.75" header="0.3" footer="0.3"/>` +
	`<pageSetup orientation="portrait" r:id="rId1"/>` +
	`<drawing r:id="rId2"/><legacyDrawing r:id="rId3"/>` +
	`<mc:AlternateContent><mc:Choice Requires="x14"><controls>` +
	`<mc:AlternateContent><mc:Choice Requires="x14"><control shapeId="1025" r:id="rId4" name="Check Box 1"/></mc:Choice></mc:AlternateContent>` +
	`</controls></mc:Choice></mc:AlternateContent>` +
	`</worksheet>`

const fixtureSheet2Rels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/printerSettings" Target="../printerSettings/printerSettings1.bin"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/drawing" Target="../drawings/drawing1.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/vmlDrawing" Target="../drawings/vmlDrawing1.vml"/>` +
	`<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/ctrlProp" Target="../ctrlProps/ctrlProp1.xml"/>` +
	`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/" TargetMode="External"/>` +
	`</Relationships>`

const fixtureDrawing = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<xdr:wsDr xmlns:xdr="http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
	`<xdr:twoCellAnchor editAs="oneCell"><xdr:from><xdr:col>1</xdr:col><xdr:colOff>0</xdr:colOff><xdr:row>2</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:from>` +
	`<xdr:to><xdr:col>4</xdr:col><xdr:colOff>0</xdr:colOff><xdr:row>9</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:to>` +
	`<xdr:pic><xdr:nvPicPr><xdr:cNvPr id="2" name="Picture 1"/><xdr:cNvPicPr/></xdr:nvPicPr>` +
	`<xdr:blipFill><a:blip xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" r:embed="rId1"/><a:stretch><a:fillRect/></a:stretch></xdr:blipFill>` +
	`<xdr:spPr/></xdr:pic><xdr:clientData/></xdr:twoCellAnchor></xdr:wsDr>`

const fixtureDrawingRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>` +
	`</Relationships>`

const fixtureSharedStrings = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="2" uniqueCount="2">` +
	`<si><t>Name</t></si><si><r><t>Hel</t></r><r><t>lo</t></r></si></sst>`

var (
	fixturePrinterSettings = []byte{0x44, 0x45, 0x56, 0x4d, 0x4f, 0x44, 0x45, 0x00, 0x01, 0x02}
	fixtureImage           = []byte("\x89PNG\r\n\x1a\nnot really a png")
)

func fixtureEntries() map[string][]byte {
	return map[string][]byte{
		"[Content_Types].xml":                     []byte(fixtureContentTypes),
		"_rels/.rels":                             []byte(fixtureRootRels),
		"docProps/core.xml":                       []byte(`<?xml version="1.0"?><cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"/>`),
		"xl/workbook.xml":                         []byte(fixtureWorkbook),
		"xl/_rels/workbook.xml.rels":              []byte(fixtureWorkbookRels),
		"xl/theme/theme1.xml":                     []byte(`<?xml version="1.0"?><a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Office Theme"/>`),
		"xl/styles.xml":                           []byte(minimalStyles),
		"xl/sharedStrings.xml":                    []byte(fixtureSharedStrings),
		"xl/calcChain.xml":                        []byte(`<?xml version="1.0"?><calcChain xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><c r="A2" i="1"/></calcChain>`),
		"xl/worksheets/sheet1.xml":                []byte(fixtureSheet1),
		"xl/worksheets/sheet2.xml":                []byte(fixtureSheet2),
		"xl/worksheets/_rels/sheet2.xml.rels":     []byte(fixtureSheet2Rels),
		"xl/drawings/drawing1.xml":                []byte(fixtureDrawing),
		"xl/drawings/_rels/drawing1.xml.rels":     []byte(fixtureDrawingRels),
		"xl/drawings/vmlDrawing1.vml":             []byte(`<xml xmlns:v="urn:schemas-microsoft-com:vml"><v:shape id="_x0000_s1025"/></xml>`),
		"xl/ctrlProps/ctrlProp1.xml":              []byte(`<?xml version="1.0"?><formControlPr xmlns="http://schemas.microsoft.com/office/spreadsheetml/2009/9/main" objectType="CheckBox"/>`),
		"xl/printerSettings/printerSettings1.bin": fixturePrinterSettings,
		"xl/media/image1.png":                     fixtureImage,
	}
}

// zipEntries builds a zip archive holding entries, in sorted order.
func zipEntries(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	mem := container.NewMemory()
	for _, name := range sortedNames(entries) {
		require.NoError(t, mem.WriteEntry(name, entries[name]))
	}
	var buf bytes.Buffer
	zw := container.NewZipWriter(&buf, container.ZipOptions{})
	require.NoError(t, mem.CopyTo(zw))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sortedNames(entries map[string][]byte) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fixtureBytes(t *testing.T) []byte {
	t.Helper()
	return zipEntries(t, fixtureEntries())
}

func readFixture(t *testing.T, opts ...Option) *Document {
	t.Helper()
	d, err := ReadBytes(fixtureBytes(t), opts...)
	require.NoError(t, err)
	return d
}

// unzip returns every entry of a written archive.
func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = buf.Bytes()
	}
	return out
}

// reread writes d and reads the archive back.
func reread(t *testing.T, d *Document) (*Document, []byte) {
	t.Helper()
	data, err := WriteBytes(d, SaveOptions{})
	require.NoError(t, err)
	back, err := ReadBytes(data)
	require.NoError(t, err)
	return back, data
}
