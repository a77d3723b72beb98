package workbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/sheetkit/internal/container"
)

func TestCloneProducesNoDuplicateEntries(t *testing.T) {
	d := readFixture(t)
	src := d.Sheets()[1]
	require.Len(t, src.Drawings(), 1)
	require.Len(t, src.OpaqueParts(KindPrinterSettings), 1)

	clone, err := d.CloneSheet(src)
	require.NoError(t, err)
	require.NoError(t, clone.SetTitle("Clone"))

	data, err := WriteBytes(d, SaveOptions{})
	require.NoError(t, err)

	dups, err := container.DuplicateEntries(data)
	require.NoError(t, err)
	assert.Empty(t, dups)

	entries := unzip(t, data)
	assert.Contains(t, entries, "xl/worksheets/sheet3.xml")
	assert.Contains(t, entries, "xl/drawings/drawing2.xml")
	assert.Contains(t, entries, "xl/drawings/_rels/drawing2.xml.rels")
	assert.Contains(t, entries, "xl/printerSettings/printerSettings2.bin")
	assert.Contains(t, entries, "xl/drawings/vmlDrawing2.vml")
	assert.Contains(t, entries, "xl/ctrlProps/ctrlProp2.xml")
	assert.NotContains(t, entries, "xl/media/image2.png", "image bytes stay shared")
}

func TestCloneReKeysIdentity(t *testing.T) {
	d := readFixture(t)
	src := d.Sheets()[1]

	clone, err := d.CloneSheet(src)
	require.NoError(t, err)

	assert.Equal(t, CodeName("Sheet3"), clone.CodeName())
	assert.NotEqual(t, src.Path(), clone.Path())
	assert.Empty(t, clone.Title())
	assert.Equal(t, 3, clone.SheetID())
	assert.Same(t, clone, d.SheetByCodeName("Sheet3"))

	dr := clone.Drawings()[0]
	assert.Equal(t, clone.CodeName(), dr.Owner())
	assert.NotEqual(t, src.Drawings()[0].Path(), dr.Path())
	assert.Equal(t, src.Drawings()[0].Relationships(), dr.Relationships(), "drawing points at the same image")
	assert.Equal(t, src.Drawings()[0].Anchors(), dr.Anchors())
}

func TestClonePreservesOpaqueParts(t *testing.T) {
	d := readFixture(t)
	src := d.Sheets()[1]
	clone, err := d.CloneSheetAs(src, "Clone")
	require.NoError(t, err)

	for _, kind := range AllKinds {
		want := d.Store().Get(src.CodeName(), kind)
		got := d.Store().Get(clone.CodeName(), kind)
		assert.Equal(t, want, got, kind.String())
	}
	assert.Equal(t, 1, d.Store().Count(clone.CodeName(), KindAlternateContent))
	assert.Equal(t, fixturePrinterSettings, d.Store().Get(clone.CodeName(), KindPrinterSettings)[0])

	// The copies are independent of the source.
	part := clone.OpaqueParts(KindPrinterSettings)[0]
	part.Payload[0] = 0xff
	assert.Equal(t, fixturePrinterSettings, d.Store().Get(src.CodeName(), KindPrinterSettings)[0])
}

func TestCloneIsolatesCells(t *testing.T) {
	d := readFixture(t)
	src, err := d.Sheet("Data")
	require.NoError(t, err)
	clone, err := d.CloneSheetAs(src, "Data (2)")
	require.NoError(t, err)

	require.NoError(t, clone.SetCell("A1", "changed"))
	require.NoError(t, src.SetCell("B1", 7))

	assert.Equal(t, "Name", src.Value("A1"))
	assert.Equal(t, "changed", clone.Value("A1"))
	assert.Equal(t, "7", src.Value("B1"))
	assert.Equal(t, "42", clone.Value("B1"))

	c, err := clone.Cell("A2")
	require.NoError(t, err)
	assert.Equal(t, "B1*2", c.Formula)
}

func TestCloneUntitledCannotBeWritten(t *testing.T) {
	d := readFixture(t)
	_, err := d.CloneSheet(d.Sheets()[0])
	require.NoError(t, err)

	_, err = WriteBytes(d, SaveOptions{})
	require.ErrorIs(t, err, ErrUntitledSheet)
	require.ErrorIs(t, d.Validate(), ErrUntitledSheet)
}

func TestCloneSheetAsRejectsTakenTitle(t *testing.T) {
	d := readFixture(t)
	before := d.Allocator().Paths()

	_, err := d.CloneSheetAs(d.Sheets()[1], "data")
	require.ErrorIs(t, err, ErrDuplicateTitle)
	assert.Len(t, d.Sheets(), 2)
	assert.Equal(t, before, d.Allocator().Paths())
}

func TestCloneFailsAtomically(t *testing.T) {
	d := readFixture(t)
	src := d.Sheets()[1]
	before := d.Allocator().Paths()

	// The printer settings namespace is full; every earlier allocation of the
	// clone succeeds and has to be undone.
	d.alloc.limit = 5
	require.True(t, d.alloc.Claim("xl/printerSettings/printerSettings5.bin"))
	before = append(before, "xl/printerSettings/printerSettings5.bin")

	_, err := d.CloneSheet(src)
	require.ErrorIs(t, err, ErrAllocatorExhausted)

	assert.Len(t, d.Sheets(), 2)
	assert.ElementsMatch(t, before, d.Allocator().Paths())
	assert.Nil(t, d.SheetByCodeName("Sheet3"))
	assert.Empty(t, d.Store().Parts("Sheet3"))

	d.alloc.limit = MaxIndex
	clone, err := d.CloneSheet(src)
	require.NoError(t, err)
	assert.Equal(t, CodeName("Sheet3"), clone.CodeName())
	assert.Equal(t, "xl/worksheets/sheet3.xml", clone.Path())
}

func TestCloneOfCloneAndRemoval(t *testing.T) {
	d := readFixture(t)
	first, err := d.CloneSheetAs(d.Sheets()[1], "First")
	require.NoError(t, err)
	second, err := d.CloneSheetAs(first, "Second")
	require.NoError(t, err)

	require.NoError(t, d.RemoveSheet(first))
	third, err := d.CloneSheetAs(second, "Third")
	require.NoError(t, err)

	// Identifiers of the removed sheet are not handed out again.
	assert.Equal(t, CodeName("Sheet5"), third.CodeName())
	assert.Equal(t, "xl/worksheets/sheet5.xml", third.Path())
	assert.Equal(t, "xl/drawings/drawing4.xml", third.Drawings()[0].Path())

	back, data := reread(t, d)
	dups, err := container.DuplicateEntries(data)
	require.NoError(t, err)
	assert.Empty(t, dups)
	require.Len(t, back.Sheets(), 4)
	for _, ws := range back.Sheets()[1:] {
		assert.Len(t, ws.Drawings(), 1, ws.Title())
		assert.Len(t, ws.OpaqueParts(KindPrinterSettings), 1, ws.Title())
	}
}

func TestCloneUnknownSheet(t *testing.T) {
	d := readFixture(t)
	other := readFixture(t)

	_, err := d.CloneSheet(other.Sheets()[0])
	require.ErrorIs(t, err, ErrUnknownCodeName)
	_, err = d.CloneSheet(nil)
	require.ErrorIs(t, err, ErrUnknownCodeName)
}

// The clone-and-save-twice scenario: the clone is edited between two saves of
// the same Document, and both files must read back with the cell values of
// their moment.
func TestCloneSaveTwice(t *testing.T) {
	d := readFixture(t)
	src := d.Sheets()[1]
	clone, err := d.CloneSheetAs(src, "Clone")
	require.NoError(t, err)

	dir := t.TempDir()
	firstPath := filepath.Join(dir, "first.xlsx")
	secondPath := filepath.Join(dir, "second.xlsx")

	require.NoError(t, src.SetCell("A8", "original"))
	require.NoError(t, clone.SetCell("A8", "original"))
	require.NoError(t, SaveAs(d, firstPath, SaveOptions{}))

	require.NoError(t, clone.SetCell("A8", "cloned"))
	require.NoError(t, SaveAs(d, secondPath, SaveOptions{}))

	first, err := Open(firstPath)
	require.NoError(t, err)
	second, err := Open(secondPath)
	require.NoError(t, err)

	for _, doc := range []*Document{first, second} {
		require.Len(t, doc.Sheets(), 3)
		for _, ws := range doc.Sheets()[1:] {
			assert.Len(t, ws.Drawings(), 1)
		}
	}

	c1, err := first.Sheet("Clone")
	require.NoError(t, err)
	c2, err := second.Sheet("Clone")
	require.NoError(t, err)
	s2, err := second.Sheet("Controls")
	require.NoError(t, err)
	assert.Equal(t, "original", c1.Value("A8"))
	assert.Equal(t, "cloned", c2.Value("A8"))
	assert.Equal(t, "original", s2.Value("A8"))

	for _, p := range []string{firstPath, secondPath} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		dups, err := container.DuplicateEntries(data)
		require.NoError(t, err)
		assert.Empty(t, dups, p)
	}
}
