package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathIsMonotonic(t *testing.T) {
	a := NewAllocator()

	p1, err := a.NewPath(nsDrawing)
	require.NoError(t, err)
	p2, err := a.NewPath(nsDrawing)
	require.NoError(t, err)

	assert.Equal(t, "xl/drawings/drawing1.xml", p1)
	assert.Equal(t, "xl/drawings/drawing2.xml", p2)

	// A released path is never handed out again.
	a.Release(p2)
	p3, err := a.NewPath(nsDrawing)
	require.NoError(t, err)
	assert.Equal(t, "xl/drawings/drawing3.xml", p3)
}

func TestClaimSeedsCounterFromHighestIndex(t *testing.T) {
	a := NewAllocator()
	require.True(t, a.Claim("xl/printerSettings/printerSettings7.bin"))
	require.True(t, a.Claim("xl/printerSettings/printerSettings2.bin"))
	require.False(t, a.Claim("xl/printerSettings/printerSettings2.bin"), "second claim of the same path")

	p, err := a.NewPath(kindNamespaces[KindPrinterSettings])
	require.NoError(t, err)
	assert.Equal(t, "xl/printerSettings/printerSettings8.bin", p)
}

func TestSeedDoesNotRegister(t *testing.T) {
	a := NewAllocator()
	a.Seed("xl/drawings/drawing4.xml")
	a.Seed("xl/drawings/drawing2.xml")
	assert.False(t, a.Registered("xl/drawings/drawing4.xml"))

	p, err := a.NewPath(nsDrawing)
	require.NoError(t, err)
	assert.Equal(t, "xl/drawings/drawing5.xml", p)
	assert.True(t, a.Claim("xl/drawings/drawing4.xml"))
}

func TestNewPathSkipsPathsClaimedOutOfNamespace(t *testing.T) {
	a := NewAllocator()
	// Registered without advancing the namespace counter.
	a.paths["xl/drawings/drawing1.xml"] = struct{}{}

	p, err := a.NewPath(nsDrawing)
	require.NoError(t, err)
	assert.Equal(t, "xl/drawings/drawing2.xml", p)
}

func TestNamespacesAreIndependent(t *testing.T) {
	a := NewAllocator()
	a.Claim("xl/worksheets/sheet9.xml")

	p, err := a.NewPath(nsDrawing)
	require.NoError(t, err)
	assert.Equal(t, "xl/drawings/drawing1.xml", p)

	vml, err := a.NewPath(kindNamespaces[KindLegacyDrawing])
	require.NoError(t, err)
	assert.Equal(t, "xl/drawings/vmlDrawing1.vml", vml)
}

func TestCodeNamesAreNeverReused(t *testing.T) {
	a := NewAllocator()
	require.True(t, a.ClaimCodeName("Sheet3"))
	require.False(t, a.ClaimCodeName("SHEET3"), "code names compare without case")
	require.False(t, a.ClaimCodeName(""))

	c, err := a.NewCodeName()
	require.NoError(t, err)
	assert.Equal(t, CodeName("Sheet4"), c)

	require.True(t, a.ClaimCodeName("Summary"))
	c, err = a.NewCodeName()
	require.NoError(t, err)
	assert.Equal(t, CodeName("Sheet5"), c)
}

func TestNewRelID(t *testing.T) {
	a := NewAllocator()

	id, err := a.NewRelID(nil)
	require.NoError(t, err)
	assert.Equal(t, "rId1", id)

	id, err = a.NewRelID([]string{"rId3", "rId1", "R7d9", "rIdx"})
	require.NoError(t, err)
	assert.Equal(t, "rId4", id)
}

func TestTxRollbackRestoresState(t *testing.T) {
	a := NewAllocator()
	a.Claim("xl/worksheets/sheet1.xml")
	require.True(t, a.ClaimCodeName("Sheet1"))
	a.ClaimSheetID(1)

	tx := a.Begin()
	code, err := tx.NewCodeName()
	require.NoError(t, err)
	p, err := tx.NewPath(nsWorksheet)
	require.NoError(t, err)
	id, err := tx.NewSheetID()
	require.NoError(t, err)
	assert.Equal(t, CodeName("Sheet2"), code)
	assert.Equal(t, "xl/worksheets/sheet2.xml", p)
	assert.Equal(t, 2, id)
	tx.Rollback()

	assert.False(t, a.Registered(p))
	assert.Equal(t, []string{"xl/worksheets/sheet1.xml"}, a.Paths())

	code, err = a.NewCodeName()
	require.NoError(t, err)
	assert.Equal(t, CodeName("Sheet2"), code, "rolled back code name is free again")
	id, err = a.NewSheetID()
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestTxCommitKeepsAllocations(t *testing.T) {
	a := NewAllocator()
	tx := a.Begin()
	p, err := tx.NewPath(nsDrawing)
	require.NoError(t, err)
	tx.Commit()
	tx.Rollback()

	assert.True(t, a.Registered(p))
}

func TestAllocatorExhausted(t *testing.T) {
	a := NewAllocator()
	a.limit = 2

	_, err := a.NewPath(nsDrawing)
	require.NoError(t, err)
	_, err = a.NewPath(nsDrawing)
	require.NoError(t, err)
	_, err = a.NewPath(nsDrawing)
	require.ErrorIs(t, err, ErrAllocatorExhausted)

	a.Claim("xl/drawings/vmlDrawing2.vml")
	_, err = a.NewPath(kindNamespaces[KindLegacyDrawing])
	require.ErrorIs(t, err, ErrAllocatorExhausted)

	_, err = a.NewRelID([]string{"rId2"})
	require.ErrorIs(t, err, ErrAllocatorExhausted)
}

func TestNamespaceOf(t *testing.T) {
	tests := []struct {
		path  string
		ns    Namespace
		index int
		ok    bool
	}{
		{"xl/worksheets/sheet12.xml", nsWorksheet, 12, true},
		{"xl/media/image3.jpeg", Namespace{Dir: "xl/media", Stem: "image", Ext: ".jpeg"}, 3, true},
		{"xl/vbaProject.bin", Namespace{Dir: "xl", Stem: "vbaProject", Ext: ".bin"}, 0, false},
		{"xl/styles.xml", Namespace{Dir: "xl", Stem: "styles", Ext: ".xml"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ns, idx, ok := NamespaceOf(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ns, ns)
			assert.Equal(t, tt.index, idx)
			if ok {
				assert.Equal(t, tt.path, ns.Path(idx))
			}
		})
	}
}
