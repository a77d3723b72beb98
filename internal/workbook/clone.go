package workbook

import (
	"fmt"
)

// CloneSheet deep-copies src and appends the copy to the Document. The copy
// gets a fresh code name, sheet path and drawing path, and a fresh path for
// every opaque part; payload bytes are copied, and shared parts such as
// images stay shared. Cell grids are never aliased.
//
// The copy is untitled: the caller must give it a title before the Document
// is written. On failure the Document is left exactly as it was.
func (d *Document) CloneSheet(src *Worksheet) (*Worksheet, error) {
	if d.SheetIndex(src) < 0 {
		return nil, unknownSheet(src)
	}

	tx := d.alloc.Begin()
	defer tx.Rollback()

	code, err := tx.NewCodeName()
	if err != nil {
		return nil, fmt.Errorf("could not clone %s: %w", src.codeName, err)
	}
	sheetPath, err := tx.NewPath(nsWorksheet)
	if err != nil {
		return nil, fmt.Errorf("could not clone %s: %w", src.codeName, err)
	}
	sheetID, err := tx.NewSheetID()
	if err != nil {
		return nil, fmt.Errorf("could not clone %s: %w", src.codeName, err)
	}
	relID, err := tx.NewRelID(relIDs(d.bookRels))
	if err != nil {
		return nil, fmt.Errorf("could not clone %s: %w", src.codeName, err)
	}

	dst := src.copyStructure()
	dst.doc = d
	dst.codeName = code
	dst.path = sheetPath
	dst.relID = relID
	dst.sheetID = sheetID
	dst.head = withCodeName(dst.head, code)

	taken := relIDs(dst.links)
	if src.drawing != nil {
		drawingPath, err := tx.NewPath(nsDrawing)
		if err != nil {
			return nil, fmt.Errorf("could not clone drawing of %s: %w", src.codeName, err)
		}
		dst.drawing = src.drawing.clone(code, drawingPath)
		taken = append(taken, dst.drawing.relID)
	}

	parts, err := d.store.copyParts(tx, src.codeName, code, taken)
	if err != nil {
		return nil, fmt.Errorf("could not clone %s: %w", src.codeName, err)
	}
	tx.Commit()

	d.store.parts[code] = parts
	d.bookRels = append(d.bookRels, Relationship{ID: relID, Type: RelTypeWorksheet, Target: sheetPath})
	d.sheets = append(d.sheets, dst)
	d.log.Verbose("cloned %s to %s at %s with %d opaque parts", src.codeName, code, sheetPath, len(parts))
	return dst, nil
}

// CloneSheetAs clones src and titles the copy. The title is checked before
// anything is allocated.
func (d *Document) CloneSheetAs(src *Worksheet, title string) (*Worksheet, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if d.titleOwner(title) != nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
	}
	dst, err := d.CloneSheet(src)
	if err != nil {
		return nil, err
	}
	dst.title = title
	return dst, nil
}
