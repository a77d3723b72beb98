package workbook

import "errors"

var (
	// ErrDuplicateTitle indicates a sheet title already used by a sibling.
	ErrDuplicateTitle = errors.New("workbook: duplicate sheet title")

	// ErrInvalidTitle indicates a title that is empty, too long, or contains
	// characters spreadsheet applications reject.
	ErrInvalidTitle = errors.New("workbook: invalid sheet title")

	// ErrUntitledSheet indicates a write attempted while a cloned sheet still
	// has no title.
	ErrUntitledSheet = errors.New("workbook: sheet has no title")

	// ErrUnknownCodeName indicates a part or drawing owned by a code name that
	// no live worksheet carries.
	ErrUnknownCodeName = errors.New("workbook: unknown code name")

	// ErrPackageIntegrity indicates two parts resolved to the same archive path.
	ErrPackageIntegrity = errors.New("workbook: package integrity violated")

	// ErrAllocatorExhausted indicates a namespace ran out of identifiers.
	ErrAllocatorExhausted = errors.New("workbook: allocator exhausted")

	// ErrSheetNotFound indicates a lookup for a sheet that is not in the document.
	ErrSheetNotFound = errors.New("workbook: sheet not found")

	// ErrInvalidCell indicates a malformed cell reference such as "1A".
	ErrInvalidCell = errors.New("workbook: invalid cell reference")

	// ErrMalformedPackage indicates an archive missing required parts.
	ErrMalformedPackage = errors.New("workbook: malformed package")
)
