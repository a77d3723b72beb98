package workbook

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CodeName is the internal, never displayed identity of a worksheet. Opaque
// parts are keyed by it.
type CodeName string

// MaxIndex bounds every numbered namespace (paths, code names, relationship
// and sheet IDs).
const MaxIndex = 1 << 20

const codeNameStem = "Sheet"

// Allocator issues archive paths, code names, relationship IDs and sheet IDs
// for one Document. Numbering within a namespace is monotonic: an index is
// never handed out twice during the Document's lifetime, even after the entity
// holding it is removed.
//
// Allocator is not safe for concurrent use; it shares the Document's
// single-owner model.
type Allocator struct {
	limit int

	counters map[Namespace]int
	paths    map[string]struct{}

	codeSeq   int
	codeNames map[string]struct{} // lower-cased, every name ever issued

	sheetSeq int
}

// NewAllocator returns an allocator with empty namespaces.
func NewAllocator() *Allocator {
	return &Allocator{
		limit:     MaxIndex,
		counters:  make(map[Namespace]int),
		paths:     make(map[string]struct{}),
		codeNames: make(map[string]struct{}),
	}
}

// NewPath reserves the next free path in ns.
func (a *Allocator) NewPath(ns Namespace) (string, error) {
	n := a.counters[ns]
	for {
		n++
		if n > a.limit {
			return "", fmt.Errorf("%w: namespace %s", ErrAllocatorExhausted, ns)
		}
		p := ns.Path(n)
		if _, taken := a.paths[p]; taken {
			continue
		}
		a.counters[ns] = n
		a.paths[p] = struct{}{}
		return p, nil
	}
}

// Claim registers a path found in an existing archive and advances the
// namespace counter past its index, so later NewPath calls never land on it.
// It reports false when the path is already registered.
func (a *Allocator) Claim(p string) bool {
	if _, taken := a.paths[p]; taken {
		return false
	}
	a.paths[p] = struct{}{}
	a.Seed(p)
	return true
}

// Seed advances the namespace counter past the index of p without
// registering p.
func (a *Allocator) Seed(p string) {
	if ns, idx, ok := NamespaceOf(p); ok && idx > a.counters[ns] {
		a.counters[ns] = idx
	}
}

// Release unregisters a path whose owner was removed. The namespace counter is
// left untouched.
func (a *Allocator) Release(p string) {
	delete(a.paths, p)
}

// Registered reports whether p is currently owned by a live entity.
func (a *Allocator) Registered(p string) bool {
	_, ok := a.paths[p]
	return ok
}

// Paths returns every registered path, sorted.
func (a *Allocator) Paths() []string {
	out := make([]string, 0, len(a.paths))
	for p := range a.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// NewCodeName issues a code name no entity of this Document has ever carried.
func (a *Allocator) NewCodeName() (CodeName, error) {
	n := a.codeSeq
	for {
		n++
		if n > a.limit {
			return "", fmt.Errorf("%w: code names", ErrAllocatorExhausted)
		}
		name := codeNameStem + strconv.Itoa(n)
		key := strings.ToLower(name)
		if _, taken := a.codeNames[key]; taken {
			continue
		}
		a.codeSeq = n
		a.codeNames[key] = struct{}{}
		return CodeName(name), nil
	}
}

// ClaimCodeName registers a code name read from an archive. It reports false
// for empty names and names already issued, in which case the caller should
// fall back to NewCodeName.
func (a *Allocator) ClaimCodeName(name CodeName) bool {
	if name == "" {
		return false
	}
	key := strings.ToLower(string(name))
	if _, taken := a.codeNames[key]; taken {
		return false
	}
	a.codeNames[key] = struct{}{}
	if strings.HasPrefix(key, strings.ToLower(codeNameStem)) {
		if n, err := strconv.Atoi(key[len(codeNameStem):]); err == nil && n > a.codeSeq {
			a.codeSeq = n
		}
	}
	return true
}

// NewSheetID issues the next workbook sheetId.
func (a *Allocator) NewSheetID() (int, error) {
	if a.sheetSeq >= a.limit {
		return 0, fmt.Errorf("%w: sheet ids", ErrAllocatorExhausted)
	}
	a.sheetSeq++
	return a.sheetSeq, nil
}

// ClaimSheetID records a sheetId read from an archive.
func (a *Allocator) ClaimSheetID(id int) {
	if id > a.sheetSeq {
		a.sheetSeq = id
	}
}

// NewRelID returns "rId<N>" with N one past the highest numeric ID in
// existing. IDs that do not follow the rId<N> form are left alone.
func (a *Allocator) NewRelID(existing []string) (string, error) {
	max := 0
	for _, id := range existing {
		if !strings.HasPrefix(id, "rId") {
			continue
		}
		if n, err := strconv.Atoi(id[3:]); err == nil && n > max {
			max = n
		}
	}
	if max >= a.limit {
		return "", fmt.Errorf("%w: relationship ids", ErrAllocatorExhausted)
	}
	return "rId" + strconv.Itoa(max+1), nil
}

// Tx groups allocations so they can be undone together. Only one Tx may be
// open at a time and no allocations may bypass it while it is open.
type Tx struct {
	a         *Allocator
	counters  map[Namespace]int
	codeSeq   int
	sheetSeq  int
	paths     []string
	codeNames []string
	done      bool
}

// Begin opens a transaction over the allocator.
func (a *Allocator) Begin() *Tx {
	saved := make(map[Namespace]int, len(a.counters))
	for ns, n := range a.counters {
		saved[ns] = n
	}
	return &Tx{a: a, counters: saved, codeSeq: a.codeSeq, sheetSeq: a.sheetSeq}
}

// NewPath reserves a path inside the transaction.
func (tx *Tx) NewPath(ns Namespace) (string, error) {
	p, err := tx.a.NewPath(ns)
	if err != nil {
		return "", err
	}
	tx.paths = append(tx.paths, p)
	return p, nil
}

// NewCodeName issues a code name inside the transaction.
func (tx *Tx) NewCodeName() (CodeName, error) {
	name, err := tx.a.NewCodeName()
	if err != nil {
		return "", err
	}
	tx.codeNames = append(tx.codeNames, strings.ToLower(string(name)))
	return name, nil
}

// NewSheetID issues a sheetId inside the transaction.
func (tx *Tx) NewSheetID() (int, error) { return tx.a.NewSheetID() }

// NewRelID forwards to the allocator; relationship IDs hold no allocator state.
func (tx *Tx) NewRelID(existing []string) (string, error) { return tx.a.NewRelID(existing) }

// Commit keeps every allocation made through the transaction.
func (tx *Tx) Commit() { tx.done = true }

// Rollback returns the allocator to its state at Begin. It is a no-op after
// Commit, so it can be deferred.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	for _, p := range tx.paths {
		delete(tx.a.paths, p)
	}
	for _, name := range tx.codeNames {
		delete(tx.a.codeNames, name)
	}
	tx.a.counters = tx.counters
	tx.a.codeSeq = tx.codeSeq
	tx.a.sheetSeq = tx.sheetSeq
}
