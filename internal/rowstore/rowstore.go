// Package rowstore is the per-table row store (component C3): an ordered
// row-id -> row mapping and a row-id allocator. Row-ids are never reused,
// so there is no free-list.
//
// Grounded on the teacher's internal/heap/table.go row lifecycle (insert
// assigns an id, delete retires it) with the on-disk page/slot layout
// (internal/heap/tid.go's TID{PageID,Slot}) collapsed to a single monotonic
// uint64 row-id, since the engine is explicitly in-memory (spec.md §6.3).
// The ordered map itself is backed by github.com/google/btree, giving the
// O(log n) point lookup / O(log n + k) range contract spec.md §4.1 asks for
// without committing to a specific tree implementation.
package rowstore

import (
	"errors"
	"fmt"

	"github.com/google/btree"
	"github.com/tuannm99/reldb/internal/typesystem"
)

var ErrRowNotFound = errors.New("rowstore: row not found")

// Row is a positional tuple of scalars, keyed by column index.
type Row []typesystem.Value

func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

type rowEntry struct {
	id  uint64
	row Row
}

func rowEntryLess(a, b rowEntry) bool { return a.id < b.id }

// Store is the row store for a single table.
type Store struct {
	tree   *btree.BTreeG[rowEntry]
	nextID uint64
	live   int
}

func New() *Store {
	return &Store{
		tree:   btree.NewG(32, rowEntryLess),
		nextID: 1,
	}
}

// Allocate reserves the next monotonic row-id without inserting a row. Used
// by callers (table.Insert) that need the id before the row is stored and
// indexed; Store.Insert takes an already-allocated id.
func (s *Store) Allocate() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// Insert places row under id, which must have come from Allocate and not
// already be live.
func (s *Store) Insert(id uint64, row Row) {
	s.tree.ReplaceOrInsert(rowEntry{id: id, row: row})
	s.live++
}

// Get returns the row for id, or ErrRowNotFound.
func (s *Store) Get(id uint64) (Row, error) {
	e, ok := s.tree.Get(rowEntry{id: id})
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrRowNotFound, id)
	}
	return e.row, nil
}

// Replace overwrites the row at id (used by update); id must be live.
func (s *Store) Replace(id uint64, row Row) error {
	if _, ok := s.tree.Get(rowEntry{id: id}); !ok {
		return fmt.Errorf("%w: id=%d", ErrRowNotFound, id)
	}
	s.tree.ReplaceOrInsert(rowEntry{id: id, row: row})
	return nil
}

// Delete retires id permanently: the row-id is never reused.
func (s *Store) Delete(id uint64) error {
	_, ok := s.tree.Delete(rowEntry{id: id})
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrRowNotFound, id)
	}
	s.live--
	return nil
}

func (s *Store) Len() int { return s.live }

// Scan calls fn for every live row in ascending row-id order, stopping
// early if fn returns false.
func (s *Store) Scan(fn func(id uint64, row Row) bool) {
	s.tree.Ascend(func(e rowEntry) bool {
		return fn(e.id, e.row)
	})
}

// Range calls fn for every live row with lo <= id <= hi, ascending.
func (s *Store) Range(lo, hi uint64, fn func(id uint64, row Row) bool) {
	s.tree.AscendRange(rowEntry{id: lo}, rowEntry{id: hi + 1}, func(e rowEntry) bool {
		return fn(e.id, e.row)
	})
}
