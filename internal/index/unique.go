package index

import (
	"errors"
	"fmt"

	"github.com/tuannm99/reldb/internal/typesystem"
)

var ErrUniqueViolation = errors.New("index: unique constraint violation")

// Unique is a unique-valued index: at most one row-id per key, and at most
// one row with a null value (spec.md §3).
type Unique struct {
	byKey   map[string]uint64
	nullRow *uint64
}

func NewUnique() *Unique {
	return &Unique{byKey: make(map[string]uint64)}
}

func uniqueKey(v typesystem.Value) string {
	if s := canonicalKey(v); s != "" {
		return s
	}
	return v.Tag.String() + ":" + scalarKeyString(v)
}

// CheckInsert reports whether key would collide without mutating the index.
func (u *Unique) CheckInsert(key typesystem.Value) error {
	if key.IsNull() {
		if u.nullRow != nil {
			return fmt.Errorf("%w: duplicate null", ErrUniqueViolation)
		}
		return nil
	}
	if _, exists := u.byKey[uniqueKey(key)]; exists {
		return fmt.Errorf("%w: key already present", ErrUniqueViolation)
	}
	return nil
}

func (u *Unique) Add(key typesystem.Value, id uint64) {
	if key.IsNull() {
		v := id
		u.nullRow = &v
		return
	}
	u.byKey[uniqueKey(key)] = id
}

func (u *Unique) Remove(key typesystem.Value) {
	if key.IsNull() {
		u.nullRow = nil
		return
	}
	delete(u.byKey, uniqueKey(key))
}

func (u *Unique) Get(key typesystem.Value) (uint64, bool) {
	if key.IsNull() {
		if u.nullRow == nil {
			return 0, false
		}
		return *u.nullRow, true
	}
	id, ok := u.byKey[uniqueKey(key)]
	return id, ok
}
