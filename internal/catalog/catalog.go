// Package catalog is the schema registry (component C2): table and column
// definitions, index declarations, name resolution and primary-key binding.
//
// Grounded on the teacher's internal/catalog/model.go (TableMeta shape) and
// internal/record/schema.go (Column/Schema shape), generalized from the
// teacher's file-backed metadata to an in-memory registry.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tuannm99/reldb/internal/typesystem"
)

var (
	ErrSchemaConflict   = errors.New("catalog: table already exists")
	ErrUnknownTable     = errors.New("catalog: unknown table")
	ErrUnknownColumn    = errors.New("catalog: unknown column")
	ErrInvalidPrimaryKey = errors.New("catalog: exactly one primary key column is required")
	ErrIndexConflict    = errors.New("catalog: index already exists")
)

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       typesystem.Tag
	Nullable   bool
	PrimaryKey bool
}

// IndexKind enumerates the index shapes C4 maintains.
type IndexKind uint8

const (
	IndexOrdered IndexKind = iota
	IndexUnique
	IndexGIN
)

// IndexDef declares a secondary index at schema-registration time.
type IndexDef struct {
	Name   string
	Kind   IndexKind
	Column string // ordered/unique: the indexed column; GIN: the Jsonb column
}

// Schema is the immutable, registered shape of one table.
type Schema struct {
	Name         string
	Columns      []Column
	Indexes      []IndexDef
	PrimaryKey   string
	primaryKeyIx int
	colIx        map[string]int
}

func (s *Schema) ColumnIndex(name string) (int, bool) {
	i, ok := s.colIx[name]
	return i, ok
}

func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.colIx[name]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

func (s *Schema) PrimaryKeyIndex() int { return s.primaryKeyIx }

func (s *Schema) NumColumns() int { return len(s.Columns) }

func newSchema(name string, cols []Column, indexes []IndexDef) (*Schema, error) {
	colIx := make(map[string]int, len(cols))
	pkIx := -1
	for i, c := range cols {
		if _, dup := colIx[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchemaConflict, c.Name)
		}
		colIx[c.Name] = i
		if c.PrimaryKey {
			if pkIx != -1 {
				return nil, ErrInvalidPrimaryKey
			}
			pkIx = i
		}
	}
	if pkIx == -1 {
		return nil, ErrInvalidPrimaryKey
	}
	if cols[pkIx].Nullable {
		return nil, fmt.Errorf("%w: primary key column must be non-null", ErrInvalidPrimaryKey)
	}

	seen := make(map[string]bool, len(indexes))
	for _, ix := range indexes {
		if seen[ix.Name] {
			return nil, fmt.Errorf("%w: %q", ErrIndexConflict, ix.Name)
		}
		seen[ix.Name] = true
		if _, ok := colIx[ix.Column]; !ok {
			return nil, fmt.Errorf("%w: index %q references unknown column %q", ErrUnknownColumn, ix.Name, ix.Column)
		}
	}

	return &Schema{
		Name:         name,
		Columns:      append([]Column(nil), cols...),
		Indexes:      append([]IndexDef(nil), indexes...),
		PrimaryKey:   cols[pkIx].Name,
		primaryKeyIx: pkIx,
		colIx:        colIx,
	}, nil
}

// Registry holds all live table schemas for one engine instance.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Schema)}
}

func (r *Registry) CreateTable(name string, cols []Column, indexes []IndexDef) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrSchemaConflict, name)
	}
	s, err := newSchema(name, cols, indexes)
	if err != nil {
		return nil, err
	}
	r.tables[name] = s
	return s, nil
}

func (r *Registry) DropTable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	delete(r.tables, name)
	return nil
}

func (r *Registry) Table(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return s, nil
}

func (r *Registry) TableNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	return names
}
