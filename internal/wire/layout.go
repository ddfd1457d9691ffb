// Package wire implements the binary result buffer codec (component C9): a
// self-describing fixed-stride row block with a trailing variable region for
// String/Bytes/Jsonb payloads, plus the schema layout descriptor that
// accompanies every buffer.
//
// Grounded on the teacher's internal/storage/rowcodec.go fixed-slot encoding
// idiom (offset table built once per schema, then reused per row) and its
// little-endian, encoding/binary style; the layout cache is new, backed by
// github.com/hashicorp/golang-lru/v2 as used for index caches in the rest of
// the pack.
package wire

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// TypeCode is the wire-stable type tag code (spec.md §6.1), independent of
// typesystem.Tag's in-memory ordinal so the wire format never shifts under
// an internal type-tag reshuffle.
type TypeCode uint8

const (
	CodeBool     TypeCode = 0
	CodeInt32    TypeCode = 1
	CodeInt64    TypeCode = 2
	CodeFloat64  TypeCode = 3
	CodeString   TypeCode = 4
	CodeDateTime TypeCode = 5
	CodeBytes    TypeCode = 6
	CodeJsonb    TypeCode = 7
)

func codeOf(t typesystem.Tag) (TypeCode, error) {
	switch t {
	case typesystem.Bool:
		return CodeBool, nil
	case typesystem.Int32:
		return CodeInt32, nil
	case typesystem.Int64:
		return CodeInt64, nil
	case typesystem.Float64:
		return CodeFloat64, nil
	case typesystem.String:
		return CodeString, nil
	case typesystem.DateTime:
		return CodeDateTime, nil
	case typesystem.Bytes:
		return CodeBytes, nil
	case typesystem.Jsonb:
		return CodeJsonb, nil
	default:
		return 0, fmt.Errorf("wire: column tag %s has no wire type code", t)
	}
}

func slotSize(c TypeCode) uint32 {
	switch c {
	case CodeBool:
		return 1
	case CodeInt32:
		return 4
	default:
		return 8 // Int64, Float64, String, DateTime, Bytes, Jsonb are all 8-byte slots
	}
}

// Column describes one output column's wire placement.
type Column struct {
	Name   string
	Tag    typesystem.Tag
	Code   TypeCode
	Offset uint32
}

// Layout is the schema layout descriptor of spec.md §6.1: column_count, the
// per-column (name, type_tag, fixed_offset) triple, and null_mask_size.
type Layout struct {
	Columns      []Column
	NullMaskSize uint32
	RowStride    uint32
}

// NewLayout builds a layout descriptor from an ordered (name, tag) column
// list, the projection's output shape.
func NewLayout(names []string, tags []typesystem.Tag) (*Layout, error) {
	if len(names) != len(tags) {
		return nil, fmt.Errorf("wire: names/tags length mismatch")
	}
	nullMaskSize := uint32((len(names) + 7) / 8)
	offset := nullMaskSize
	cols := make([]Column, len(names))
	for i, name := range names {
		code, err := codeOf(tags[i])
		if err != nil {
			return nil, err
		}
		cols[i] = Column{Name: name, Tag: tags[i], Code: code, Offset: offset}
		offset += slotSize(code)
	}
	return &Layout{Columns: cols, NullMaskSize: nullMaskSize, RowStride: offset}, nil
}

// Signature is a stable cache key for a layout's shape: column order, names
// and tags, but not offsets (those are derived, not independent state).
func (l *Layout) Signature() string {
	sig := make([]byte, 0, 32*len(l.Columns))
	for _, c := range l.Columns {
		sig = append(sig, []byte(c.Name)...)
		sig = append(sig, ':', byte(c.Code), ',')
	}
	return string(sig)
}

// LayoutCache caches descriptors keyed by projection signature so repeated
// selects over the same output shape skip recomputation (spec.md §6.1:
// "Implementations may cache this descriptor keyed by the projection
// signature").
type LayoutCache struct {
	cache *lru.Cache[string, *Layout]
}

func NewLayoutCache(size int) (*LayoutCache, error) {
	c, err := lru.New[string, *Layout](size)
	if err != nil {
		return nil, fmt.Errorf("wire: layout cache: %w", err)
	}
	return &LayoutCache{cache: c}, nil
}

func (lc *LayoutCache) GetOrBuild(names []string, tags []typesystem.Tag) (*Layout, error) {
	probe, err := NewLayout(names, tags)
	if err != nil {
		return nil, err
	}
	sig := probe.Signature()
	if hit, ok := lc.cache.Get(sig); ok {
		return hit, nil
	}
	lc.cache.Add(sig, probe)
	return probe, nil
}
