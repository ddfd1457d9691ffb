// Package typesystem defines the engine's scalar type tag set, null
// semantics, three-valued logic and value ordering (component C1).
package typesystem

import (
	"bytes"
	"fmt"
	"time"
)

// Tag is the scalar type tag carried by every Value.
type Tag uint8

const (
	Bool Tag = iota
	Int32
	Int64
	Float64
	String
	DateTime
	Bytes
	Jsonb
	Null
)

func (t Tag) String() string {
	switch t {
	case Bool:
		return "Bool"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float64:
		return "Float64"
	case String:
		return "String"
	case DateTime:
		return "DateTime"
	case Bytes:
		return "Bytes"
	case Jsonb:
		return "Jsonb"
	case Null:
		return "Null"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Value is a tagged scalar. Exactly one of the typed fields is meaningful,
// selected by Tag; Tag == Null means the value carries no payload.
type Value struct {
	Tag   Tag
	Bool  bool
	I32   int32
	I64   int64
	F64   float64
	Str   string
	Time  time.Time
	Bytes []byte
	Json  JSON
}

func NewNull() Value               { return Value{Tag: Null} }
func NewBool(b bool) Value          { return Value{Tag: Bool, Bool: b} }
func NewInt32(v int32) Value        { return Value{Tag: Int32, I32: v} }
func NewInt64(v int64) Value        { return Value{Tag: Int64, I64: v} }
func NewFloat64(v float64) Value    { return Value{Tag: Float64, F64: v} }
func NewString(v string) Value      { return Value{Tag: String, Str: v} }
func NewDateTime(v time.Time) Value { return Value{Tag: DateTime, Time: v} }
func NewBytes(v []byte) Value       { return Value{Tag: Bytes, Bytes: v} }
func NewJsonb(v JSON) Value         { return Value{Tag: Jsonb, Json: v} }

func (v Value) IsNull() bool { return v.Tag == Null }

// Equal is value equality within a shared tag; values of differing tags are
// never equal (the engine never compares across tags after type checking).
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case Null:
		return true
	case Bool:
		return v.Bool == o.Bool
	case Int32:
		return v.I32 == o.I32
	case Int64:
		return v.I64 == o.I64
	case Float64:
		return v.F64 == o.F64
	case String:
		return v.Str == o.Str
	case DateTime:
		return v.Time.Equal(o.Time)
	case Bytes:
		return bytes.Equal(v.Bytes, o.Bytes)
	case Jsonb:
		return v.Json.CanonicalString() == o.Json.CanonicalString()
	default:
		return false
	}
}

// Compare returns -1/0/1 for ordering of two non-null, same-tag values.
// Null is unordered: callers must special-case it before calling Compare.
func (v Value) Compare(o Value) int {
	switch v.Tag {
	case Bool:
		if v.Bool == o.Bool {
			return 0
		}
		if !v.Bool {
			return -1
		}
		return 1
	case Int32:
		return cmpInt(int64(v.I32), int64(o.I32))
	case Int64:
		return cmpInt(v.I64, o.I64)
	case Float64:
		return cmpFloat(v.F64, o.F64)
	case String:
		return bytes.Compare([]byte(v.Str), []byte(o.Str))
	case DateTime:
		if v.Time.Equal(o.Time) {
			return 0
		}
		if v.Time.Before(o.Time) {
			return -1
		}
		return 1
	case Bytes:
		return bytes.Compare(v.Bytes, o.Bytes)
	case Jsonb:
		return bytes.Compare([]byte(v.Json.CanonicalString()), []byte(o.Json.CanonicalString()))
	default:
		return 0
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Tri is a three-valued logic result: True, False or Unknown.
type Tri uint8

const (
	TriFalse Tri = iota
	TriTrue
	TriUnknown
)

func TriFromBool(b bool) Tri {
	if b {
		return TriTrue
	}
	return TriFalse
}

func (t Tri) And(o Tri) Tri {
	if t == TriFalse || o == TriFalse {
		return TriFalse
	}
	if t == TriUnknown || o == TriUnknown {
		return TriUnknown
	}
	return TriTrue
}

func (t Tri) Or(o Tri) Tri {
	if t == TriTrue || o == TriTrue {
		return TriTrue
	}
	if t == TriUnknown || o == TriUnknown {
		return TriUnknown
	}
	return TriFalse
}

func (t Tri) Not() Tri {
	switch t {
	case TriTrue:
		return TriFalse
	case TriFalse:
		return TriTrue
	default:
		return TriUnknown
	}
}
