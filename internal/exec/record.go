// Package exec is the pull-based executor (component C8): every operator
// exposes "produce next row or EOF" and compiles a optimize.Physical plan
// into a tree of such operators over live tables.
//
// Grounded on the teacher's internal/sql/executor/executor.go switch-over-
// plan-node dispatch idiom and its executorDB seam (here: TableProvider),
// generalized from the teacher's single-statement dispatch to a full
// operator tree with Filter/Project/Sort/Limit/Join/Aggregate nodes.
package exec

import "github.com/tuannm99/reldb/internal/typesystem"

// Record is one output row labeled by column name, the shape that flows
// between operators (a plain rowstore.Row only has positional columns,
// which stops working once Join/Project reshape the tuple).
type Record struct {
	Cols []string
	Vals []typesystem.Value
}

func (r Record) Col(name string) (typesystem.Value, bool) {
	for i, c := range r.Cols {
		if c == name {
			return r.Vals[i], true
		}
	}
	return typesystem.Value{}, false
}

func (r Record) Clone() Record {
	cols := make([]string, len(r.Cols))
	copy(cols, r.Cols)
	vals := make([]typesystem.Value, len(r.Vals))
	copy(vals, r.Vals)
	return Record{Cols: cols, Vals: vals}
}

// Iterator is the pull-based operator contract: Next returns the next row,
// or ok=false at end of stream.
type Iterator interface {
	Columns() []string
	Next() (Record, bool, error)
}

// materialize drains it fully, used by operators that must see the whole
// input before producing output (Sort, HashJoin, Aggregate).
func materialize(it Iterator) ([]Record, error) {
	var out []Record
	for {
		r, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, r)
	}
}

// Materialize drains it to a plain row slice, the entry point a host-facing
// select() uses before handing rows to a result sink.
func Materialize(it Iterator) ([]Record, error) {
	return materialize(it)
}

// ColumnTags infers one wire type tag per output column by scanning for the
// first non-null value; an all-null column defaults to Bool, since its slot
// is never read (every row's null bit is set).
func ColumnTags(cols []string, rows []Record) []typesystem.Tag {
	tags := make([]typesystem.Tag, len(cols))
	for i := range tags {
		tags[i] = typesystem.Bool
	}
	found := make([]bool, len(cols))
	for _, r := range rows {
		for i := range cols {
			if found[i] || i >= len(r.Vals) {
				continue
			}
			if v := r.Vals[i]; !v.IsNull() {
				tags[i] = v.Tag
				found[i] = true
			}
		}
	}
	return tags
}

// sliceIterator replays a pre-materialized slice of records.
type sliceIterator struct {
	cols []string
	rows []Record
	pos  int
}

func (s *sliceIterator) Columns() []string { return s.cols }

func (s *sliceIterator) Next() (Record, bool, error) {
	if s.pos >= len(s.rows) {
		return Record{}, false, nil
	}
	r := s.rows[s.pos]
	s.pos++
	return r, true, nil
}
