package exec

import (
	"fmt"

	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// joinKey renders a value to a map key for equi-join hashing. Unlike the
// index package's canonicalKey this never needs to be comparable across
// types since both sides of a join key come from typed columns.
func joinKey(v typesystem.Value) string {
	switch v.Tag {
	case typesystem.Bool:
		return fmt.Sprintf("b:%v", v.Bool)
	case typesystem.Int32:
		return fmt.Sprintf("i:%d", v.I32)
	case typesystem.Int64:
		return fmt.Sprintf("i:%d", v.I64)
	case typesystem.Float64:
		return fmt.Sprintf("f:%v", v.F64)
	case typesystem.String:
		return "s:" + v.Str
	case typesystem.Bytes:
		return "y:" + string(v.Bytes)
	case typesystem.DateTime:
		return "t:" + v.Time.Format("20060102150405.000000000")
	case typesystem.Jsonb:
		return "j:" + v.Json.CanonicalString()
	default:
		return ""
	}
}

func buildIndex(rows []Record, col string) map[string][]int {
	idx := make(map[string][]int)
	for i, r := range rows {
		v, ok := r.Col(col)
		if !ok || v.IsNull() {
			continue // NULL never matches a join equality, same as Cmp
		}
		k := joinKey(v)
		idx[k] = append(idx[k], i)
	}
	return idx
}

func mergeRecords(left, right Record) Record {
	cols := make([]string, 0, len(left.Cols)+len(right.Cols))
	vals := make([]typesystem.Value, 0, len(left.Vals)+len(right.Vals))
	cols = append(cols, left.Cols...)
	vals = append(vals, left.Vals...)
	cols = append(cols, right.Cols...)
	vals = append(vals, right.Vals...)
	return Record{Cols: cols, Vals: vals}
}

func nullRecord(cols []string) Record {
	vals := make([]typesystem.Value, len(cols))
	for i := range vals {
		vals[i] = typesystem.NewNull()
	}
	return Record{Cols: cols, Vals: vals}
}

// newHashJoinIter implements InnerJoin/LeftJoin as a hash join. For
// InnerJoin the build side is whichever input materializes smaller; for
// LeftJoin the hash table is always built on the right so every left row
// can be visited exactly once, matched or null-padded.
func newHashJoinIter(left, right Iterator, kind optimize.JoinKind, on optimize.JoinOn) (Iterator, error) {
	leftRows, err := materialize(left)
	if err != nil {
		return nil, err
	}
	rightRows, err := materialize(right)
	if err != nil {
		return nil, err
	}
	leftCols, rightCols := left.Columns(), right.Columns()
	outCols := make([]string, 0, len(leftCols)+len(rightCols))
	outCols = append(outCols, leftCols...)
	outCols = append(outCols, rightCols...)

	var out []Record

	switch kind {
	case optimize.LeftJoin:
		idx := buildIndex(rightRows, on.RightCol)
		for _, l := range leftRows {
			v, ok := l.Col(on.LeftCol)
			matched := false
			if ok && !v.IsNull() {
				for _, ri := range idx[joinKey(v)] {
					matched = true
					out = append(out, mergeRecords(l, rightRows[ri]))
				}
			}
			if !matched {
				out = append(out, mergeRecords(l, nullRecord(rightCols)))
			}
		}

	default: // InnerJoin
		if len(leftRows) <= len(rightRows) {
			idx := buildIndex(leftRows, on.LeftCol)
			for _, r := range rightRows {
				v, ok := r.Col(on.RightCol)
				if !ok || v.IsNull() {
					continue
				}
				for _, li := range idx[joinKey(v)] {
					out = append(out, mergeRecords(leftRows[li], r))
				}
			}
		} else {
			idx := buildIndex(rightRows, on.RightCol)
			for _, l := range leftRows {
				v, ok := l.Col(on.LeftCol)
				if !ok || v.IsNull() {
					continue
				}
				for _, ri := range idx[joinKey(v)] {
					out = append(out, mergeRecords(l, rightRows[ri]))
				}
			}
		}
	}

	return &sliceIterator{cols: outCols, rows: out}, nil
}
