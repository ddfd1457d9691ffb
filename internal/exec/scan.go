package exec

import (
	"fmt"

	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/index"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/table"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// TableProvider resolves a live table by name, the seam the teacher's
// executorDB interface played in internal/sql/executor/executor.go.
type TableProvider interface {
	Table(name string) (*table.Table, error)
}

func toRecord(t *table.Table, row rowstore.Row) Record {
	cols := make([]string, len(t.Schema.Columns))
	vals := make([]typesystem.Value, len(t.Schema.Columns))
	for i, c := range t.Schema.Columns {
		cols[i] = c.Name
		vals[i] = row[i]
	}
	return Record{Cols: cols, Vals: vals}
}

func schemaCols(t *table.Table) []string {
	out := make([]string, len(t.Schema.Columns))
	for i, c := range t.Schema.Columns {
		out[i] = c.Name
	}
	return out
}

type seqScanIter struct {
	t    *table.Table
	ids  []uint64
	pos  int
	cols []string
}

func newSeqScan(t *table.Table) *seqScanIter {
	var ids []uint64
	t.Rows.Scan(func(id uint64, _ rowstore.Row) bool {
		ids = append(ids, id)
		return true
	})
	return &seqScanIter{t: t, ids: ids, cols: schemaCols(t)}
}

func (s *seqScanIter) Columns() []string { return s.cols }

func (s *seqScanIter) Next() (Record, bool, error) {
	for s.pos < len(s.ids) {
		id := s.ids[s.pos]
		s.pos++
		row, err := s.t.Rows.Get(id)
		if err != nil {
			continue // concurrently retired; skip (no internal locking, spec.md §5)
		}
		return toRecord(s.t, row), true, nil
	}
	return Record{}, false, nil
}

// idListIter fetches a fixed list of row-ids in order, used by every
// index-based access path after postings are resolved.
type idListIter struct {
	t    *table.Table
	ids  []uint64
	pos  int
	cols []string
}

func newIDListIter(t *table.Table, ids []uint64) *idListIter {
	return &idListIter{t: t, ids: ids, cols: schemaCols(t)}
}

func (s *idListIter) Columns() []string { return s.cols }

func (s *idListIter) Next() (Record, bool, error) {
	for s.pos < len(s.ids) {
		id := s.ids[s.pos]
		s.pos++
		row, err := s.t.Rows.Get(id)
		if err != nil {
			continue
		}
		return toRecord(s.t, row), true, nil
	}
	return Record{}, false, nil
}

func evalLitValue(e expr.Expr) (typesystem.Value, error) {
	v, err := expr.Eval(e, expr.MapRow{})
	if err != nil {
		return typesystem.Value{}, fmt.Errorf("exec: index key must be a constant expression: %w", err)
	}
	return v, nil
}

func resolveOrdered(t *table.Table, name string) (*index.Ordered, *index.Unique, bool) {
	if name == table.PrimaryKeyIndexName {
		return nil, t.PrimaryKeyIndex(), true
	}
	if ix, ok := t.OrderedIndex(name); ok {
		return ix, nil, true
	}
	if ix, ok := t.UniqueIndex(name); ok {
		return nil, ix, true
	}
	return nil, nil, false
}
