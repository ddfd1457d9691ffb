package engine

import (
	"time"

	"github.com/tuannm99/reldb/internal/exec"
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/plan"
	"github.com/tuannm99/reldb/internal/typesystem"
	"github.com/tuannm99/reldb/internal/wire"
)

// BenchmarkRangeQuery times a single range predicate end to end, split
// into query execution and wire serialization, the diagnostic spec.md
// §6.2 calls out as a minimum host command (benchmark_range_query).
func (d *Database) BenchmarkRangeQuery(table, column string, threshold typesystem.Value) (BenchmarkResult, error) {
	p := &plan.Filter{
		Pred: expr.Cmp{
			Op: expr.Gt,
			L:  expr.Col{Name: column},
			R:  expr.Lit{Value: threshold},
		},
		Child: &plan.Scan{Table: table},
	}

	queryStart := time.Now()
	rows, err := d.Select(p)
	queryMs := float64(time.Since(queryStart)) / float64(time.Millisecond)
	if err != nil {
		return BenchmarkResult{}, err
	}

	var cols []string
	if len(rows) > 0 {
		cols = rows[0].Cols
	}
	tags := exec.ColumnTags(cols, rows)
	layout, err := d.cache.GetOrBuild(cols, tags)
	if err != nil {
		return BenchmarkResult{}, err
	}
	wireRows := make([]wire.Row, len(rows))
	for i, r := range rows {
		wireRows[i] = wire.Row(r.Vals)
	}

	serializeStart := time.Now()
	_, err = wire.Encode(wireRows, layout)
	serializeMs := float64(time.Since(serializeStart)) / float64(time.Millisecond)
	if err != nil {
		return BenchmarkResult{}, err
	}

	total := queryMs + serializeMs
	overheadPct := 0.0
	if total > 0 {
		overheadPct = serializeMs / total * 100
	}

	return BenchmarkResult{
		QueryMs:                  queryMs,
		SerializeMs:              serializeMs,
		SerializationOverheadPct: overheadPct,
	}, nil
}
