package engine

import (
	"fmt"

	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/exec"
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/ivm"
	"github.com/tuannm99/reldb/internal/observe"
	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/plan"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/table"
	"github.com/tuannm99/reldb/internal/typesystem"
	"github.com/tuannm99/reldb/internal/wire"
)

// Database is one live schema + table namespace: everything a host reaches
// through create_table/insert/select/observe/trace (spec.md §6.2) for one
// create_database(name) call. Grounded on the teacher's Database struct in
// internal/engine/db.go, replacing its on-disk StorageManager/heap.Table
// pair with the in-memory catalog.Registry + table.Table this spec needs.
type Database struct {
	Name string

	cat    *catalog.Registry
	tables map[string]*table.Table
	cache  *wire.LayoutCache

	// inBatch is set for the duration of one write's table call
	// (Insert/Update/Delete, including its publish to subscribers). A write attempted
	// while it is set is a reentrant write (spec.md §5) and fails
	// synchronously rather than being queued.
	inBatch bool
}

func newDatabase(name string, cfg Config) (*Database, error) {
	cache, err := wire.NewLayoutCache(cfg.Wire.LayoutCacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine: build layout cache: %w", err)
	}
	return &Database{
		Name:   name,
		cat:    catalog.NewRegistry(),
		tables: make(map[string]*table.Table),
		cache:  cache,
	}, nil
}

// TableNames lists every registered table (spec.md §6.2: table_names()).
func (d *Database) TableNames() []string { return d.cat.TableNames() }

// TotalRowCount sums live row counts across every table (spec.md §6.2:
// total_row_count()).
func (d *Database) TotalRowCount() int {
	total := 0
	for _, t := range d.tables {
		total += t.Rows.Len()
	}
	return total
}

// CreateTable registers a schema and allocates its live table.
func (d *Database) CreateTable(name string, cols []catalog.Column, indexes []catalog.IndexDef) (*catalog.Schema, error) {
	schema, err := d.cat.CreateTable(name, cols, indexes)
	if err != nil {
		return nil, err
	}
	d.tables[name] = table.New(schema)
	return schema, nil
}

// DropTable removes a table and its schema entry.
func (d *Database) DropTable(name string) error {
	if err := d.cat.DropTable(name); err != nil {
		return err
	}
	delete(d.tables, name)
	return nil
}

// Table resolves a live table by name; it is the TableProvider seam both
// exec and ivm consume.
func (d *Database) Table(name string) (*table.Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownTable, name)
	}
	return t, nil
}

func (d *Database) beginBatch() error {
	if d.inBatch {
		return ErrReentrantWrite
	}
	d.inBatch = true
	return nil
}

func (d *Database) endBatch() { d.inBatch = false }

// Insert validates and applies rows atomically (spec.md §6.2: insert).
func (d *Database) Insert(tableName string, rows []rowstore.Row) (table.Delta, error) {
	t, err := d.Table(tableName)
	if err != nil {
		return table.Delta{}, err
	}
	if err := d.beginBatch(); err != nil {
		return table.Delta{}, err
	}
	defer d.endBatch()
	return t.Insert(rows)
}

// rowView adapts a positional rowstore.Row to expr.RowView using a
// table's column order, the shape Update/Delete's predicate matching
// needs but the executor's Record already provides for query paths.
type rowView struct {
	schema *catalog.Schema
	row    rowstore.Row
}

func (v rowView) Col(name string) (typesystem.Value, bool) {
	i, ok := v.schema.ColumnIndex(name)
	if !ok {
		return typesystem.Value{}, false
	}
	return v.row[i], true
}

func matchRows(t *table.Table, pred expr.Expr) (map[uint64]rowstore.Row, error) {
	matched := make(map[uint64]rowstore.Row)
	var evalErr error
	t.Rows.Scan(func(id uint64, row rowstore.Row) bool {
		tri, err := expr.EvalPredicate(pred, rowView{schema: t.Schema, row: row})
		if err != nil {
			evalErr = err
			return false
		}
		if tri == typesystem.TriTrue {
			matched[id] = row
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return matched, nil
}

// Update matches rows against pred and applies assigns to each atomically
// (spec.md §6.2: update).
func (d *Database) Update(tableName string, assigns []table.Assignment, pred expr.Expr) (table.Delta, error) {
	t, err := d.Table(tableName)
	if err != nil {
		return table.Delta{}, err
	}
	matched, err := matchRows(t, pred)
	if err != nil {
		return table.Delta{}, err
	}
	if err := d.beginBatch(); err != nil {
		return table.Delta{}, err
	}
	defer d.endBatch()
	return t.Update(matched, assigns)
}

// Delete matches rows against pred and removes them atomically (spec.md
// §6.2: delete).
func (d *Database) Delete(tableName string, pred expr.Expr) (table.Delta, error) {
	t, err := d.Table(tableName)
	if err != nil {
		return table.Delta{}, err
	}
	matched, err := matchRows(t, pred)
	if err != nil {
		return table.Delta{}, err
	}
	if err := d.beginBatch(); err != nil {
		return table.Delta{}, err
	}
	defer d.endBatch()
	return t.Delete(matched), nil
}

func (d *Database) optimize(p plan.Node) (optimize.Physical, error) {
	return optimize.Optimize(p, d.cat)
}

// Select runs p to completion and materializes every row (spec.md §6.2:
// select(plan) -> rows).
func (d *Database) Select(p plan.Node) ([]exec.Record, error) {
	phys, err := d.optimize(p)
	if err != nil {
		return nil, err
	}
	it, err := exec.Build(phys, d)
	if err != nil {
		return nil, err
	}
	return exec.Materialize(it)
}

// SelectBuffer runs p and encodes the result into the binary result buffer
// format (spec.md §6.1), returning the buffer and the layout descriptor
// that accompanies it.
func (d *Database) SelectBuffer(p plan.Node) ([]byte, *wire.Layout, error) {
	rows, err := d.Select(p)
	if err != nil {
		return nil, nil, err
	}
	var cols []string
	if len(rows) > 0 {
		cols = rows[0].Cols
	}
	tags := exec.ColumnTags(cols, rows)
	layout, err := d.cache.GetOrBuild(cols, tags)
	if err != nil {
		return nil, nil, err
	}
	wireRows := make([]wire.Row, len(rows))
	for i, r := range rows {
		wireRows[i] = wire.Row(r.Vals)
	}
	buf, err := wire.Encode(wireRows, layout)
	if err != nil {
		return nil, nil, err
	}
	return buf, layout, nil
}

// Explain compiles p through the optimizer and renders the logical,
// optimized-logical and physical trees (spec.md §6.2: explain(plan)).
// Optimize does not expose an intermediate stage separately from its
// physical output, so "Optimized" is rendered from p itself and is always
// identical to Logical; no optimizer rewrite (normalize()'s
// Limit/Offset-through-Project included) appears in it, only in Physical.
func (d *Database) Explain(p plan.Node) (Explanation, error) {
	phys, err := d.optimize(p)
	if err != nil {
		return Explanation{}, err
	}
	return Explanation{
		Logical:   explainLogical(p, 0),
		Optimized: explainLogical(p, 0),
		Physical:  explainPhysical(phys, 0),
	}, nil
}

// Observe builds a re-execution observer handle over p (spec.md §6.2:
// observe(plan)).
func (d *Database) Observe(p plan.Node) (*observe.Handle, error) {
	tables, err := d.tablesIn(p)
	if err != nil {
		return nil, err
	}
	run := func() (observe.Result, error) {
		rows, err := d.Select(p)
		if err != nil {
			return observe.Result{}, err
		}
		var cols []string
		if len(rows) > 0 {
			cols = rows[0].Cols
		}
		return observe.Result{Cols: cols, Rows: rows}, nil
	}
	return observe.New(run, tables)
}

// Trace builds an incremental-view-maintenance handle over p (spec.md
// §6.2: trace(plan)), failing with ErrNotIncrementalizable if p uses a
// node kind IVM does not support.
func (d *Database) Trace(p plan.Node) (*ivm.Handle, error) {
	return ivm.Trace(p, d)
}

// tablesIn collects every table a plan reads from, the set observe.New
// needs to subscribe to.
func (d *Database) tablesIn(p plan.Node) ([]*table.Table, error) {
	names := map[string]struct{}{}
	var walk func(n plan.Node)
	walk = func(n plan.Node) {
		switch t := n.(type) {
		case *plan.Scan:
			names[t.Table] = struct{}{}
		case *plan.Filter:
			walk(t.Child)
		case *plan.Project:
			walk(t.Child)
		case *plan.Sort:
			walk(t.Child)
		case *plan.Limit:
			walk(t.Child)
		case *plan.Offset:
			walk(t.Child)
		case *plan.Join:
			walk(t.Left)
			walk(t.Right)
		case *plan.Aggregate:
			walk(t.Child)
		case *plan.GroupBy:
			walk(t.Child)
		}
	}
	walk(p)
	out := make([]*table.Table, 0, len(names))
	for name := range names {
		t, err := d.Table(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// BenchmarkResult is benchmark_range_query's diagnostic result (spec.md
// §6.2).
type BenchmarkResult struct {
	QueryMs                  float64
	SerializeMs              float64
	SerializationOverheadPct float64
}
