package ivm

import (
	"errors"
	"fmt"

	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/plan"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/table"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// ErrNotIncrementalizable is returned when trace() is given a plan outside
// {Scan, Filter, Project, Join} (spec.md §4.6).
var ErrNotIncrementalizable = errors.New("ivm: plan is not incrementalizable")

// TableProvider resolves a live table by name.
type TableProvider interface {
	Table(name string) (*table.Table, error)
}

// Graph is one compiled dataflow graph: an operator tree rooted at a sink
// arrangement, fed by the live tables its Scan leaves read from.
type Graph struct {
	root      node
	sink      *Arrangement
	tp        TableProvider
	scanOrder []*scanNode
	byTable   map[string][]*scanNode
}

func rowOf(schema []string, row rowstore.Row) Row {
	vals := make([]typesystem.Value, len(schema))
	copy(vals, row)
	return Row{Cols: schema, Vals: vals}
}

// Build compiles a logical plan into a dataflow graph. Only Scan, Filter,
// Project and Join nodes are supported; anything else is rejected with
// ErrNotIncrementalizable (spec.md §4.6).
func Build(p plan.Node, tp TableProvider) (*Graph, error) {
	g := &Graph{sink: NewArrangement(), tp: tp, byTable: make(map[string][]*scanNode)}
	root, err := g.buildNode(p)
	if err != nil {
		return nil, err
	}
	g.root = root
	g.seed()
	return g, nil
}

func (g *Graph) buildNode(p plan.Node) (node, error) {
	switch n := p.(type) {
	case *plan.Scan:
		t, err := g.tp.Table(n.Table)
		if err != nil {
			return nil, err
		}
		schema := make([]string, len(t.Schema.Columns))
		for i, c := range t.Schema.Columns {
			schema[i] = c.Name
		}
		sn := &scanNode{table: n.Table, schema: schema}
		g.scanOrder = append(g.scanOrder, sn)
		g.byTable[n.Table] = append(g.byTable[n.Table], sn)
		return sn, nil

	case *plan.Filter:
		child, err := g.buildNode(n.Child)
		if err != nil {
			return nil, err
		}
		fn := &filterNode{child: child, pred: n.Pred}
		child.setParent(fn, noSide)
		return fn, nil

	case *plan.Project:
		child, err := g.buildNode(n.Child)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(n.Cols))
		for i, c := range n.Cols {
			names[i] = projectOutputName(c, i)
		}
		pn := &projectNode{child: child, cols: n.Cols, outNames: names}
		child.setParent(pn, noSide)
		return pn, nil

	case *plan.Join:
		left, err := g.buildNode(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := g.buildNode(n.Right)
		if err != nil {
			return nil, err
		}
		schema := make([]string, 0, len(left.Schema())+len(right.Schema()))
		schema = append(schema, left.Schema()...)
		schema = append(schema, right.Schema()...)
		jn := &joinNode{
			kind:     n.Kind,
			on:       n.On,
			left:     left,
			right:    right,
			schema:   schema,
			rightSch: right.Schema(),
			leftArr:  NewKeyedArrangement(n.On.LeftCol),
			rightArr: NewKeyedArrangement(n.On.RightCol),
		}
		left.setParent(jn, leftSide)
		right.setParent(jn, rightSide)
		return jn, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrNotIncrementalizable, p)
	}
}

func projectOutputName(c plan.ProjectCol, i int) string {
	if c.Alias != "" {
		return c.Alias
	}
	if col, ok := c.Expr.(expr.Col); ok {
		return col.Name
	}
	return fmt.Sprintf("col%d", i)
}

// seed primes every arrangement along the path from each Scan leaf to the
// sink with the tables' current contents, so current_result() is correct
// immediately after trace() without waiting for the next write. Scans are
// seeded in build order (left subtree before right, for every Join), which
// makes each Join's right-side seeding see a fully-populated left
// arrangement — the same precondition applyRight's null-pad bookkeeping
// assumes for an ordinary write.
func (g *Graph) seed() {
	var combined Delta
	for _, sn := range g.scanOrder {
		t, err := g.tp.Table(sn.table)
		if err != nil {
			continue
		}
		var initial Delta
		t.Rows.Scan(func(_ uint64, row rowstore.Row) bool {
			initial = append(initial, RowDelta{Row: rowOf(sn.schema, row), Mul: 1})
			return true
		})
		combined = append(combined, propagateUp(sn, initial)...)
	}
	g.sink.Apply(combined)
}

// propagateUp threads a delta that originated at node `from`'s own output
// through every ancestor up to the sink, returning the resulting delta at
// the graph's root.
func propagateUp(from node, delta Delta) Delta {
	cur := delta
	n := from
	for {
		p, s := n.Parent()
		if p == nil {
			return cur
		}
		switch pn := p.(type) {
		case *filterNode:
			cur = pn.apply(cur)
		case *projectNode:
			cur = pn.apply(cur)
		case *joinNode:
			if s == leftSide {
				cur = pn.applyLeft(cur)
			} else {
				cur = pn.applyRight(cur)
			}
		}
		n = p
	}
}

func tableDeltaToRowDelta(d table.Delta, schema []string) Delta {
	var out Delta
	for _, c := range d.Changes {
		switch {
		case c.Old == nil && c.New != nil:
			out = append(out, RowDelta{Row: rowOf(schema, c.New), Mul: 1})
		case c.Old != nil && c.New == nil:
			out = append(out, RowDelta{Row: rowOf(schema, c.Old), Mul: -1})
		case c.Old != nil && c.New != nil:
			out = append(out, RowDelta{Row: rowOf(schema, c.Old), Mul: -1})
			out = append(out, RowDelta{Row: rowOf(schema, c.New), Mul: 1})
		}
	}
	return out
}

// onTableWrite is invoked once per committed write batch on table name.
// It returns the net added/removed rows at the sink.
func (g *Graph) onTableWrite(name string, d table.Delta) (added, removed []Row) {
	scans := g.byTable[name]
	if len(scans) == 0 {
		return nil, nil
	}
	var combined Delta
	for _, sn := range scans {
		delta := tableDeltaToRowDelta(d, sn.schema)
		combined = append(combined, propagateUp(sn, delta)...)
	}
	return g.sink.Apply(combined)
}

// CurrentResult returns the sink's current row set.
func (g *Graph) CurrentResult() []Row { return g.sink.Rows() }

// Schema returns the sink's output column names.
func (g *Graph) Schema() []string { return g.root.Schema() }
