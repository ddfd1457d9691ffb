// Package plan is the immutable logical algebraic plan tree (component C6).
//
// Grounded on the teacher's internal/sql/planner/plan.go plan-node shape
// (one struct + planNode() marker per node kind), generalized from the
// teacher's single-table phase-1 plans (SeqScan/IndexLookup/Insert/Update/
// Delete only) to the full relational algebra spec.md §3 requires.
package plan

import "github.com/tuannm99/reldb/internal/expr"

// Node is the marker interface for every logical plan node.
type Node interface {
	planNode()
}

// Scan reads every row of a table.
type Scan struct {
	Table string
}

func (*Scan) planNode() {}

// Filter keeps only rows where Pred evaluates to TRUE.
type Filter struct {
	Pred  expr.Expr
	Child Node
}

func (*Filter) planNode() {}

// Project reshapes rows to the named output columns, in order. An entry's
// Alias, if non-empty, renames the output column.
type ProjectCol struct {
	Expr  expr.Expr
	Alias string
}

type Project struct {
	Cols  []ProjectCol
	Child Node
}

func (*Project) planNode() {}

// SortKey is one ORDER BY term.
type SortKey struct {
	Col  string
	Desc bool
}

// Sort orders rows by Keys; nulls sort last ascending, first descending
// (spec.md §4.4), consistently across runs.
type Sort struct {
	Keys  []SortKey
	Child Node
}

func (*Sort) planNode() {}

// Limit takes at most N rows.
type Limit struct {
	N     int64
	Child Node
}

func (*Limit) planNode() {}

// Offset skips the first N rows.
type Offset struct {
	N     int64
	Child Node
}

func (*Offset) planNode() {}

// JoinKind enumerates the supported join kinds.
type JoinKind uint8

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

// JoinOn is an equi-join condition between one column on each side.
type JoinOn struct {
	LeftCol  string
	RightCol string
}

type Join struct {
	Kind        JoinKind
	On          JoinOn
	Left, Right Node
}

func (*Join) planNode() {}

// AggFunc enumerates the supported aggregate functions.
type AggFunc uint8

const (
	Count AggFunc = iota
	CountCol
	Sum
	Avg
	Min
	Max
	Stddev
	Geomean
	Distinct
)

// AggSpec is one aggregate computed over the (grouped) input.
type AggSpec struct {
	Func  AggFunc
	Col   string // ignored for Count
	Alias string
}

// Aggregate computes AggSpecs over the whole input (no grouping).
type Aggregate struct {
	Aggs  []AggSpec
	Child Node
}

func (*Aggregate) planNode() {}

// GroupBy computes AggSpecs per distinct value of Keys.
type GroupBy struct {
	Keys  []string
	Aggs  []AggSpec
	Child Node
}

func (*GroupBy) planNode() {}
