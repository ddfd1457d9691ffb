// Package optimize rewrites a logical plan.Node into a physical plan
// (component C7): constant folding, predicate push-down, index selection,
// and sort+limit fusion into TopK. Projection pruning (propagating a
// required-columns set down through Scan) is not implemented — every scan
// iterator materializes the full row; see DESIGN.md for the rationale.
//
// Grounded on Lychee-Technology-forma's queryoptimizer/optimizer.go
// predicate/catalog normalization shape (Predicate/AttributeCatalog) and
// the teacher's internal/sql/planner/builder.go statement-to-plan idiom,
// generalized to a full rewrite pipeline over the C6 algebra.
package optimize

import "github.com/tuannm99/reldb/internal/expr"

// Physical is the marker interface for every physical plan node produced
// by Optimize. It mirrors plan.Node's shape but swaps Scan for one of the
// index-aware access paths once one is selected.
type Physical interface {
	physNode()
}

// SeqScan reads every row of a table (the fallback access path).
type SeqScan struct {
	Table string
}

func (*SeqScan) physNode() {}

// IndexGet is a single-key point lookup on a unique or primary-key index.
type IndexGet struct {
	Table, Index, Column string
	Key                  expr.Expr
}

func (*IndexGet) physNode() {}

// IndexScan is an ordered-index range scan over [Lo, Hi] (either bound may
// be nil, meaning unbounded on that side).
type IndexScan struct {
	Table, Index, Column string
	Lo, Hi               expr.Expr
}

func (*IndexScan) physNode() {}

// IndexMultiGet is an IN-list lookup on an ordered/unique index.
type IndexMultiGet struct {
	Table, Index, Column string
	Keys                 []expr.Expr
}

func (*IndexMultiGet) physNode() {}

// GinIndexScan is a single JSON-path equality lookup via a GIN index.
type GinIndexScan struct {
	Table, Index, Column string
	Path                 string
	Value                expr.Expr
}

func (*GinIndexScan) physNode() {}

// GinPredicate is one conjunct of a GinIndexScanMulti.
type GinPredicate struct {
	Path  string
	Value expr.Expr
}

// GinIndexScanMulti intersects postings for a conjunction of GIN
// path-equalities on the same Jsonb column.
type GinIndexScanMulti struct {
	Table, Index, Column string
	Preds                []GinPredicate
}

func (*GinIndexScanMulti) physNode() {}

// Filter is the residual predicate left after index selection consumed
// what it could from the conjunction.
type Filter struct {
	Pred  expr.Expr
	Child Physical
}

func (*Filter) physNode() {}

type ProjectCol struct {
	Expr  expr.Expr
	Alias string
}

type Project struct {
	Cols  []ProjectCol
	Child Physical
}

func (*Project) physNode() {}

type SortKey struct {
	Col  string
	Desc bool
}

type Sort struct {
	Keys  []SortKey
	Child Physical
}

func (*Sort) physNode() {}

type Limit struct {
	N     int64
	Child Physical
}

func (*Limit) physNode() {}

type Offset struct {
	N     int64
	Child Physical
}

func (*Offset) physNode() {}

// TopK fuses a Sort+Limit into a single bounded-heap operator.
type TopK struct {
	K     int64
	Keys  []SortKey
	Child Physical
}

func (*TopK) physNode() {}

type JoinKind uint8

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

type JoinOn struct {
	LeftCol, RightCol string
}

// HashJoin: an InnerJoin builds on the smaller input and probes with the
// other; a LeftJoin always builds on the right input, whatever its size.
type HashJoin struct {
	Kind        JoinKind
	On          JoinOn
	Left, Right Physical
}

func (*HashJoin) physNode() {}

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

type AggSpec struct {
	Func  AggFunc
	Col   string
	Alias string
}

type Aggregate struct {
	Aggs  []AggSpec
	Child Physical
}

func (*Aggregate) physNode() {}

type GroupBy struct {
	Keys  []string
	Aggs  []AggSpec
	Child Physical
}

func (*GroupBy) physNode() {}
