// Package engine is the top-level facade (component "host call surface",
// spec.md §6.2): it wires the schema registry (C2), live tables (C3/C4),
// the optimizer (C7), the executor (C8), the wire codec (C9), the
// re-execution observer (C10) and the IVM engine (C11) behind one
// synchronous command set, mirroring the teacher's internal/engine/db.go
// Database facade (NewDatabase/CreateTable/OpenTable) but generalized from
// its file-backed heap storage to the in-memory, index-backed tables
// spec.md requires.
package engine

import (
	"fmt"
	"strings"

	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/plan"
)

// Explanation is explain(plan)'s result (spec.md §6.2: "{logical,
// optimized, physical} stringified trees").
type Explanation struct {
	Logical   string
	Optimized string
	Physical  string
}

func exprString(e expr.Expr) string {
	switch n := e.(type) {
	case expr.Col:
		return n.Name
	case expr.Lit:
		return fmt.Sprintf("%v", n.Value)
	case expr.BoolLit:
		return fmt.Sprintf("%v", n.Value)
	case expr.Not:
		return "NOT " + exprString(n.X)
	case expr.And:
		return fmt.Sprintf("(%s AND %s)", exprString(n.L), exprString(n.R))
	case expr.Or:
		return fmt.Sprintf("(%s OR %s)", exprString(n.L), exprString(n.R))
	case expr.Cmp:
		return fmt.Sprintf("(%s %s %s)", exprString(n.L), cmpOpString(n.Op), exprString(n.R))
	case expr.Between:
		return fmt.Sprintf("(%s BETWEEN %s AND %s)", exprString(n.X), exprString(n.Lo), exprString(n.Hi))
	case expr.In:
		parts := make([]string, len(n.List))
		for i, it := range n.List {
			parts[i] = exprString(it)
		}
		return fmt.Sprintf("(%s IN (%s))", exprString(n.X), strings.Join(parts, ", "))
	case expr.Like:
		return fmt.Sprintf("(%s LIKE %q)", exprString(n.X), n.Pattern)
	case expr.IsNull:
		return exprString(n.X) + " IS NULL"
	case expr.IsNotNull:
		return exprString(n.X) + " IS NOT NULL"
	case expr.JsonPath:
		return fmt.Sprintf("%s.$.%s", exprString(n.X), n.Path)
	case expr.Arith:
		return fmt.Sprintf("(%s %s %s)", exprString(n.L), arithOpString(n.Op), exprString(n.R))
	default:
		return fmt.Sprintf("%T", e)
	}
}

func cmpOpString(op expr.CmpOp) string {
	switch op {
	case expr.Eq:
		return "="
	case expr.Ne:
		return "!="
	case expr.Lt:
		return "<"
	case expr.Lte:
		return "<="
	case expr.Gt:
		return ">"
	case expr.Gte:
		return ">="
	default:
		return "?"
	}
}

func arithOpString(op expr.ArithOp) string {
	switch op {
	case expr.Add:
		return "+"
	case expr.Sub:
		return "-"
	case expr.Mul:
		return "*"
	case expr.Div:
		return "/"
	default:
		return "?"
	}
}

func sortKeysString(keys []plan.SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", k.Col, dir)
	}
	return strings.Join(parts, ", ")
}

func physSortKeysString(keys []optimize.SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", k.Col, dir)
	}
	return strings.Join(parts, ", ")
}

// explainLogical renders a logical plan tree, one node per line, indented
// by depth.
func explainLogical(n plan.Node, depth int) string {
	ind := strings.Repeat("  ", depth)
	switch t := n.(type) {
	case *plan.Scan:
		return fmt.Sprintf("%sScan(%s)\n", ind, t.Table)
	case *plan.Filter:
		return fmt.Sprintf("%sFilter(%s)\n%s", ind, exprString(t.Pred), explainLogical(t.Child, depth+1))
	case *plan.Project:
		names := make([]string, len(t.Cols))
		for i, c := range t.Cols {
			s := exprString(c.Expr)
			if c.Alias != "" {
				s += " AS " + c.Alias
			}
			names[i] = s
		}
		return fmt.Sprintf("%sProject(%s)\n%s", ind, strings.Join(names, ", "), explainLogical(t.Child, depth+1))
	case *plan.Sort:
		return fmt.Sprintf("%sSort(%s)\n%s", ind, sortKeysString(t.Keys), explainLogical(t.Child, depth+1))
	case *plan.Limit:
		return fmt.Sprintf("%sLimit(%d)\n%s", ind, t.N, explainLogical(t.Child, depth+1))
	case *plan.Offset:
		return fmt.Sprintf("%sOffset(%d)\n%s", ind, t.N, explainLogical(t.Child, depth+1))
	case *plan.Join:
		kind := "InnerJoin"
		if t.Kind == plan.LeftJoin {
			kind = "LeftJoin"
		}
		return fmt.Sprintf("%s%s(%s = %s)\n%s%s", ind, kind, t.On.LeftCol, t.On.RightCol,
			explainLogical(t.Left, depth+1), explainLogical(t.Right, depth+1))
	case *plan.Aggregate:
		return fmt.Sprintf("%sAggregate(%s)\n%s", ind, aggSpecsString(t.Aggs), explainLogical(t.Child, depth+1))
	case *plan.GroupBy:
		return fmt.Sprintf("%sGroupBy(%s; %s)\n%s", ind, strings.Join(t.Keys, ", "), aggSpecsString(t.Aggs), explainLogical(t.Child, depth+1))
	default:
		return fmt.Sprintf("%s%T\n", ind, n)
	}
}

func aggSpecsString(aggs []plan.AggSpec) string {
	parts := make([]string, len(aggs))
	for i, a := range aggs {
		parts[i] = fmt.Sprintf("%s(%s)", aggFuncString(a.Func), a.Col)
	}
	return strings.Join(parts, ", ")
}

func aggFuncString(f plan.AggFunc) string {
	switch f {
	case plan.Count:
		return "count"
	case plan.CountCol:
		return "count_col"
	case plan.Sum:
		return "sum"
	case plan.Avg:
		return "avg"
	case plan.Min:
		return "min"
	case plan.Max:
		return "max"
	case plan.Stddev:
		return "stddev"
	case plan.Geomean:
		return "geomean"
	case plan.Distinct:
		return "distinct"
	default:
		return "?"
	}
}

// explainPhysical renders a physical plan tree the same way explainLogical
// does, swapping in the index-aware access paths Optimize selected.
func explainPhysical(n optimize.Physical, depth int) string {
	ind := strings.Repeat("  ", depth)
	switch t := n.(type) {
	case *optimize.SeqScan:
		return fmt.Sprintf("%sSeqScan(%s)\n", ind, t.Table)
	case *optimize.IndexGet:
		return fmt.Sprintf("%sIndexGet(%s.%s = %s)\n", ind, t.Table, t.Column, exprString(t.Key))
	case *optimize.IndexScan:
		return fmt.Sprintf("%sIndexScan(%s.%s in [%s, %s])\n", ind, t.Table, t.Column, exprOrNil(t.Lo), exprOrNil(t.Hi))
	case *optimize.IndexMultiGet:
		return fmt.Sprintf("%sIndexMultiGet(%s.%s)\n", ind, t.Table, t.Column)
	case *optimize.GinIndexScan:
		return fmt.Sprintf("%sGinIndexScan(%s.%s.$.%s = %s)\n", ind, t.Table, t.Column, t.Path, exprString(t.Value))
	case *optimize.GinIndexScanMulti:
		return fmt.Sprintf("%sGinIndexScanMulti(%s.%s, %d preds)\n", ind, t.Table, t.Column, len(t.Preds))
	case *optimize.Filter:
		return fmt.Sprintf("%sFilter(%s)\n%s", ind, exprString(t.Pred), explainPhysical(t.Child, depth+1))
	case *optimize.Project:
		names := make([]string, len(t.Cols))
		for i, c := range t.Cols {
			s := exprString(c.Expr)
			if c.Alias != "" {
				s += " AS " + c.Alias
			}
			names[i] = s
		}
		return fmt.Sprintf("%sProject(%s)\n%s", ind, strings.Join(names, ", "), explainPhysical(t.Child, depth+1))
	case *optimize.Sort:
		return fmt.Sprintf("%sSort(%s)\n%s", ind, physSortKeysString(t.Keys), explainPhysical(t.Child, depth+1))
	case *optimize.Limit:
		return fmt.Sprintf("%sLimit(%d)\n%s", ind, t.N, explainPhysical(t.Child, depth+1))
	case *optimize.Offset:
		return fmt.Sprintf("%sOffset(%d)\n%s", ind, t.N, explainPhysical(t.Child, depth+1))
	case *optimize.TopK:
		return fmt.Sprintf("%sTopK(%d; %s)\n%s", ind, t.K, physSortKeysString(t.Keys), explainPhysical(t.Child, depth+1))
	case *optimize.HashJoin:
		kind := "InnerJoin"
		if t.Kind == optimize.LeftJoin {
			kind = "LeftJoin"
		}
		return fmt.Sprintf("%sHashJoin:%s(%s = %s)\n%s%s", ind, kind, t.On.LeftCol, t.On.RightCol,
			explainPhysical(t.Left, depth+1), explainPhysical(t.Right, depth+1))
	case *optimize.Aggregate:
		return fmt.Sprintf("%sAggregate(%s)\n%s", ind, physAggSpecsString(t.Aggs), explainPhysical(t.Child, depth+1))
	case *optimize.GroupBy:
		return fmt.Sprintf("%sGroupBy(%s; %s)\n%s", ind, strings.Join(t.Keys, ", "), physAggSpecsString(t.Aggs), explainPhysical(t.Child, depth+1))
	default:
		return fmt.Sprintf("%s%T\n", ind, n)
	}
}

func exprOrNil(e expr.Expr) string {
	if e == nil {
		return "*"
	}
	return exprString(e)
}

func physAggSpecsString(aggs []optimize.AggSpec) string {
	parts := make([]string, len(aggs))
	for i, a := range aggs {
		parts[i] = fmt.Sprintf("%s(%s)", physAggFuncString(a.Func), a.Col)
	}
	return strings.Join(parts, ", ")
}

func physAggFuncString(f optimize.AggFunc) string {
	switch f {
	case optimize.Count:
		return "count"
	case optimize.CountCol:
		return "count_col"
	case optimize.Sum:
		return "sum"
	case optimize.Avg:
		return "avg"
	case optimize.Min:
		return "min"
	case optimize.Max:
		return "max"
	case optimize.Stddev:
		return "stddev"
	case optimize.Geomean:
		return "geomean"
	case optimize.Distinct:
		return "distinct"
	default:
		return "?"
	}
}
