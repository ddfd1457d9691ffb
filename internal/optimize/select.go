package optimize

import (
	"fmt"

	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/expr"
)

func errUnsupported(n any) error {
	return fmt.Errorf("optimize: unsupported plan node %T", n)
}

// eqConjunct recognizes `Col(c) = Lit(v)` (either operand order).
func eqConjunct(c expr.Expr) (col string, lit expr.Expr, ok bool) {
	cmp, isCmp := c.(expr.Cmp)
	if !isCmp || cmp.Op != expr.Eq {
		return "", nil, false
	}
	if colExpr, isCol := cmp.L.(expr.Col); isCol {
		return colExpr.Name, cmp.R, true
	}
	if colExpr, isCol := cmp.R.(expr.Col); isCol {
		return colExpr.Name, cmp.L, true
	}
	return "", nil, false
}

// rangeConjunct recognizes `Col(c) <op> Lit(v)` for ordering comparisons.
func rangeConjunct(c expr.Expr) (col string, op expr.CmpOp, lit expr.Expr, ok bool) {
	cmp, isCmp := c.(expr.Cmp)
	if !isCmp {
		return "", 0, nil, false
	}
	if colExpr, isCol := cmp.L.(expr.Col); isCol {
		if cmp.Op == expr.Lt || cmp.Op == expr.Lte || cmp.Op == expr.Gt || cmp.Op == expr.Gte {
			return colExpr.Name, cmp.Op, cmp.R, true
		}
	}
	if colExpr, isCol := cmp.R.(expr.Col); isCol {
		if cmp.Op == expr.Lt || cmp.Op == expr.Lte || cmp.Op == expr.Gt || cmp.Op == expr.Gte {
			return colExpr.Name, flip(cmp.Op), cmp.L, true
		}
	}
	return "", 0, nil, false
}

func flip(op expr.CmpOp) expr.CmpOp {
	switch op {
	case expr.Lt:
		return expr.Gt
	case expr.Lte:
		return expr.Gte
	case expr.Gt:
		return expr.Lt
	case expr.Gte:
		return expr.Lte
	default:
		return op
	}
}

// betweenConjunct recognizes Between(Col(c), lo, hi).
func betweenConjunct(c expr.Expr) (col string, lo, hi expr.Expr, ok bool) {
	b, isB := c.(expr.Between)
	if !isB {
		return "", nil, nil, false
	}
	if colExpr, isCol := b.X.(expr.Col); isCol {
		return colExpr.Name, b.Lo, b.Hi, true
	}
	return "", nil, nil, false
}

// inConjunct recognizes In(Col(c), list).
func inConjunct(c expr.Expr) (col string, list []expr.Expr, ok bool) {
	in, isIn := c.(expr.In)
	if !isIn {
		return "", nil, false
	}
	if colExpr, isCol := in.X.(expr.Col); isCol {
		return colExpr.Name, in.List, true
	}
	return "", nil, false
}

// ginEqConjunct recognizes `JsonPath(Col(jsonCol), path) = Lit(v)`.
func ginEqConjunct(c expr.Expr) (jsonCol, path string, lit expr.Expr, ok bool) {
	cmp, isCmp := c.(expr.Cmp)
	if !isCmp || cmp.Op != expr.Eq {
		return "", "", nil, false
	}
	tryMatch := func(a, b expr.Expr) (string, string, expr.Expr, bool) {
		jp, isJP := a.(expr.JsonPath)
		if !isJP {
			return "", "", nil, false
		}
		colExpr, isCol := jp.X.(expr.Col)
		if !isCol {
			return "", "", nil, false
		}
		return colExpr.Name, jp.Path.String(), b, true
	}
	if c1, p1, l1, ok1 := tryMatch(cmp.L, cmp.R); ok1 {
		return c1, p1, l1, true
	}
	if c1, p1, l1, ok1 := tryMatch(cmp.R, cmp.L); ok1 {
		return c1, p1, l1, true
	}
	return "", "", nil, false
}

// selectAccessPath implements index selection (spec.md §4.3 rule 3) over a
// Scan+Filter fragment, choosing at most one index path and leaving the
// rest of the conjunction as a residual Filter.
func selectAccessPath(table string, schema *catalog.Schema, pred expr.Expr) (Physical, error) {
	conjuncts := expr.SplitConjuncts(pred)

	indexByCol := map[string]catalog.IndexDef{}
	ginByCol := map[string]catalog.IndexDef{}
	for _, ix := range schema.Indexes {
		switch ix.Kind {
		case catalog.IndexGIN:
			ginByCol[ix.Column] = ix
		default:
			indexByCol[ix.Column] = ix
		}
	}

	used := make([]bool, len(conjuncts))

	// 1. Unique-index equality -> IndexGet (spec.md §4.3 rule 3 tie-break
	// order: unique beats primary key when both are viable).
	for i, c := range conjuncts {
		col, lit, ok := eqConjunct(c)
		if !ok {
			continue
		}
		if ix, exists := indexByCol[col]; exists && ix.Kind == catalog.IndexUnique {
			used[i] = true
			return withResidual(&IndexGet{Table: table, Index: ix.Name, Column: col, Key: lit}, conjuncts, used), nil
		}
	}

	// 2. Primary-key equality -> IndexGet.
	for i, c := range conjuncts {
		col, lit, ok := eqConjunct(c)
		if ok && col == schema.PrimaryKey {
			used[i] = true
			return withResidual(&IndexGet{Table: table, Index: "#pk", Column: col, Key: lit}, conjuncts, used), nil
		}
	}

	// 3. Ordered-index equality/range, and IN-list.
	for i, c := range conjuncts {
		if col, list, ok := inConjunct(c); ok {
			if ix, exists := indexByCol[col]; exists {
				used[i] = true
				return withResidual(&IndexMultiGet{Table: table, Index: ix.Name, Column: col, Keys: list}, conjuncts, used), nil
			}
		}
	}
	for i, c := range conjuncts {
		col, lit, ok := eqConjunct(c)
		if !ok {
			continue
		}
		if ix, exists := indexByCol[col]; exists {
			used[i] = true
			return withResidual(&IndexScan{Table: table, Index: ix.Name, Column: col, Lo: lit, Hi: lit}, conjuncts, used), nil
		}
	}
	for i, c := range conjuncts {
		col, lo, hi, ok := betweenConjunct(c)
		if !ok {
			continue
		}
		if ix, exists := indexByCol[col]; exists {
			used[i] = true
			return withResidual(&IndexScan{Table: table, Index: ix.Name, Column: col, Lo: lo, Hi: hi}, conjuncts, used), nil
		}
	}
	// range comparisons on the same ordered column combine into one scan.
	rangeCols := map[string][2]expr.Expr{} // col -> [lo, hi], nil = unbounded
	rangeIdx := map[string][]int{}
	for i, c := range conjuncts {
		col, op, lit, ok := rangeConjunct(c)
		if !ok {
			continue
		}
		if _, exists := indexByCol[col]; !exists {
			continue
		}
		bounds := rangeCols[col]
		switch op {
		case expr.Gt, expr.Gte:
			bounds[0] = lit
		case expr.Lt, expr.Lte:
			bounds[1] = lit
		}
		rangeCols[col] = bounds
		rangeIdx[col] = append(rangeIdx[col], i)
	}
	for col, bounds := range rangeCols {
		if bounds[0] == nil && bounds[1] == nil {
			continue
		}
		ix := indexByCol[col]
		for _, i := range rangeIdx[col] {
			used[i] = true
		}
		return withResidual(&IndexScan{Table: table, Index: ix.Name, Column: col, Lo: bounds[0], Hi: bounds[1]}, conjuncts, used), nil
	}

	// 4. GIN: prefer multi-predicate (>=2 equalities on the same column).
	ginConjByCol := map[string][]int{}
	ginPredByCol := map[string][]GinPredicate{}
	ginColIdx := map[string]string{} // jsonCol -> index name
	for i, c := range conjuncts {
		jsonCol, path, lit, ok := ginEqConjunct(c)
		if !ok {
			continue
		}
		if ix, exists := ginByCol[jsonCol]; exists {
			ginConjByCol[jsonCol] = append(ginConjByCol[jsonCol], i)
			ginPredByCol[jsonCol] = append(ginPredByCol[jsonCol], GinPredicate{Path: path, Value: lit})
			ginColIdx[jsonCol] = ix.Name
		}
	}
	for col, idxs := range ginConjByCol {
		if len(idxs) < 2 {
			continue
		}
		for _, i := range idxs {
			used[i] = true
		}
		return withResidual(&GinIndexScanMulti{Table: table, Index: ginColIdx[col], Column: col, Preds: ginPredByCol[col]}, conjuncts, used), nil
	}
	for col, idxs := range ginConjByCol {
		i := idxs[0]
		used[i] = true
		p := ginPredByCol[col][0]
		return withResidual(&GinIndexScan{Table: table, Index: ginColIdx[col], Column: col, Path: p.Path, Value: p.Value}, conjuncts, used), nil
	}

	// No usable index: full Filter over SeqScan.
	return &Filter{Pred: pred, Child: &SeqScan{Table: table}}, nil
}

func withResidual(access Physical, conjuncts []expr.Expr, used []bool) Physical {
	var residual []expr.Expr
	for i, c := range conjuncts {
		if !used[i] {
			residual = append(residual, c)
		}
	}
	if len(residual) == 0 {
		return access
	}
	return &Filter{Pred: expr.Conjoin(residual), Child: access}
}
