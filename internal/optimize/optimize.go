package optimize

import (
	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/plan"
)

// Lookup resolves table schemas for index selection.
type Lookup interface {
	Table(name string) (*catalog.Schema, error)
}

// Optimize rewrites a logical plan into a physical plan, applying (in
// order) constant folding, predicate push-down through joins, index
// selection, and sort+limit fusion (spec.md §4.3).
func Optimize(root plan.Node, cat Lookup) (Physical, error) {
	return build(normalize(root), cat)
}

// normalize applies the purely-logical rewrites that are easier to express
// tree-shape-first: Limit/Offset through Project (rule 6).
func normalize(n plan.Node) plan.Node {
	switch t := n.(type) {
	case *plan.Limit:
		child := normalize(t.Child)
		if p, ok := child.(*plan.Project); ok {
			return &plan.Project{Cols: p.Cols, Child: normalize(&plan.Limit{N: t.N, Child: p.Child})}
		}
		return &plan.Limit{N: t.N, Child: child}
	case *plan.Offset:
		child := normalize(t.Child)
		if p, ok := child.(*plan.Project); ok {
			return &plan.Project{Cols: p.Cols, Child: normalize(&plan.Offset{N: t.N, Child: p.Child})}
		}
		return &plan.Offset{N: t.N, Child: child}
	case *plan.Filter:
		return &plan.Filter{Pred: t.Pred, Child: normalize(t.Child)}
	case *plan.Project:
		return &plan.Project{Cols: t.Cols, Child: normalize(t.Child)}
	case *plan.Sort:
		return &plan.Sort{Keys: t.Keys, Child: normalize(t.Child)}
	case *plan.Join:
		return &plan.Join{Kind: t.Kind, On: t.On, Left: normalize(t.Left), Right: normalize(t.Right)}
	case *plan.Aggregate:
		return &plan.Aggregate{Aggs: t.Aggs, Child: normalize(t.Child)}
	case *plan.GroupBy:
		return &plan.GroupBy{Keys: t.Keys, Aggs: t.Aggs, Child: normalize(t.Child)}
	default:
		return n
	}
}

func build(n plan.Node, cat Lookup) (Physical, error) {
	switch t := n.(type) {
	case *plan.Scan:
		return &SeqScan{Table: t.Table}, nil

	case *plan.Filter:
		folded := foldConstants(t.Pred)
		if scan, ok := t.Child.(*plan.Scan); ok {
			schema, err := cat.Table(scan.Table)
			if err != nil {
				return nil, err
			}
			return selectAccessPath(scan.Table, schema, folded)
		}
		if join, ok := t.Child.(*plan.Join); ok {
			return buildFilterOverJoin(folded, join, cat)
		}
		child, err := build(t.Child, cat)
		if err != nil {
			return nil, err
		}
		return &Filter{Pred: folded, Child: child}, nil

	case *plan.Join:
		left, err := build(t.Left, cat)
		if err != nil {
			return nil, err
		}
		right, err := build(t.Right, cat)
		if err != nil {
			return nil, err
		}
		return &HashJoin{Kind: JoinKind(t.Kind), On: JoinOn{LeftCol: t.On.LeftCol, RightCol: t.On.RightCol}, Left: left, Right: right}, nil

	case *plan.Project:
		child, err := build(t.Child, cat)
		if err != nil {
			return nil, err
		}
		cols := make([]ProjectCol, len(t.Cols))
		for i, c := range t.Cols {
			cols[i] = ProjectCol{Expr: c.Expr, Alias: c.Alias}
		}
		return &Project{Cols: cols, Child: child}, nil

	case *plan.Limit:
		if sort, ok := t.Child.(*plan.Sort); ok {
			child, err := build(sort.Child, cat)
			if err != nil {
				return nil, err
			}
			return &TopK{K: t.N, Keys: convertKeys(sort.Keys), Child: child}, nil
		}
		child, err := build(t.Child, cat)
		if err != nil {
			return nil, err
		}
		return &Limit{N: t.N, Child: child}, nil

	case *plan.Offset:
		child, err := build(t.Child, cat)
		if err != nil {
			return nil, err
		}
		return &Offset{N: t.N, Child: child}, nil

	case *plan.Sort:
		child, err := build(t.Child, cat)
		if err != nil {
			return nil, err
		}
		return &Sort{Keys: convertKeys(t.Keys), Child: child}, nil

	case *plan.Aggregate:
		child, err := build(t.Child, cat)
		if err != nil {
			return nil, err
		}
		return &Aggregate{Aggs: convertAggs(t.Aggs), Child: child}, nil

	case *plan.GroupBy:
		child, err := build(t.Child, cat)
		if err != nil {
			return nil, err
		}
		return &GroupBy{Keys: t.Keys, Aggs: convertAggs(t.Aggs), Child: child}, nil

	default:
		return nil, errUnsupported(n)
	}
}

func convertKeys(ks []plan.SortKey) []SortKey {
	out := make([]SortKey, len(ks))
	for i, k := range ks {
		out[i] = SortKey{Col: k.Col, Desc: k.Desc}
	}
	return out
}

func convertAggs(as []plan.AggSpec) []AggSpec {
	out := make([]AggSpec, len(as))
	for i, a := range as {
		out[i] = AggSpec{Func: AggFunc(a.Func), Col: a.Col, Alias: a.Alias}
	}
	return out
}

// buildFilterOverJoin implements predicate push-down (spec.md §4.3 rule 2):
// conjuncts referencing only one side's columns are pushed into that side;
// the rest stay as a residual Filter above the join.
func buildFilterOverJoin(pred expr.Expr, join *plan.Join, cat Lookup) (Physical, error) {
	leftCols, err := columnSet(join.Left, cat)
	if err != nil {
		return nil, err
	}
	rightCols, err := columnSet(join.Right, cat)
	if err != nil {
		return nil, err
	}

	var leftConj, rightConj, residual []expr.Expr
	for _, c := range expr.SplitConjuncts(pred) {
		refs := expr.ColumnsOf(c)
		switch {
		case allIn(refs, leftCols):
			leftConj = append(leftConj, c)
		case allIn(refs, rightCols):
			rightConj = append(rightConj, c)
		default:
			residual = append(residual, c)
		}
	}

	left := join.Left
	if len(leftConj) > 0 {
		left = &plan.Filter{Pred: expr.Conjoin(leftConj), Child: left}
	}
	right := join.Right
	if len(rightConj) > 0 {
		right = &plan.Filter{Pred: expr.Conjoin(rightConj), Child: right}
	}

	physLeft, err := build(left, cat)
	if err != nil {
		return nil, err
	}
	physRight, err := build(right, cat)
	if err != nil {
		return nil, err
	}

	var out Physical = &HashJoin{
		Kind:  JoinKind(join.Kind),
		On:    JoinOn{LeftCol: join.On.LeftCol, RightCol: join.On.RightCol},
		Left:  physLeft,
		Right: physRight,
	}
	if len(residual) > 0 {
		out = &Filter{Pred: expr.Conjoin(residual), Child: out}
	}
	return out, nil
}

func allIn(refs []string, set map[string]bool) bool {
	for _, r := range refs {
		if !set[r] {
			return false
		}
	}
	return true
}

// columnSet returns the set of column names reachable from a (logical)
// scan-rooted subtree, used to classify join push-down candidates.
func columnSet(n plan.Node, cat Lookup) (map[string]bool, error) {
	switch t := n.(type) {
	case *plan.Scan:
		schema, err := cat.Table(t.Table)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool, len(schema.Columns))
		for _, c := range schema.Columns {
			out[c.Name] = true
		}
		return out, nil
	case *plan.Filter:
		return columnSet(t.Child, cat)
	case *plan.Project:
		out := make(map[string]bool, len(t.Cols))
		for _, c := range t.Cols {
			for _, ref := range expr.ColumnsOf(c.Expr) {
				out[ref] = true
			}
		}
		return out, nil
	default:
		return map[string]bool{}, nil
	}
}
