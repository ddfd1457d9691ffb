package exec

import (
	"fmt"

	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/index"
	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/table"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// ensureActive lazily builds a GIN path's postings the first time a query
// demands it (spec.md §4.2: "paths are built lazily on first demanding
// query and then maintained on every subsequent write").
func ensureActive(t *table.Table, g *index.GIN, jsonColumn string, path typesystem.Path) {
	if !g.Activate(path) {
		return
	}
	colIx, ok := t.Schema.ColumnIndex(jsonColumn)
	if !ok {
		return
	}
	g.BackfillPath(path, func(yield func(id uint64, doc typesystem.JSON) bool) {
		t.Rows.Scan(func(id uint64, row rowstore.Row) bool {
			v := row[colIx]
			if v.Tag == typesystem.Jsonb {
				return yield(id, v.Json)
			}
			return true
		})
	})
}

// Build compiles a physical plan into an executable operator tree.
func Build(p optimize.Physical, tp TableProvider) (Iterator, error) {
	switch n := p.(type) {
	case *optimize.SeqScan:
		t, err := tp.Table(n.Table)
		if err != nil {
			return nil, err
		}
		return newSeqScan(t), nil

	case *optimize.IndexGet:
		t, err := tp.Table(n.Table)
		if err != nil {
			return nil, err
		}
		key, err := evalLitValue(n.Key)
		if err != nil {
			return nil, err
		}
		_, uniq, ok := resolveOrdered(t, n.Index)
		if !ok || uniq == nil {
			return nil, fmt.Errorf("exec: index %q is not a point-lookup index", n.Index)
		}
		var ids []uint64
		if id, found := uniq.Get(key); found {
			ids = []uint64{id}
		}
		return newIDListIter(t, ids), nil

	case *optimize.IndexScan:
		t, err := tp.Table(n.Table)
		if err != nil {
			return nil, err
		}
		ordered, uniq, ok := resolveOrdered(t, n.Index)
		if !ok {
			return nil, fmt.Errorf("exec: unknown index %q", n.Index)
		}
		lo, hi, err := litBounds(n.Lo, n.Hi)
		if err != nil {
			return nil, err
		}
		var ids []uint64
		switch {
		case ordered != nil:
			ids = rangeIDs(ordered, lo, hi)
		case uniq != nil:
			if lo != nil && hi != nil && lo.Compare(*hi) == 0 {
				if id, found := uniq.Get(*lo); found {
					ids = []uint64{id}
				}
			} else {
				return nil, fmt.Errorf("exec: unique index %q does not support range scans", n.Index)
			}
		}
		return newIDListIter(t, ids), nil

	case *optimize.IndexMultiGet:
		t, err := tp.Table(n.Table)
		if err != nil {
			return nil, err
		}
		ordered, uniq, ok := resolveOrdered(t, n.Index)
		if !ok {
			return nil, fmt.Errorf("exec: unknown index %q", n.Index)
		}
		keys := make([]typesystem.Value, 0, len(n.Keys))
		for _, k := range n.Keys {
			v, err := evalLitValue(k)
			if err != nil {
				return nil, err
			}
			keys = append(keys, v)
		}
		var ids []uint64
		if ordered != nil {
			ids = ordered.InList(keys)
		} else if uniq != nil {
			for _, k := range keys {
				if k.IsNull() {
					continue
				}
				if id, found := uniq.Get(k); found {
					ids = append(ids, id)
				}
			}
		}
		return newIDListIter(t, ids), nil

	case *optimize.GinIndexScan:
		t, err := tp.Table(n.Table)
		if err != nil {
			return nil, err
		}
		gin, ok := t.GINIndexByName(n.Index)
		if !ok {
			return nil, fmt.Errorf("exec: unknown GIN index %q", n.Index)
		}
		path, err := typesystem.ParsePath(n.Path)
		if err != nil {
			return nil, err
		}
		ensureActive(t, gin, n.Column, path)
		val, err := evalLitValue(n.Value)
		if err != nil {
			return nil, err
		}
		return newIDListIter(t, gin.Eq(path, val)), nil

	case *optimize.GinIndexScanMulti:
		t, err := tp.Table(n.Table)
		if err != nil {
			return nil, err
		}
		gin, ok := t.GINIndexByName(n.Index)
		if !ok {
			return nil, fmt.Errorf("exec: unknown GIN index %q", n.Index)
		}
		preds := make([]indexPathEq, 0, len(n.Preds))
		for _, p := range n.Preds {
			path, err := typesystem.ParsePath(p.Path)
			if err != nil {
				return nil, err
			}
			ensureActive(t, gin, n.Column, path)
			val, err := evalLitValue(p.Value)
			if err != nil {
				return nil, err
			}
			preds = append(preds, indexPathEq{path: path, value: val})
		}
		return newIDListIter(t, ginEqMulti(gin, preds)), nil

	case *optimize.Filter:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return &filterIter{child: child, pred: n.Pred}, nil

	case *optimize.Project:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return newProjectIter(child, n.Cols), nil

	case *optimize.Sort:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return newSortIter(child, n.Keys)
	case *optimize.Limit:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return &limitIter{child: child, n: n.N}, nil
	case *optimize.Offset:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return &offsetIter{child: child, n: n.N}, nil
	case *optimize.TopK:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return newTopKIter(child, n.K, n.Keys)
	case *optimize.HashJoin:
		left, err := Build(n.Left, tp)
		if err != nil {
			return nil, err
		}
		right, err := Build(n.Right, tp)
		if err != nil {
			return nil, err
		}
		return newHashJoinIter(left, right, n.Kind, n.On)
	case *optimize.Aggregate:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return newAggregateIter(child, n.Aggs)
	case *optimize.GroupBy:
		child, err := Build(n.Child, tp)
		if err != nil {
			return nil, err
		}
		return newGroupByIter(child, n.Keys, n.Aggs)
	default:
		return nil, fmt.Errorf("exec: unsupported physical node %T", p)
	}
}

func litBounds(lo, hi expr.Expr) (loV, hiV *typesystem.Value, err error) {
	if lo != nil {
		v, err := evalLitValue(lo)
		if err != nil {
			return nil, nil, err
		}
		loV = &v
	}
	if hi != nil {
		v, err := evalLitValue(hi)
		if err != nil {
			return nil, nil, err
		}
		hiV = &v
	}
	return loV, hiV, nil
}

func rangeIDs(ix *index.Ordered, lo, hi *typesystem.Value) []uint64 {
	return ix.RangeBounded(lo, hi)
}

type indexPathEq struct {
	path  typesystem.Path
	value typesystem.Value
}

func ginEqMulti(g *index.GIN, preds []indexPathEq) []uint64 {
	converted := make([]index.PathEq, len(preds))
	for i, p := range preds {
		converted[i] = index.PathEq{Path: p.path, Value: p.value}
	}
	return g.EqMulti(converted)
}
