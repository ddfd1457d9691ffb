package ivm

import (
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/plan"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// side marks which input of a binary operator a child feeds.
type side uint8

const (
	noSide side = iota
	leftSide
	rightSide
)

// node is any operator in the dataflow graph. Propagation walks parent
// links set at build time, so each leaf knows the exact path of operators
// its deltas must pass through to reach the sink.
type node interface {
	Schema() []string
	Parent() (node, side)
	setParent(node, side)
}

type linkage struct {
	parent node
	side   side
}

func (l *linkage) Parent() (node, side)     { return l.parent, l.side }
func (l *linkage) setParent(p node, s side) { l.parent = p; l.side = s }

// scanNode is a dataflow source: every write to its table injects a delta
// here (spec.md §4.6: "Scan(T): source node; on every write to T, injects
// the batch delta").
type scanNode struct {
	linkage
	table  string
	schema []string
}

func (n *scanNode) Schema() []string { return n.schema }

type filterNode struct {
	linkage
	child node
	pred  expr.Expr
}

func (n *filterNode) Schema() []string { return n.child.Schema() }

// apply emits {(r,m) in in : p(r) = TRUE} (spec.md §4.6).
func (n *filterNode) apply(in Delta) Delta {
	var out Delta
	for _, rd := range in {
		t, err := expr.EvalPredicate(n.pred, rd.Row)
		if err == nil && t == typesystem.TriTrue {
			out = append(out, rd)
		}
	}
	return out
}

type projectNode struct {
	linkage
	child    node
	cols     []plan.ProjectCol
	outNames []string
}

func (n *projectNode) Schema() []string { return n.outNames }

// apply emits {(π(r),m): (r,m) in in}, summing multiplicities when
// projections collide (spec.md §4.6).
func (n *projectNode) apply(in Delta) Delta {
	type pair struct {
		row Row
		mul int64
	}
	order := make([]uint64, 0, len(in))
	byFP := make(map[uint64]*pair)
	for _, rd := range in {
		pr := n.project(rd.Row)
		fp := pr.Fingerprint()
		if p, ok := byFP[fp]; ok {
			p.mul += rd.Mul
		} else {
			byFP[fp] = &pair{row: pr, mul: rd.Mul}
			order = append(order, fp)
		}
	}
	out := make(Delta, 0, len(order))
	for _, fp := range order {
		p := byFP[fp]
		if p.mul != 0 {
			out = append(out, RowDelta{Row: p.row, Mul: p.mul})
		}
	}
	return out
}

func (n *projectNode) project(row Row) Row {
	vals := make([]typesystem.Value, len(n.cols))
	for i, c := range n.cols {
		v, _ := expr.Eval(c.Expr, row)
		vals[i] = v
	}
	return Row{Cols: n.outNames, Vals: vals}
}

// joinNode maintains two keyed arrangements and applies the InnerJoin /
// LeftJoin delta formula of spec.md §4.6.
type joinNode struct {
	linkage
	kind     plan.JoinKind
	on       plan.JoinOn
	left     node
	right    node
	schema   []string
	rightSch []string
	leftArr  *KeyedArrangement
	rightArr *KeyedArrangement
}

func (n *joinNode) Schema() []string { return n.schema }

// applyLeft computes Δ_L ⋈ R_current (plus LeftJoin null-padding for
// currently-unmatched left rows), then applies Δ_L to L_current (spec.md
// §4.6: "apply Δ_L to L_current after computing its contribution").
func (n *joinNode) applyLeft(in Delta) Delta {
	var out Delta
	for _, rd := range in {
		key, hasKey := rd.Row.JoinKey(n.on.LeftCol)
		var matches []matchedEntry
		if hasKey {
			matches = n.rightArr.Match(key)
		}
		if len(matches) > 0 {
			for _, m := range matches {
				out = append(out, RowDelta{Row: merge(rd.Row, m.row), Mul: rd.Mul * m.mul})
			}
		} else if n.kind == plan.LeftJoin {
			out = append(out, RowDelta{Row: merge(rd.Row, nullOf(n.rightSch)), Mul: rd.Mul})
		}
	}
	n.leftArr.Apply(in)
	return out
}

// applyRight computes L_current ⋈ Δ_R, processing one delta entry at a
// time so LeftJoin's "a previously empty key just got its first match / a
// key just lost its last match" transition can be detected against the
// arrangement state immediately before and after each entry.
func (n *joinNode) applyRight(in Delta) Delta {
	var out Delta
	for _, rd := range in {
		key, hasKey := rd.Row.JoinKey(n.on.RightCol)
		if !hasKey {
			continue
		}
		before := n.rightArr.Match(key)
		matchesL := n.leftArr.Match(key)
		for _, m := range matchesL {
			out = append(out, RowDelta{Row: merge(m.row, rd.Row), Mul: rd.Mul * m.mul})
		}
		n.rightArr.Apply(Delta{rd})
		after := n.rightArr.Match(key)

		if n.kind == plan.LeftJoin {
			switch {
			case len(before) == 0 && len(after) > 0:
				for _, m := range matchesL {
					out = append(out, RowDelta{Row: merge(m.row, nullOf(n.rightSch)), Mul: -m.mul})
				}
			case len(before) > 0 && len(after) == 0:
				for _, m := range matchesL {
					out = append(out, RowDelta{Row: merge(m.row, nullOf(n.rightSch)), Mul: m.mul})
				}
			}
		}
	}
	return out
}
