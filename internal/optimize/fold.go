package optimize

import "github.com/tuannm99/reldb/internal/expr"

// foldConstants applies constant folding & boolean simplification to a
// predicate tree (spec.md §4.3 rule 1): literal comparisons collapse to
// expr.BoolLit, and "A AND TRUE"/"A OR FALSE" style identities collapse
// away the constant operand. foldOnce recurses into children before
// folding a node, so a single bottom-up pass already reaches the fixed
// point regardless of nesting depth.
func foldConstants(e expr.Expr) expr.Expr {
	return foldOnce(e)
}

func foldOnce(e expr.Expr) expr.Expr {
	switch n := e.(type) {
	case expr.Not:
		x := foldOnce(n.X)
		if b, ok := x.(expr.BoolLit); ok {
			return expr.BoolLit{Value: !b.Value}
		}
		return expr.Not{X: x}
	case expr.And:
		l := foldOnce(n.L)
		r := foldOnce(n.R)
		if bl, ok := l.(expr.BoolLit); ok {
			if !bl.Value {
				return expr.BoolLit{Value: false}
			}
			return r
		}
		if br, ok := r.(expr.BoolLit); ok {
			if !br.Value {
				return expr.BoolLit{Value: false}
			}
			return l
		}
		return expr.And{L: l, R: r}
	case expr.Or:
		l := foldOnce(n.L)
		r := foldOnce(n.R)
		if bl, ok := l.(expr.BoolLit); ok {
			if bl.Value {
				return expr.BoolLit{Value: true}
			}
			return r
		}
		if br, ok := r.(expr.BoolLit); ok {
			if br.Value {
				return expr.BoolLit{Value: true}
			}
			return l
		}
		return expr.Or{L: l, R: r}
	case expr.Cmp:
		ll, lok := n.L.(expr.Lit)
		rl, rok := n.R.(expr.Lit)
		if lok && rok && !ll.Value.IsNull() && !rl.Value.IsNull() && ll.Value.Tag == rl.Value.Tag {
			c := ll.Value.Compare(rl.Value)
			switch n.Op {
			case expr.Eq:
				return expr.BoolLit{Value: c == 0}
			case expr.Ne:
				return expr.BoolLit{Value: c != 0}
			case expr.Lt:
				return expr.BoolLit{Value: c < 0}
			case expr.Lte:
				return expr.BoolLit{Value: c <= 0}
			case expr.Gt:
				return expr.BoolLit{Value: c > 0}
			case expr.Gte:
				return expr.BoolLit{Value: c >= 0}
			}
		}
		return n
	default:
		return e
	}
}
