package expr

import (
	"fmt"

	"github.com/tuannm99/reldb/internal/typesystem"
)

// RowView is the minimal row-access contract the evaluator needs. The
// executor and IVM engine each supply their own implementation over
// whatever row representation they hold.
type RowView interface {
	Col(name string) (typesystem.Value, bool)
}

// MapRow is a RowView backed by a plain map, convenient for tests and the
// re-execution observer.
type MapRow map[string]typesystem.Value

func (m MapRow) Col(name string) (typesystem.Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Eval evaluates a value-producing expression (Col, Lit, JsonPath, Arith)
// against row. Boolean/comparison nodes are not valid here; use
// EvalPredicate for those.
func Eval(e Expr, row RowView) (typesystem.Value, error) {
	switch n := e.(type) {
	case Col:
		v, ok := row.Col(n.Name)
		if !ok {
			return typesystem.Value{}, fmt.Errorf("expr: unknown column %q", n.Name)
		}
		return v, nil
	case Lit:
		return n.Value, nil
	case JsonPath:
		v, err := Eval(n.X, row)
		if err != nil {
			return typesystem.Value{}, err
		}
		if v.IsNull() {
			return typesystem.NewNull(), nil
		}
		if v.Tag != typesystem.Jsonb {
			return typesystem.Value{}, fmt.Errorf("expr: json path applied to non-jsonb value")
		}
		leaf, ok := v.Json.Leaf(n.Path)
		if !ok {
			return typesystem.NewNull(), nil
		}
		return leaf, nil
	case Arith:
		return evalArith(n, row)
	default:
		return typesystem.Value{}, fmt.Errorf("expr: %T is not a value expression", e)
	}
}

func evalArith(n Arith, row RowView) (typesystem.Value, error) {
	l, err := Eval(n.L, row)
	if err != nil {
		return typesystem.Value{}, err
	}
	r, err := Eval(n.R, row)
	if err != nil {
		return typesystem.Value{}, err
	}
	if l.IsNull() || r.IsNull() {
		return typesystem.NewNull(), nil
	}
	lf, ok1 := numeric(l)
	rf, ok2 := numeric(r)
	if !ok1 || !ok2 {
		return typesystem.Value{}, fmt.Errorf("expr: arithmetic requires numeric operands")
	}
	var out float64
	switch n.Op {
	case Add:
		out = lf + rf
	case Sub:
		out = lf - rf
	case Mul:
		out = lf * rf
	case Div:
		if rf == 0 {
			return typesystem.Value{}, fmt.Errorf("expr: division by zero")
		}
		out = lf / rf
	}
	return typesystem.NewFloat64(out), nil
}

func numeric(v typesystem.Value) (float64, bool) {
	switch v.Tag {
	case typesystem.Int32:
		return float64(v.I32), true
	case typesystem.Int64:
		return float64(v.I64), true
	case typesystem.Float64:
		return v.F64, true
	default:
		return 0, false
	}
}

// EvalPredicate evaluates a boolean/comparison expression tree to a
// three-valued result.
func EvalPredicate(e Expr, row RowView) (typesystem.Tri, error) {
	switch n := e.(type) {
	case BoolLit:
		return typesystem.TriFromBool(n.Value), nil
	case Not:
		t, err := EvalPredicate(n.X, row)
		if err != nil {
			return 0, err
		}
		return t.Not(), nil
	case And:
		l, err := EvalPredicate(n.L, row)
		if err != nil {
			return 0, err
		}
		r, err := EvalPredicate(n.R, row)
		if err != nil {
			return 0, err
		}
		return l.And(r), nil
	case Or:
		l, err := EvalPredicate(n.L, row)
		if err != nil {
			return 0, err
		}
		r, err := EvalPredicate(n.R, row)
		if err != nil {
			return 0, err
		}
		return l.Or(r), nil
	case Cmp:
		return evalCmp(n, row)
	case Between:
		return evalBetween(n, row)
	case In:
		return evalIn(n, row)
	case Like:
		return evalLike(n, row)
	case IsNull:
		v, err := Eval(n.X, row)
		if err != nil {
			return 0, err
		}
		return typesystem.TriFromBool(v.IsNull()), nil
	case IsNotNull:
		v, err := Eval(n.X, row)
		if err != nil {
			return 0, err
		}
		return typesystem.TriFromBool(!v.IsNull()), nil
	default:
		return 0, fmt.Errorf("expr: %T is not a predicate expression", e)
	}
}

func evalCmp(n Cmp, row RowView) (typesystem.Tri, error) {
	l, err := Eval(n.L, row)
	if err != nil {
		return 0, err
	}
	r, err := Eval(n.R, row)
	if err != nil {
		return 0, err
	}
	// eq(null)/ne(null) is always UNKNOWN: the only way to match null is
	// IsNull (spec.md §9 open question, resolved).
	if l.IsNull() || r.IsNull() {
		return typesystem.TriUnknown, nil
	}
	c := l.Compare(r)
	switch n.Op {
	case Eq:
		return typesystem.TriFromBool(c == 0), nil
	case Ne:
		return typesystem.TriFromBool(c != 0), nil
	case Lt:
		return typesystem.TriFromBool(c < 0), nil
	case Lte:
		return typesystem.TriFromBool(c <= 0), nil
	case Gt:
		return typesystem.TriFromBool(c > 0), nil
	case Gte:
		return typesystem.TriFromBool(c >= 0), nil
	default:
		return 0, fmt.Errorf("expr: unknown comparison op %d", n.Op)
	}
}

func evalBetween(n Between, row RowView) (typesystem.Tri, error) {
	x, err := Eval(n.X, row)
	if err != nil {
		return 0, err
	}
	if x.IsNull() {
		return typesystem.TriUnknown, nil
	}
	lo, err := Eval(n.Lo, row)
	if err != nil {
		return 0, err
	}
	hi, err := Eval(n.Hi, row)
	if err != nil {
		return 0, err
	}
	if lo.IsNull() || hi.IsNull() {
		return typesystem.TriUnknown, nil
	}
	return typesystem.TriFromBool(x.Compare(lo) >= 0 && x.Compare(hi) <= 0), nil
}

func evalIn(n In, row RowView) (typesystem.Tri, error) {
	x, err := Eval(n.X, row)
	if err != nil {
		return 0, err
	}
	if x.IsNull() {
		return typesystem.TriUnknown, nil
	}
	for _, le := range n.List {
		v, err := Eval(le, row)
		if err != nil {
			return 0, err
		}
		if v.IsNull() {
			continue // NULL in the list never matches
		}
		if x.Compare(v) == 0 {
			return typesystem.TriTrue, nil
		}
	}
	return typesystem.TriFalse, nil
}

func evalLike(n Like, row RowView) (typesystem.Tri, error) {
	x, err := Eval(n.X, row)
	if err != nil {
		return 0, err
	}
	if x.IsNull() {
		return typesystem.TriUnknown, nil
	}
	if x.Tag != typesystem.String {
		return 0, fmt.Errorf("expr: LIKE requires a string operand")
	}
	return typesystem.TriFromBool(likeMatch(x.Str, n.Pattern)), nil
}

// likeMatch implements SQL LIKE: '%' matches any run of characters, '_'
// matches exactly one.
func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatchRunes(s, p[1:]) {
			return true
		}
		for i := range s {
			if likeMatchRunes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	}
}

// ColumnsOf returns the set of column names an expression references,
// used by the optimizer for predicate push-down.
func ColumnsOf(e Expr) []string {
	seen := map[string]bool{}
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Col:
			seen[n.Name] = true
		case Not:
			walk(n.X)
		case And:
			walk(n.L)
			walk(n.R)
		case Or:
			walk(n.L)
			walk(n.R)
		case Cmp:
			walk(n.L)
			walk(n.R)
		case Between:
			walk(n.X)
			walk(n.Lo)
			walk(n.Hi)
		case In:
			walk(n.X)
			for _, le := range n.List {
				walk(le)
			}
		case Like:
			walk(n.X)
		case IsNull:
			walk(n.X)
		case IsNotNull:
			walk(n.X)
		case JsonPath:
			walk(n.X)
		case Arith:
			walk(n.L)
			walk(n.R)
		}
	}
	walk(e)
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

// SplitConjuncts flattens a top-level AND tree into its conjuncts.
func SplitConjuncts(e Expr) []Expr {
	if a, ok := e.(And); ok {
		return append(SplitConjuncts(a.L), SplitConjuncts(a.R)...)
	}
	return []Expr{e}
}

// Conjoin rebuilds an AND tree from conjuncts (empty -> nil, meaning "no
// filter").
func Conjoin(parts []Expr) Expr {
	if len(parts) == 0 {
		return nil
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = And{L: out, R: p}
	}
	return out
}
