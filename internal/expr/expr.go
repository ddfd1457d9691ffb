// Package expr is the expression tree and evaluator (component C5):
// column refs, literals, logical/comparison/arithmetic/JSON-path/LIKE
// nodes, evaluated over a row view into a three-valued result.
//
// Grounded on the teacher's internal/sql/parser/ast.go Expr variant shape
// (WhereEq/Assignment carrying a parser.Expr), generalized from the
// teacher's "literal only" phase-1 expressions into a full predicate tree.
// Expression trees are immutable after construction, per spec.md §9.
package expr

import "github.com/tuannm99/reldb/internal/typesystem"

// Expr is the tagged expression-tree node interface.
type Expr interface {
	exprNode()
}

// Col references a column by name.
type Col struct{ Name string }

func (Col) exprNode() {}

// Lit is a constant value.
type Lit struct{ Value typesystem.Value }

func (Lit) exprNode() {}

// BoolLit is a constant boolean predicate, produced by constant folding
// (e.g. "1 = 1" or "1 = 2" collapsing to an always-true/false marker).
type BoolLit struct{ Value bool }

func (BoolLit) exprNode() {}

// Not negates a three-valued predicate.
type Not struct{ X Expr }

func (Not) exprNode() {}

// And is three-valued conjunction.
type And struct{ L, R Expr }

func (And) exprNode() {}

// Or is three-valued disjunction.
type Or struct{ L, R Expr }

func (Or) exprNode() {}

// CmpOp enumerates comparison operators.
type CmpOp uint8

const (
	Eq CmpOp = iota
	Ne
	Lt
	Lte
	Gt
	Gte
)

// Cmp compares two value expressions; Eq/Ne against a NULL operand is
// always UNKNOWN (spec.md §9 open-question resolution).
type Cmp struct {
	Op   CmpOp
	L, R Expr
}

func (Cmp) exprNode() {}

// Between is inclusive range membership; either bound may be any value
// expression (usually a Lit).
type Between struct {
	X, Lo, Hi Expr
}

func (Between) exprNode() {}

// In tests membership in an explicit value list; a NULL in the list never
// matches, and NULL on the left never matches (spec.md §8).
type In struct {
	X    Expr
	List []Expr
}

func (In) exprNode() {}

// Like matches X (a String) against a SQL-style pattern ('%'/'_').
type Like struct {
	X       Expr
	Pattern string
}

func (Like) exprNode() {}

// IsNull / IsNotNull are the only ways to match or exclude NULL.
type IsNull struct{ X Expr }

func (IsNull) exprNode() {}

type IsNotNull struct{ X Expr }

func (IsNotNull) exprNode() {}

// JsonPath projects a Jsonb column expression at path into a scalar leaf.
type JsonPath struct {
	X    Expr
	Path typesystem.Path
}

func (JsonPath) exprNode() {}

// ArithOp enumerates arithmetic operators over numeric value expressions.
type ArithOp uint8

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
)

// Arith is a binary arithmetic value expression.
type Arith struct {
	Op   ArithOp
	L, R Expr
}

func (Arith) exprNode() {}
