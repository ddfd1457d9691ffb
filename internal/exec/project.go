package exec

import (
	"fmt"

	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/typesystem"
)

type projectIter struct {
	child Iterator
	cols  []optimize.ProjectCol
	names []string
}

func newProjectIter(child Iterator, cols []optimize.ProjectCol) *projectIter {
	names := make([]string, len(cols))
	for i, c := range cols {
		switch {
		case c.Alias != "":
			names[i] = c.Alias
		default:
			if col, ok := c.Expr.(expr.Col); ok {
				names[i] = col.Name
			} else {
				names[i] = fmt.Sprintf("col%d", i)
			}
		}
	}
	return &projectIter{child: child, cols: cols, names: names}
}

func (p *projectIter) Columns() []string { return p.names }

func (p *projectIter) Next() (Record, bool, error) {
	r, ok, err := p.child.Next()
	if err != nil || !ok {
		return Record{}, ok, err
	}
	out := Record{Cols: p.names, Vals: make([]typesystem.Value, len(p.cols))}
	for i, c := range p.cols {
		v, err := expr.Eval(c.Expr, r)
		if err != nil {
			return Record{}, false, err
		}
		out.Vals[i] = v
	}
	return out, true, nil
}
