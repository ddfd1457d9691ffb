package exec

import (
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/typesystem"
)

type filterIter struct {
	child Iterator
	pred  expr.Expr
}

func (f *filterIter) Columns() []string { return f.child.Columns() }

func (f *filterIter) Next() (Record, bool, error) {
	for {
		r, ok, err := f.child.Next()
		if err != nil || !ok {
			return Record{}, ok, err
		}
		t, err := expr.EvalPredicate(f.pred, r)
		if err != nil {
			return Record{}, false, err
		}
		if t == typesystem.TriTrue {
			return r, true, nil
		}
	}
}
