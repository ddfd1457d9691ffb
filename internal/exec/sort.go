package exec

import (
	"container/heap"
	"sort"

	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// compareKey returns the ascending-iteration-order sign for one sort key.
// Nulls sort last ascending, first descending (spec.md §4.4), a contract
// kept consistent across runs rather than merely "defined".
func compareKey(a, b typesystem.Value, desc bool) int {
	aNull, bNull := a.IsNull(), b.IsNull()
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		if desc {
			return -1
		}
		return 1
	case bNull:
		if desc {
			return 1
		}
		return -1
	}
	c := a.Compare(b)
	if desc {
		return -c
	}
	return c
}

func compareRecords(a, b Record, keys []optimize.SortKey) int {
	for _, k := range keys {
		av, _ := a.Col(k.Col)
		bv, _ := b.Col(k.Col)
		if c := compareKey(av, bv, k.Desc); c != 0 {
			return c
		}
	}
	return 0
}

func newSortIter(child Iterator, keys []optimize.SortKey) (Iterator, error) {
	rows, err := materialize(child)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return compareRecords(rows[i], rows[j], keys) < 0
	})
	return &sliceIterator{cols: child.Columns(), rows: rows}, nil
}

type limitIter struct {
	child Iterator
	n     int64
	taken int64
}

func (l *limitIter) Columns() []string { return l.child.Columns() }

func (l *limitIter) Next() (Record, bool, error) {
	if l.taken >= l.n {
		return Record{}, false, nil
	}
	r, ok, err := l.child.Next()
	if err != nil || !ok {
		return Record{}, ok, err
	}
	l.taken++
	return r, true, nil
}

type offsetIter struct {
	child   Iterator
	n       int64
	skipped int64
}

func (o *offsetIter) Columns() []string { return o.child.Columns() }

func (o *offsetIter) Next() (Record, bool, error) {
	for o.skipped < o.n {
		_, ok, err := o.child.Next()
		if err != nil || !ok {
			return Record{}, ok, err
		}
		o.skipped++
	}
	return o.child.Next()
}

// topKHeap is a max-heap (by the *reverse* of the sort order) so popping
// the max evicts the worst-ranked element, keeping the best K.
type topKHeap struct {
	rows []Record
	keys []optimize.SortKey
}

func (h *topKHeap) Len() int { return len(h.rows) }
func (h *topKHeap) Less(i, j int) bool {
	// worse-ranked (sorts later) should bubble to heap-top so Pop evicts it
	return compareRecords(h.rows[i], h.rows[j], h.keys) > 0
}
func (h *topKHeap) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *topKHeap) Push(x any)    { h.rows = append(h.rows, x.(Record)) }
func (h *topKHeap) Pop() any {
	old := h.rows
	n := len(old)
	v := old[n-1]
	h.rows = old[:n-1]
	return v
}

func newTopKIter(child Iterator, k int64, keys []optimize.SortKey) (Iterator, error) {
	h := &topKHeap{keys: keys}
	heap.Init(h)
	if k > 0 {
		for {
			r, ok, err := child.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if int64(h.Len()) < k {
				heap.Push(h, r)
			} else if compareRecords(r, h.rows[0], keys) < 0 {
				heap.Pop(h)
				heap.Push(h, r)
			}
		}
	}
	out := append([]Record(nil), h.rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return compareRecords(out[i], out[j], keys) < 0
	})
	return &sliceIterator{cols: child.Columns(), rows: out}, nil
}
