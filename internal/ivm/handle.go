package ivm

import (
	"errors"
	"log/slog"

	"github.com/tuannm99/reldb/internal/plan"
	"github.com/tuannm99/reldb/internal/table"
)

// ErrUseAfterDispose is returned by Subscribe on a torn-down handle
// (spec.md §4.6: "subsequent subscribe on a dropped handle -> UseAfterDispose").
var ErrUseAfterDispose = errors.New("ivm: handle already disposed")

// Delivery is one {added, removed} pair sent to a subscriber after a write
// (spec.md §4.6).
type Delivery struct {
	Added   []Row
	Removed []Row
}

// Callback receives one Delivery per relevant write batch.
type Callback func(Delivery)

// Handle is one trace(plan) subscription over a Graph. Multiple Handles may
// share the same Graph when re-traced against an identical plan is cheap to
// avoid, but each Handle here owns its own Graph for simplicity — tearing
// one down never affects another's state.
type Handle struct {
	graph     *Graph
	unsub     []func()
	callbacks map[int]Callback
	nextID    int
	disposed  bool
}

// Trace compiles plan into a dataflow graph and wires it to every table it
// reads from. Fails with ErrNotIncrementalizable if plan uses a node kind
// IVM does not support.
func Trace(p plan.Node, tp TableProvider) (*Handle, error) {
	g, err := Build(p, tp)
	if err != nil {
		return nil, err
	}
	h := &Handle{graph: g, callbacks: make(map[int]Callback)}
	for name, scans := range g.byTable {
		if len(scans) == 0 {
			continue
		}
		tableName := name
		t, err := tp.Table(tableName)
		if err != nil {
			return nil, err
		}
		unsub := t.Subscribe(func(d table.Delta) { h.onWrite(tableName, d) })
		h.unsub = append(h.unsub, unsub)
	}
	return h, nil
}

// CurrentResult returns the sink's current row set (get_result(), spec.md §4.6).
func (h *Handle) CurrentResult() ([]Row, error) {
	if h.disposed {
		return nil, ErrUseAfterDispose
	}
	return h.graph.CurrentResult(), nil
}

// Schema returns the sink's output columns.
func (h *Handle) Schema() []string { return h.graph.Schema() }

// Subscribe registers cb to receive a Delivery for every subsequent write to
// a table this trace reads from. Deliveries for one handle arrive in
// arrival order, exactly once per write (spec.md §4.6).
func (h *Handle) Subscribe(cb Callback) (unsubscribe func(), err error) {
	if h.disposed {
		return nil, ErrUseAfterDispose
	}
	id := h.nextID
	h.nextID++
	h.callbacks[id] = cb
	done := false
	return func() {
		if done {
			return
		}
		done = true
		delete(h.callbacks, id)
	}, nil
}

func (h *Handle) onWrite(tableName string, d table.Delta) {
	if h.disposed {
		return
	}
	added, removed := h.graph.onTableWrite(tableName, d)
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	delivery := Delivery{Added: added, Removed: removed}
	for _, cb := range h.callbacks {
		safeInvoke(cb, delivery)
	}
}

func safeInvoke(cb Callback, d Delivery) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ivm: subscriber callback panicked", "panic", r)
		}
	}()
	cb(d)
}

// Dispose tears the handle down: unsubscribes from every underlying table.
// Idempotent. The graph is dropped lazily once no handle references it
// (spec.md §4.6); here that is exactly this call, since each Handle owns
// its Graph exclusively.
func (h *Handle) Dispose() {
	if h.disposed {
		return
	}
	h.disposed = true
	for _, u := range h.unsub {
		u()
	}
	h.callbacks = nil
}
