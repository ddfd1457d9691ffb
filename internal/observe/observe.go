// Package observe implements the re-execution observer (component C10): a
// live query that simply re-runs its plan whenever a table it reads from
// receives a write, and fans the fresh full result out to every subscriber.
//
// Grounded on the teacher's internal/sql/executor dispatch idiom for the
// re-run itself, and on table.Table.Subscribe (the same change-log feed
// internal/ivm consumes) for "did something relevant change" detection —
// the coarse-grained contract spec.md §4.5 asks for, not per-row diffing.
package observe

import (
	"errors"
	"log/slog"

	"github.com/tuannm99/reldb/internal/exec"
	"github.com/tuannm99/reldb/internal/table"
)

var ErrUseAfterDispose = errors.New("observe: handle already disposed")

// Result is a full snapshot of a plan's current output.
type Result struct {
	Cols []string
	Rows []exec.Record
}

// RunFunc re-executes the observed plan from scratch.
type RunFunc func() (Result, error)

// Callback receives the full result set after a relevant write.
type Callback func(Result)

// Handle is one observe(plan) subscription, spanning Created -> Active ->
// Disposed (spec.md §4.7).
type Handle struct {
	run       RunFunc
	unsub     []func()
	callbacks map[int]Callback
	nextID    int
	disposed  bool
}

// New builds an observer over tables, the set of tables the plan reads from.
// It does not run the plan; CurrentResult executes it on demand.
func New(run RunFunc, tables []*table.Table) (*Handle, error) {
	h := &Handle{run: run, callbacks: make(map[int]Callback)}
	for _, t := range tables {
		unsub := t.Subscribe(func(table.Delta) { h.onWrite() })
		h.unsub = append(h.unsub, unsub)
	}
	return h, nil
}

// CurrentResult re-executes the plan and returns its latest result (the
// round-trip law: observe(P).current_result() == select(P) at any state).
func (h *Handle) CurrentResult() (Result, error) {
	if h.disposed {
		return Result{}, ErrUseAfterDispose
	}
	return h.run()
}

// Subscribe registers cb to receive the full result after every subsequent
// write to a referenced table. Returns an idempotent unsubscribe function.
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

// onWrite fires on every write to a referenced table; multiple row changes
// within that single write are already collapsed into one table.Delta by
// the table layer, so one re-run covers the whole batch (spec.md §4.5).
func (h *Handle) onWrite() {
	if h.disposed || len(h.callbacks) == 0 {
		return
	}
	res, err := h.run()
	if err != nil {
		return // a broken re-run aborts only this notification, not the subscription
	}
	for _, cb := range h.callbacks {
		safeInvoke(cb, res)
	}
}

// safeInvoke isolates one subscriber's panic so the rest still get their
// delivery (spec.md §7: "A subscriber callback that throws is caught and
// logged; subsequent subscribers still receive their deliveries").
func safeInvoke(cb Callback, res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("observe: subscriber callback panicked", "panic", r)
		}
	}()
	cb(res)
}

// Dispose tears down the handle, unsubscribing from every underlying table.
// Idempotent.
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
