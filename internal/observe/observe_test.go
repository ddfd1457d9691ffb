package observe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/exec"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/table"
	"github.com/tuannm99/reldb/internal/typesystem"
)

func newItemsTable(t *testing.T) *table.Table {
	t.Helper()
	schema, err := catalog.NewRegistry().CreateTable("items", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
	}, nil)
	require.NoError(t, err)
	return table.New(schema)
}

func countingRun(tbl *table.Table) (RunFunc, *int) {
	calls := 0
	return func() (Result, error) {
		calls++
		return Result{Cols: []string{"id"}, Rows: []exec.Record{}}, nil
	}, &calls
}

func TestHandle_CurrentResultReExecutesOnDemand(t *testing.T) {
	tbl := newItemsTable(t)
	run, calls := countingRun(tbl)
	h, err := New(run, []*table.Table{tbl})
	require.NoError(t, err)

	_, err = h.CurrentResult()
	require.NoError(t, err)
	require.Equal(t, 1, *calls)
}

func TestHandle_SubscribeFiresOnWriteToReferencedTable(t *testing.T) {
	tbl := newItemsTable(t)
	run, calls := countingRun(tbl)
	h, err := New(run, []*table.Table{tbl})
	require.NoError(t, err)

	notified := 0
	_, err = h.Subscribe(func(Result) { notified++ })
	require.NoError(t, err)

	_, err = tbl.Insert([]rowstore.Row{{typesystem.NewInt64(1)}})
	require.NoError(t, err)

	require.Equal(t, 1, notified)
	require.GreaterOrEqual(t, *calls, 1)
}

func TestHandle_UnsubscribeStopsDelivery(t *testing.T) {
	tbl := newItemsTable(t)
	run, _ := countingRun(tbl)
	h, err := New(run, []*table.Table{tbl})
	require.NoError(t, err)

	notified := 0
	unsub, err := h.Subscribe(func(Result) { notified++ })
	require.NoError(t, err)
	unsub()
	unsub() // idempotent

	_, err = tbl.Insert([]rowstore.Row{{typesystem.NewInt64(1)}})
	require.NoError(t, err)
	require.Equal(t, 0, notified)
}

func TestHandle_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	tbl := newItemsTable(t)
	run, _ := countingRun(tbl)
	h, err := New(run, []*table.Table{tbl})
	require.NoError(t, err)

	otherNotified := false
	_, err = h.Subscribe(func(Result) { panic("boom") })
	require.NoError(t, err)
	_, err = h.Subscribe(func(Result) { otherNotified = true })
	require.NoError(t, err)

	_, err = tbl.Insert([]rowstore.Row{{typesystem.NewInt64(1)}})
	require.NoError(t, err)
	require.True(t, otherNotified)
}

func TestHandle_DisposeUnsubscribesAndRejectsFurtherUse(t *testing.T) {
	tbl := newItemsTable(t)
	run, _ := countingRun(tbl)
	h, err := New(run, []*table.Table{tbl})
	require.NoError(t, err)

	notified := 0
	_, err = h.Subscribe(func(Result) { notified++ })
	require.NoError(t, err)

	h.Dispose()
	h.Dispose() // idempotent

	_, err = tbl.Insert([]rowstore.Row{{typesystem.NewInt64(1)}})
	require.NoError(t, err)
	require.Equal(t, 0, notified)

	_, err = h.CurrentResult()
	require.True(t, errors.Is(err, ErrUseAfterDispose))

	_, err = h.Subscribe(func(Result) {})
	require.True(t, errors.Is(err, ErrUseAfterDispose))
}

func TestHandle_ErroringReRunDoesNotBreakSubscription(t *testing.T) {
	tbl := newItemsTable(t)
	calls := 0
	run := func() (Result, error) {
		calls++
		if calls == 1 {
			return Result{}, errors.New("boom")
		}
		return Result{}, nil
	}
	h, err := New(run, []*table.Table{tbl})
	require.NoError(t, err)

	notified := 0
	_, err = h.Subscribe(func(Result) { notified++ })
	require.NoError(t, err)

	// first write's re-run errors: this notification is dropped, but the
	// subscription itself survives for the next write.
	_, err = tbl.Insert([]rowstore.Row{{typesystem.NewInt64(1)}})
	require.NoError(t, err)
	require.Equal(t, 0, notified)

	_, err = tbl.Insert([]rowstore.Row{{typesystem.NewInt64(2)}})
	require.NoError(t, err)
	require.Equal(t, 1, notified)
}
