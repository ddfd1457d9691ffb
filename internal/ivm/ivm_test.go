package ivm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/plan"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/table"
	"github.com/tuannm99/reldb/internal/typesystem"
)

type fakeProvider struct {
	tables map[string]*table.Table
}

func (f fakeProvider) Table(name string) (*table.Table, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, catalog.ErrUnknownTable
	}
	return t, nil
}

func TestArrangement_AppliesNetAddAndRemove(t *testing.T) {
	a := NewArrangement()
	r := Row{Cols: []string{"id"}, Vals: []typesystem.Value{typesystem.NewInt64(1)}}

	added, removed := a.Apply(Delta{{Row: r, Mul: 1}})
	require.Len(t, added, 1)
	require.Empty(t, removed)
	require.Equal(t, 1, a.Len())

	added, removed = a.Apply(Delta{{Row: r, Mul: -1}})
	require.Empty(t, added)
	require.Len(t, removed, 1)
	require.Equal(t, 0, a.Len())
}

func TestArrangement_MultiplicityBetweenPositivesProducesNoNetChange(t *testing.T) {
	a := NewArrangement()
	r := Row{Cols: []string{"id"}, Vals: []typesystem.Value{typesystem.NewInt64(1)}}
	a.Apply(Delta{{Row: r, Mul: 1}})

	added, removed := a.Apply(Delta{{Row: r, Mul: 1}}) // now multiplicity 2, still present
	require.Empty(t, added)
	require.Empty(t, removed)
	require.Equal(t, 1, a.Len())
}

func itemsSchema(t *testing.T) *catalog.Schema {
	t.Helper()
	s, err := catalog.NewRegistry().CreateTable("items", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "price", Type: typesystem.Int64},
	}, nil)
	require.NoError(t, err)
	return s
}

func TestGraph_ScanSeedsCurrentResultImmediately(t *testing.T) {
	tbl := table.New(itemsSchema(t))
	_, err := tbl.Insert([]rowstore.Row{{typesystem.NewInt64(1), typesystem.NewInt64(10)}})
	require.NoError(t, err)
	tp := fakeProvider{tables: map[string]*table.Table{"items": tbl}}

	g, err := Build(&plan.Scan{Table: "items"}, tp)
	require.NoError(t, err)
	require.Len(t, g.CurrentResult(), 1)
}

func TestGraph_FilterPropagatesOnlyMatchingInserts(t *testing.T) {
	tbl := table.New(itemsSchema(t))
	tp := fakeProvider{tables: map[string]*table.Table{"items": tbl}}

	g, err := Build(&plan.Filter{
		Pred:  expr.Cmp{Op: expr.Gt, L: expr.Col{Name: "price"}, R: expr.Lit{Value: typesystem.NewInt64(15)}},
		Child: &plan.Scan{Table: "items"},
	}, tp)
	require.NoError(t, err)
	require.Empty(t, g.CurrentResult())

	h, err := Trace(&plan.Filter{
		Pred:  expr.Cmp{Op: expr.Gt, L: expr.Col{Name: "price"}, R: expr.Lit{Value: typesystem.NewInt64(15)}},
		Child: &plan.Scan{Table: "items"},
	}, tp)
	require.NoError(t, err)

	var deliveries []Delivery
	_, err = h.Subscribe(func(d Delivery) { deliveries = append(deliveries, d) })
	require.NoError(t, err)

	_, err = tbl.Insert([]rowstore.Row{
		{typesystem.NewInt64(1), typesystem.NewInt64(10)}, // filtered out
		{typesystem.NewInt64(2), typesystem.NewInt64(20)}, // passes
	})
	require.NoError(t, err)

	require.Len(t, deliveries, 1)
	require.Len(t, deliveries[0].Added, 1)
	require.Empty(t, deliveries[0].Removed)

	res, err := h.CurrentResult()
	require.NoError(t, err)
	require.Len(t, res, 1)
}

func TestGraph_DeleteProducesRemovedDelivery(t *testing.T) {
	tbl := table.New(itemsSchema(t))
	_, err := tbl.Insert([]rowstore.Row{{typesystem.NewInt64(1), typesystem.NewInt64(20)}})
	require.NoError(t, err)
	tp := fakeProvider{tables: map[string]*table.Table{"items": tbl}}

	h, err := Trace(&plan.Scan{Table: "items"}, tp)
	require.NoError(t, err)

	var deliveries []Delivery
	_, err = h.Subscribe(func(d Delivery) { deliveries = append(deliveries, d) })
	require.NoError(t, err)

	id, ok := tbl.PrimaryKeyIndex().Get(typesystem.NewInt64(1))
	require.True(t, ok)
	old, err := tbl.Rows.Get(id)
	require.NoError(t, err)
	tbl.Delete(map[uint64]rowstore.Row{id: old})

	require.Len(t, deliveries, 1)
	require.Empty(t, deliveries[0].Added)
	require.Len(t, deliveries[0].Removed, 1)
}

func usersAndOrders(t *testing.T) (*table.Table, *table.Table) {
	t.Helper()
	usersSchema, err := catalog.NewRegistry().CreateTable("users", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
	}, nil)
	require.NoError(t, err)
	ordersSchema, err := catalog.NewRegistry().CreateTable("orders", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "user_id", Type: typesystem.Int64},
	}, nil)
	require.NoError(t, err)
	return table.New(usersSchema), table.New(ordersSchema)
}

func TestGraph_LeftJoin_NullPadRetractOnFirstMatchThenEmitOnLastUnmatch(t *testing.T) {
	users, orders := usersAndOrders(t)
	_, err := users.Insert([]rowstore.Row{{typesystem.NewInt64(1)}})
	require.NoError(t, err)
	tp := fakeProvider{tables: map[string]*table.Table{"users": users, "orders": orders}}

	p := &plan.Join{
		Kind:  plan.LeftJoin,
		On:    plan.JoinOn{LeftCol: "id", RightCol: "user_id"},
		Left:  &plan.Scan{Table: "users"},
		Right: &plan.Scan{Table: "orders"},
	}
	h, err := Trace(p, tp)
	require.NoError(t, err)

	// seeded with no orders: user 1 appears null-padded.
	res, err := h.CurrentResult()
	require.NoError(t, err)
	require.Len(t, res, 1)
	uid, ok := res[0].Col("user_id")
	require.True(t, ok)
	require.True(t, uid.IsNull())

	var deliveries []Delivery
	_, err = h.Subscribe(func(d Delivery) { deliveries = append(deliveries, d) })
	require.NoError(t, err)

	// user 1's first order arrives: the null-padded row must retract and the
	// real match must be added.
	_, err = orders.Insert([]rowstore.Row{{typesystem.NewInt64(100), typesystem.NewInt64(1)}})
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.Len(t, deliveries[0].Added, 1)
	require.Len(t, deliveries[0].Removed, 1)
	addedUID, _ := deliveries[0].Added[0].Col("user_id")
	require.Equal(t, int64(1), addedUID.I64)
	removedUID, _ := deliveries[0].Removed[0].Col("user_id")
	require.True(t, removedUID.IsNull())

	res, err = h.CurrentResult()
	require.NoError(t, err)
	require.Len(t, res, 1)
	uid, _ = res[0].Col("user_id")
	require.Equal(t, int64(1), uid.I64)

	// deleting that last order must re-emit the null-padded row.
	orderID, ok := orders.PrimaryKeyIndex().Get(typesystem.NewInt64(100))
	require.True(t, ok)
	oldOrder, err := orders.Rows.Get(orderID)
	require.NoError(t, err)
	orders.Delete(map[uint64]rowstore.Row{orderID: oldOrder})

	require.Len(t, deliveries, 2)
	require.Len(t, deliveries[1].Added, 1)
	require.Len(t, deliveries[1].Removed, 1)
	reAddedUID, _ := deliveries[1].Added[0].Col("user_id")
	require.True(t, reAddedUID.IsNull())
}

func TestGraph_InnerJoin_OnlyEmitsWhenBothSidesPresent(t *testing.T) {
	users, orders := usersAndOrders(t)
	_, err := users.Insert([]rowstore.Row{{typesystem.NewInt64(1)}})
	require.NoError(t, err)
	tp := fakeProvider{tables: map[string]*table.Table{"users": users, "orders": orders}}

	p := &plan.Join{
		Kind:  plan.InnerJoin,
		On:    plan.JoinOn{LeftCol: "id", RightCol: "user_id"},
		Left:  &plan.Scan{Table: "users"},
		Right: &plan.Scan{Table: "orders"},
	}
	h, err := Trace(p, tp)
	require.NoError(t, err)
	res, err := h.CurrentResult()
	require.NoError(t, err)
	require.Empty(t, res)

	var deliveries []Delivery
	_, err = h.Subscribe(func(d Delivery) { deliveries = append(deliveries, d) })
	require.NoError(t, err)

	_, err = orders.Insert([]rowstore.Row{{typesystem.NewInt64(100), typesystem.NewInt64(1)}})
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.Len(t, deliveries[0].Added, 1)
}

func TestBuild_RejectsNonIncrementalizablePlan(t *testing.T) {
	tbl := table.New(itemsSchema(t))
	tp := fakeProvider{tables: map[string]*table.Table{"items": tbl}}
	_, err := Build(&plan.Limit{N: 1, Child: &plan.Scan{Table: "items"}}, tp)
	require.ErrorIs(t, err, ErrNotIncrementalizable)
}

func TestHandle_DisposeIsIdempotentAndBlocksFurtherUse(t *testing.T) {
	tbl := table.New(itemsSchema(t))
	tp := fakeProvider{tables: map[string]*table.Table{"items": tbl}}
	h, err := Trace(&plan.Scan{Table: "items"}, tp)
	require.NoError(t, err)

	h.Dispose()
	h.Dispose()

	_, err = h.CurrentResult()
	require.ErrorIs(t, err, ErrUseAfterDispose)
	_, err = h.Subscribe(func(Delivery) {})
	require.ErrorIs(t, err, ErrUseAfterDispose)
}
