package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/table"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// fakeProvider is a minimal TableProvider over an in-memory table map, the
// shape exec.Build needs without pulling in the whole engine package.
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

func newUsersTable(t *testing.T, indexes []catalog.IndexDef) *table.Table {
	t.Helper()
	schema, err := catalog.NewRegistry().CreateTable("users", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "age", Type: typesystem.Int64},
		{Name: "name", Type: typesystem.String, Nullable: true},
	}, indexes)
	require.NoError(t, err)
	tbl := table.New(schema)
	_, err = tbl.Insert([]rowstore.Row{
		{typesystem.NewInt64(1), typesystem.NewInt64(30), typesystem.NewString("alice")},
		{typesystem.NewInt64(2), typesystem.NewInt64(25), typesystem.NewString("bob")},
		{typesystem.NewInt64(3), typesystem.NewInt64(40), typesystem.NewNull()},
	})
	require.NoError(t, err)
	return tbl
}

func TestBuild_SeqScan(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	it, err := Build(&optimize.SeqScan{Table: "users"}, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestBuild_IndexGetPrimaryKey(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	it, err := Build(&optimize.IndexGet{Table: "users", Index: "#pk", Column: "id", Key: expr.Lit{Value: typesystem.NewInt64(2)}}, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, ok := rows[0].Col("name")
	require.True(t, ok)
	require.Equal(t, "bob", v.Str)
}

func TestBuild_IndexScanRange(t *testing.T) {
	tbl := newUsersTable(t, []catalog.IndexDef{{Name: "idx_age", Kind: catalog.IndexOrdered, Column: "age"}})
	tp := fakeProvider{tables: map[string]*table.Table{"users": tbl}}
	it, err := Build(&optimize.IndexScan{
		Table: "users", Index: "idx_age", Column: "age",
		Lo: expr.Lit{Value: typesystem.NewInt64(26)}, Hi: expr.Lit{Value: typesystem.NewInt64(40)},
	}, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 2) // alice(30) and the age=40 row
}

func TestBuild_FilterAndProject(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	p := &optimize.Project{
		Cols: []optimize.ProjectCol{{Expr: expr.Col{Name: "name"}, Alias: "who"}},
		Child: &optimize.Filter{
			Pred:  expr.Cmp{Op: expr.Gt, L: expr.Col{Name: "age"}, R: expr.Lit{Value: typesystem.NewInt64(28)}},
			Child: &optimize.SeqScan{Table: "users"},
		},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"who"}, rows[0].Cols)
}

func TestBuild_SortAndLimit(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	p := &optimize.Limit{
		N: 2,
		Child: &optimize.Sort{
			Keys:  []optimize.SortKey{{Col: "age", Desc: true}},
			Child: &optimize.SeqScan{Table: "users"},
		},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	top, _ := rows[0].Col("age")
	require.Equal(t, int64(40), top.I64)
}

func TestBuild_TopK(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	it, err := Build(&optimize.TopK{K: 1, Keys: []optimize.SortKey{{Col: "age", Desc: false}}, Child: &optimize.SeqScan{Table: "users"}}, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, _ := rows[0].Col("age")
	require.Equal(t, int64(25), v.I64)
}

func TestBuild_Offset(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	it, err := Build(&optimize.Offset{N: 2, Child: &optimize.SeqScan{Table: "users"}}, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func ordersTable(t *testing.T) *table.Table {
	t.Helper()
	schema, err := catalog.NewRegistry().CreateTable("orders", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "user_id", Type: typesystem.Int64},
	}, nil)
	require.NoError(t, err)
	tbl := table.New(schema)
	_, err = tbl.Insert([]rowstore.Row{
		{typesystem.NewInt64(100), typesystem.NewInt64(1)},
		{typesystem.NewInt64(101), typesystem.NewInt64(99)}, // no matching user
	})
	require.NoError(t, err)
	return tbl
}

func TestBuild_InnerJoin(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{
		"users":  newUsersTable(t, nil),
		"orders": ordersTable(t),
	}}
	p := &optimize.HashJoin{
		Kind:  optimize.InnerJoin,
		On:    optimize.JoinOn{LeftCol: "id", RightCol: "user_id"},
		Left:  &optimize.SeqScan{Table: "users"},
		Right: &optimize.SeqScan{Table: "orders"},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestBuild_LeftJoinNullPadsUnmatched(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{
		"users":  newUsersTable(t, nil),
		"orders": ordersTable(t),
	}}
	p := &optimize.HashJoin{
		Kind:  optimize.LeftJoin,
		On:    optimize.JoinOn{LeftCol: "id", RightCol: "user_id"},
		Left:  &optimize.SeqScan{Table: "users"},
		Right: &optimize.SeqScan{Table: "orders"},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 3) // every user row, matched or not

	// bob (id=2) has no matching order, so its joined row is null-padded on
	// the right side (user_id is the unambiguous right-only column).
	found := false
	for _, r := range rows {
		name, ok := r.Col("name")
		if !ok || name.Str != "bob" {
			continue
		}
		found = true
		uid, ok := r.Col("user_id")
		require.True(t, ok)
		require.True(t, uid.IsNull())
	}
	require.True(t, found)
}

func TestBuild_Aggregate(t *testing.T) {
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	p := &optimize.Aggregate{
		Aggs:  []optimize.AggSpec{{Func: optimize.Count, Alias: "n"}, {Func: optimize.Avg, Col: "age", Alias: "avg_age"}},
		Child: &optimize.SeqScan{Table: "users"},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, _ := rows[0].Col("n")
	require.Equal(t, int64(3), n.I64)
	avg, _ := rows[0].Col("avg_age")
	require.InDelta(t, 31.666, avg.F64, 0.01)
}

func TestBuild_Aggregate_EmptyGroupIsNullNotZero(t *testing.T) {
	schema, err := catalog.NewRegistry().CreateTable("empty", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "val", Type: typesystem.Int64},
	}, nil)
	require.NoError(t, err)
	tbl := table.New(schema)
	tp := fakeProvider{tables: map[string]*table.Table{"empty": tbl}}

	p := &optimize.Aggregate{
		Aggs:  []optimize.AggSpec{{Func: optimize.Sum, Col: "val", Alias: "s"}},
		Child: &optimize.SeqScan{Table: "empty"},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	v, ok := rows[0].Col("s")
	require.True(t, ok)
	require.True(t, v.IsNull())
}

func TestBuild_Aggregate_DistinctCountsNullAsOneValue(t *testing.T) {
	// newUsersTable's "name" column holds "alice", "bob", and one null row:
	// two distinct non-null values plus null counted once is 3.
	tp := fakeProvider{tables: map[string]*table.Table{"users": newUsersTable(t, nil)}}
	p := &optimize.Aggregate{
		Aggs:  []optimize.AggSpec{{Func: optimize.Distinct, Col: "name", Alias: "d"}},
		Child: &optimize.SeqScan{Table: "users"},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	d, ok := rows[0].Col("d")
	require.True(t, ok)
	require.Equal(t, int64(3), d.I64)
}

func TestBuild_Aggregate_DistinctOfAllNullIsOne(t *testing.T) {
	schema, err := catalog.NewRegistry().CreateTable("docs", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "tag", Type: typesystem.String, Nullable: true},
	}, nil)
	require.NoError(t, err)
	tbl := table.New(schema)
	_, err = tbl.Insert([]rowstore.Row{
		{typesystem.NewInt64(1), typesystem.NewNull()},
		{typesystem.NewInt64(2), typesystem.NewNull()},
	})
	require.NoError(t, err)
	tp := fakeProvider{tables: map[string]*table.Table{"docs": tbl}}

	p := &optimize.Aggregate{
		Aggs:  []optimize.AggSpec{{Func: optimize.Distinct, Col: "tag", Alias: "d"}},
		Child: &optimize.SeqScan{Table: "docs"},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	d, ok := rows[0].Col("d")
	require.True(t, ok)
	require.Equal(t, int64(1), d.I64)
}

func TestBuild_GroupBy(t *testing.T) {
	schema, err := catalog.NewRegistry().CreateTable("sales", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "region", Type: typesystem.String},
		{Name: "amount", Type: typesystem.Int64},
	}, nil)
	require.NoError(t, err)
	tbl := table.New(schema)
	_, err = tbl.Insert([]rowstore.Row{
		{typesystem.NewInt64(1), typesystem.NewString("east"), typesystem.NewInt64(10)},
		{typesystem.NewInt64(2), typesystem.NewString("east"), typesystem.NewInt64(20)},
		{typesystem.NewInt64(3), typesystem.NewString("west"), typesystem.NewInt64(5)},
	})
	require.NoError(t, err)
	tp := fakeProvider{tables: map[string]*table.Table{"sales": tbl}}

	p := &optimize.GroupBy{
		Keys:  []string{"region"},
		Aggs:  []optimize.AggSpec{{Func: optimize.Sum, Col: "amount", Alias: "total"}},
		Child: &optimize.SeqScan{Table: "sales"},
	}
	it, err := Build(p, tp)
	require.NoError(t, err)
	rows, err := Materialize(it)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	totals := map[string]float64{}
	for _, r := range rows {
		region, _ := r.Col("region")
		total, _ := r.Col("total")
		totals[region.Str] = total.F64
	}
	require.Equal(t, 30.0, totals["east"])
	require.Equal(t, 5.0, totals["west"])
}

func TestColumnTags_InfersFromFirstNonNull(t *testing.T) {
	rows := []Record{
		{Cols: []string{"a"}, Vals: []typesystem.Value{typesystem.NewNull()}},
		{Cols: []string{"a"}, Vals: []typesystem.Value{typesystem.NewInt64(1)}},
	}
	tags := ColumnTags([]string{"a"}, rows)
	require.Equal(t, typesystem.Int64, tags[0])
}

func TestColumnTags_AllNullDefaultsToBool(t *testing.T) {
	rows := []Record{{Cols: []string{"a"}, Vals: []typesystem.Value{typesystem.NewNull()}}}
	tags := ColumnTags([]string{"a"}, rows)
	require.Equal(t, typesystem.Bool, tags[0])
}
