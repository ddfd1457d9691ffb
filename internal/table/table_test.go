package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/index"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/typesystem"
)

func newItemsSchema(t *testing.T, indexes []catalog.IndexDef) *catalog.Schema {
	t.Helper()
	s, err := catalog.NewRegistry().CreateTable("items", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "name", Type: typesystem.String, Nullable: true},
		{Name: "price", Type: typesystem.Int64},
	}, indexes)
	require.NoError(t, err)
	return s
}

func row(id int64, name string, price int64) rowstore.Row {
	return rowstore.Row{typesystem.NewInt64(id), typesystem.NewString(name), typesystem.NewInt64(price)}
}

func TestTable_InsertMaintainsPrimaryKeyIndex(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	d, err := tbl.Insert([]rowstore.Row{row(1, "a", 10), row(2, "b", 20)})
	require.NoError(t, err)
	require.Len(t, d.Changes, 2)
	require.Equal(t, 2, tbl.Rows.Len())

	id, ok := tbl.PrimaryKeyIndex().Get(typesystem.NewInt64(2))
	require.True(t, ok)
	got, err := tbl.Rows.Get(id)
	require.NoError(t, err)
	require.Equal(t, "b", got[1].Str)
}

func TestTable_Insert_RejectsDuplicatePrimaryKeyWithinBatch(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10), row(1, "b", 20)})
	require.ErrorIs(t, err, index.ErrUniqueViolation)
	require.Equal(t, 0, tbl.Rows.Len())
}

func TestTable_Insert_RejectsDuplicatePrimaryKeyAgainstExisting(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10)})
	require.NoError(t, err)
	_, err = tbl.Insert([]rowstore.Row{row(1, "b", 20)})
	require.ErrorIs(t, err, index.ErrUniqueViolation)
	require.Equal(t, 1, tbl.Rows.Len())
}

func TestTable_Insert_RejectsDuplicateSecondaryUniqueValueWithinBatch(t *testing.T) {
	tbl := New(newItemsSchema(t, []catalog.IndexDef{{Name: "idx_name", Kind: catalog.IndexUnique, Column: "name"}}))
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10), row(2, "a", 20)})
	require.ErrorIs(t, err, index.ErrUniqueViolation)
	require.Equal(t, 0, tbl.Rows.Len())

	// the unique index must not have been partially mutated by the first
	// row before the second row's batch-collision was detected.
	ix, ok := tbl.UniqueIndex("idx_name")
	require.True(t, ok)
	_, found := ix.Get(typesystem.NewString("a"))
	require.False(t, found)
}

func TestTable_Insert_AtomicOnValidationFailure(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	bad := rowstore.Row{typesystem.NewInt64(1), typesystem.NewString("x")} // wrong arity
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10), bad})
	require.Error(t, err)
	require.Equal(t, 0, tbl.Rows.Len())
}

func TestTable_Insert_NotNullViolation(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	bad := rowstore.Row{typesystem.NewInt64(1), typesystem.NewString("a"), typesystem.NewNull()}
	_, err := tbl.Insert([]rowstore.Row{bad})
	require.ErrorIs(t, err, ErrNotNullViolation)
}

func TestTable_OrderedIndexMaintainedOnInsert(t *testing.T) {
	tbl := New(newItemsSchema(t, []catalog.IndexDef{{Name: "idx_price", Kind: catalog.IndexOrdered, Column: "price"}}))
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10), row(2, "b", 20), row(3, "c", 30)})
	require.NoError(t, err)

	ix, ok := tbl.OrderedIndex("idx_price")
	require.True(t, ok)
	ids := ix.Range(typesystem.NewInt64(15), typesystem.NewInt64(25))
	require.Len(t, ids, 1)
}

func TestTable_Update_AppliesAssignmentsAndMaintainsIndexes(t *testing.T) {
	tbl := New(newItemsSchema(t, []catalog.IndexDef{{Name: "idx_price", Kind: catalog.IndexOrdered, Column: "price"}}))
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10)})
	require.NoError(t, err)

	id, ok := tbl.PrimaryKeyIndex().Get(typesystem.NewInt64(1))
	require.True(t, ok)
	old, err := tbl.Rows.Get(id)
	require.NoError(t, err)

	d, err := tbl.Update(map[uint64]rowstore.Row{id: old}, []Assignment{{Column: "price", Value: typesystem.NewInt64(99)}})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)

	got, err := tbl.Rows.Get(id)
	require.NoError(t, err)
	require.Equal(t, int64(99), got[2].I64)

	ix, _ := tbl.OrderedIndex("idx_price")
	require.Nil(t, ix.Get(typesystem.NewInt64(10)))
	require.Equal(t, []uint64{id}, ix.Get(typesystem.NewInt64(99)))
}

func TestTable_Update_RejectsUniqueCollisionAgainstAnotherRow(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10), row(2, "b", 20)})
	require.NoError(t, err)

	id2, ok := tbl.PrimaryKeyIndex().Get(typesystem.NewInt64(2))
	require.True(t, ok)
	old, err := tbl.Rows.Get(id2)
	require.NoError(t, err)

	_, err = tbl.Update(map[uint64]rowstore.Row{id2: old}, []Assignment{{Column: "id", Value: typesystem.NewInt64(1)}})
	require.ErrorIs(t, err, index.ErrUniqueViolation)
}

func TestTable_Delete_RemovesRowAndIndexEntries(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10)})
	require.NoError(t, err)

	id, ok := tbl.PrimaryKeyIndex().Get(typesystem.NewInt64(1))
	require.True(t, ok)
	old, err := tbl.Rows.Get(id)
	require.NoError(t, err)

	d := tbl.Delete(map[uint64]rowstore.Row{id: old})
	require.Len(t, d.Changes, 1)
	require.Equal(t, 0, tbl.Rows.Len())

	_, ok = tbl.PrimaryKeyIndex().Get(typesystem.NewInt64(1))
	require.False(t, ok)
}

func TestTable_SubscribePublishesDeltas(t *testing.T) {
	tbl := New(newItemsSchema(t, nil))
	var got []Delta
	unsub := tbl.Subscribe(func(d Delta) { got = append(got, d) })

	_, err := tbl.Insert([]rowstore.Row{row(1, "a", 10)})
	require.NoError(t, err)
	require.Len(t, got, 1)

	unsub()
	_, err = tbl.Insert([]rowstore.Row{row(2, "b", 20)})
	require.NoError(t, err)
	require.Len(t, got, 1) // unsubscribed, no further notifications
}

func TestTable_GINIndexLookupByColumn(t *testing.T) {
	schema, err := catalog.NewRegistry().CreateTable("docs", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "data", Type: typesystem.Jsonb},
	}, []catalog.IndexDef{{Name: "idx_data", Kind: catalog.IndexGIN, Column: "data"}})
	require.NoError(t, err)
	tbl := New(schema)

	g, name, ok := tbl.GINIndex("data")
	require.True(t, ok)
	require.Equal(t, "idx_data", name)
	require.NotNil(t, g)

	g2, ok := tbl.GINIndexByName("idx_data")
	require.True(t, ok)
	require.Same(t, g, g2)
}
