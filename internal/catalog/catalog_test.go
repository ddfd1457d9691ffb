package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/reldb/internal/typesystem"
)

func cols() []Column {
	return []Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "name", Type: typesystem.String, Nullable: true},
	}
}

func TestRegistry_CreateTableThenTableNames(t *testing.T) {
	r := NewRegistry()
	s, err := r.CreateTable("users", cols(), nil)
	require.NoError(t, err)
	require.Equal(t, "users", s.Name)
	require.Equal(t, "id", s.PrimaryKey)
	require.Equal(t, []string{"users"}, r.TableNames())
}

func TestRegistry_CreateTable_DuplicateNameRejected(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateTable("users", cols(), nil)
	require.NoError(t, err)
	_, err = r.CreateTable("users", cols(), nil)
	require.ErrorIs(t, err, ErrSchemaConflict)
}

func TestRegistry_CreateTable_DuplicateColumnRejected(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateTable("users", []Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "id", Type: typesystem.String},
	}, nil)
	require.ErrorIs(t, err, ErrSchemaConflict)
}

func TestRegistry_CreateTable_RequiresExactlyOnePrimaryKey(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateTable("noPK", []Column{
		{Name: "id", Type: typesystem.Int64},
	}, nil)
	require.ErrorIs(t, err, ErrInvalidPrimaryKey)

	_, err = r.CreateTable("twoPK", []Column{
		{Name: "a", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "b", Type: typesystem.Int64, PrimaryKey: true},
	}, nil)
	require.ErrorIs(t, err, ErrInvalidPrimaryKey)
}

func TestRegistry_CreateTable_NullablePrimaryKeyRejected(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateTable("bad", []Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true, Nullable: true},
	}, nil)
	require.ErrorIs(t, err, ErrInvalidPrimaryKey)
}

func TestRegistry_CreateTable_IndexValidation(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateTable("t1", cols(), []IndexDef{
		{Name: "idx_name", Kind: IndexOrdered, Column: "name"},
	})
	require.NoError(t, err)

	_, err = r.CreateTable("t2", cols(), []IndexDef{
		{Name: "idx_bad", Kind: IndexOrdered, Column: "nope"},
	})
	require.ErrorIs(t, err, ErrUnknownColumn)

	_, err = r.CreateTable("t3", cols(), []IndexDef{
		{Name: "dup", Kind: IndexOrdered, Column: "name"},
		{Name: "dup", Kind: IndexUnique, Column: "id"},
	})
	require.ErrorIs(t, err, ErrIndexConflict)
}

func TestRegistry_DropTable(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateTable("users", cols(), nil)
	require.NoError(t, err)

	require.NoError(t, r.DropTable("users"))
	require.Empty(t, r.TableNames())

	err = r.DropTable("users")
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestRegistry_Table_UnknownReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Table("ghost")
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestSchema_ColumnIndexAndPrimaryKeyIndex(t *testing.T) {
	r := NewRegistry()
	s, err := r.CreateTable("users", cols(), nil)
	require.NoError(t, err)

	ix, ok := s.ColumnIndex("name")
	require.True(t, ok)
	require.Equal(t, 1, ix)

	_, ok = s.ColumnIndex("ghost")
	require.False(t, ok)

	require.Equal(t, 0, s.PrimaryKeyIndex())
	require.Equal(t, 2, s.NumColumns())

	col, ok := s.Column("id")
	require.True(t, ok)
	require.True(t, col.PrimaryKey)
}
