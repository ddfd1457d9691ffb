package rowstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/reldb/internal/typesystem"
)

func TestStore_AllocateInsertGet(t *testing.T) {
	s := New()
	id := s.Allocate()
	s.Insert(id, Row{typesystem.NewInt64(1)})

	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, int64(1), got[0].I64)
	require.Equal(t, 1, s.Len())
}

func TestStore_AllocateIDsAreMonotonicAndNeverReused(t *testing.T) {
	s := New()
	id1 := s.Allocate()
	id2 := s.Allocate()
	require.Less(t, id1, id2)

	s.Insert(id1, Row{typesystem.NewInt64(1)})
	require.NoError(t, s.Delete(id1))

	id3 := s.Allocate()
	require.NotEqual(t, id1, id3)
	require.Greater(t, id3, id2)
}

func TestStore_GetMissingReturnsErrRowNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(999)
	require.ErrorIs(t, err, ErrRowNotFound)
}

func TestStore_Replace(t *testing.T) {
	s := New()
	id := s.Allocate()
	s.Insert(id, Row{typesystem.NewInt64(1)})

	require.NoError(t, s.Replace(id, Row{typesystem.NewInt64(2)}))
	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, int64(2), got[0].I64)

	err = s.Replace(999, Row{typesystem.NewInt64(0)})
	require.ErrorIs(t, err, ErrRowNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := New()
	id := s.Allocate()
	s.Insert(id, Row{typesystem.NewInt64(1)})
	require.NoError(t, s.Delete(id))
	require.Equal(t, 0, s.Len())

	_, err := s.Get(id)
	require.ErrorIs(t, err, ErrRowNotFound)

	err = s.Delete(id)
	require.ErrorIs(t, err, ErrRowNotFound)
}

func TestStore_ScanVisitsInAscendingOrder(t *testing.T) {
	s := New()
	var ids []uint64
	for i := 0; i < 3; i++ {
		id := s.Allocate()
		ids = append(ids, id)
		s.Insert(id, Row{typesystem.NewInt64(int64(i))})
	}

	var seen []uint64
	s.Scan(func(id uint64, row Row) bool {
		seen = append(seen, id)
		return true
	})
	require.Equal(t, ids, seen)
}

func TestStore_ScanStopsEarly(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		id := s.Allocate()
		s.Insert(id, Row{typesystem.NewInt64(int64(i))})
	}
	count := 0
	s.Scan(func(id uint64, row Row) bool {
		count++
		return count < 2
	})
	require.Equal(t, 2, count)
}

func TestStore_Range(t *testing.T) {
	s := New()
	ids := make([]uint64, 5)
	for i := 0; i < 5; i++ {
		ids[i] = s.Allocate()
		s.Insert(ids[i], Row{typesystem.NewInt64(int64(i))})
	}

	var seen []uint64
	s.Range(ids[1], ids[3], func(id uint64, row Row) bool {
		seen = append(seen, id)
		return true
	})
	require.Equal(t, ids[1:4], seen)
}

func TestRow_CloneIsIndependent(t *testing.T) {
	r := Row{typesystem.NewInt64(1)}
	c := r.Clone()
	c[0] = typesystem.NewInt64(2)
	require.Equal(t, int64(1), r[0].I64)
	require.Equal(t, int64(2), c[0].I64)
}
