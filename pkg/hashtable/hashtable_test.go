package hashtable

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cicnx/icnfwd/pkg/icnerr"
)

func TestInsertLookupRemove(t *testing.T) {
	tbl := New[int](4, 16, true)

	idx, err := tbl.Insert(42, []byte("A"), 100)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Count())

	got, ok := tbl.Lookup(42, []byte("A"))
	require.True(t, ok)
	require.Equal(t, idx, got)
	require.Equal(t, 100, *tbl.Value(got))

	require.True(t, tbl.Remove(42, []byte("A")))
	require.Equal(t, 0, tbl.Count())
	_, ok = tbl.Lookup(42, []byte("A"))
	require.False(t, ok)
}

func TestInsertDuplicateFails(t *testing.T) {
	tbl := New[int](4, 16, true)
	_, err := tbl.Insert(1, []byte("x"), 1)
	require.NoError(t, err)
	_, err = tbl.Insert(1, []byte("x"), 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, icnerr.ErrExists))
}

func TestOverflowChaining(t *testing.T) {
	// One bucket (rowCount rounds up to 1), useSeven=false gives 8 slots
	// per row; inserting 20 same-hash keys forces overflow-row chaining.
	tbl := New[int](1, 32, false)
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		_, err := tbl.Insert(7, key, i)
		require.NoError(t, err)
	}
	require.Equal(t, 20, tbl.Count())
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		idx, ok := tbl.Lookup(7, key)
		require.True(t, ok)
		require.Equal(t, i, *tbl.Value(idx))
	}
}

func TestOutOfMemory(t *testing.T) {
	tbl := New[int](4, 2, true)
	_, err := tbl.Insert(1, []byte("a"), 1)
	require.NoError(t, err)
	_, err = tbl.Insert(2, []byte("b"), 2)
	require.NoError(t, err)
	_, err = tbl.Insert(3, []byte("c"), 3)
	require.Error(t, err)
	require.True(t, errors.Is(err, icnerr.ErrOutOfMemory))
}

func TestKeyTooLarge(t *testing.T) {
	tbl := New[int](4, 16, true)
	_, err := tbl.Insert(1, make([]byte, MaxKeyBytes+1), 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, icnerr.ErrInvalidArgument))
}

func TestRemoveByIndexFreesNode(t *testing.T) {
	tbl := New[int](4, 16, true)
	idx, err := tbl.Insert(5, []byte("z"), 9)
	require.NoError(t, err)
	tbl.RemoveByIndex(idx)
	require.Equal(t, 0, tbl.Count())

	idx2, err := tbl.Insert(6, []byte("y"), 11)
	require.NoError(t, err)
	require.Equal(t, idx, idx2, "freed node slot should be reused")
}

func TestRemoveReclaimsEmptyOverflowRow(t *testing.T) {
	// One bucket, 8 slots/row: 20 same-hash inserts chain head row (0-7),
	// overflow row (8-15), second overflow row (16-19).
	tbl := New[int](1, 32, false)
	keys := make([][]byte, 20)
	for i := 0; i < 20; i++ {
		keys[i] = []byte(fmt.Sprintf("k%02d", i))
		_, err := tbl.Insert(7, keys[i], i)
		require.NoError(t, err)
	}
	require.Empty(t, tbl.freeRows, "no row has emptied yet")

	for i := 8; i < 16; i++ {
		idx, ok := tbl.Lookup(7, keys[i])
		require.True(t, ok)
		tbl.RemoveByIndex(idx)
	}
	require.Equal(t, 12, tbl.Count())
	require.Len(t, tbl.freeRows, 1, "the emptied middle overflow row must be unlinked and returned to the free list")

	for i, k := range keys {
		if i >= 8 && i < 16 {
			continue
		}
		_, ok := tbl.Lookup(7, k)
		require.True(t, ok, "surviving entries must still resolve after the middle overflow row is unlinked")
	}

	rowsBefore := len(tbl.rows)
	for i := 20; i < 25; i++ {
		_, err := tbl.Insert(7, []byte(fmt.Sprintf("k%02d", i)), i)
		require.NoError(t, err)
	}
	require.Equal(t, rowsBefore, len(tbl.rows), "the reclaimed row must be recycled instead of growing the row pool")
	require.Empty(t, tbl.freeRows)
}

func TestRemoveNeverUnlinksHeadRow(t *testing.T) {
	tbl := New[int](1, 16, false)
	idx, err := tbl.Insert(1, []byte("a"), 1)
	require.NoError(t, err)
	tbl.RemoveByIndex(idx)
	require.Empty(t, tbl.freeRows, "the head row is addressed directly by the bucket and must not be freed")

	_, err = tbl.Insert(1, []byte("b"), 2)
	require.NoError(t, err)
}

func TestIterationVisitsEveryLiveEntry(t *testing.T) {
	tbl := New[int](4, 16, true)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	hashes := map[string]uint64{"a": 10, "b": 11, "c": 12}
	for k, v := range want {
		_, err := tbl.Insert(hashes[k], []byte(k), v)
		require.NoError(t, err)
	}

	got := map[string]int{}
	cur := Cursor{}
	for {
		idx, next, ok := tbl.Next(cur)
		if !ok {
			break
		}
		got[string(tbl.Key(idx))] = *tbl.Value(idx)
		cur = next
	}
	require.Equal(t, want, got)
}

func TestExpirySetAndGet(t *testing.T) {
	tbl := New[int](4, 16, true)
	idx, _ := tbl.Insert(1, []byte("a"), 1)
	tbl.SetExpiry(idx, 12345)
	require.Equal(t, uint16(12345), tbl.Expiry(idx))
}
