package cache

import (
	"testing"

	"github.com/omendb/omendb/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	rc, err := NewRowCache(4)
	require.NoError(t, err)

	row := &types.Row{PK: 1, Values: []types.Value{{Int64: 42}}}
	rc.Put(1, 1, 10, row)

	got, commitTS, ok := rc.Get(1, 1)
	require.True(t, ok)
	require.Same(t, row, got)
	require.Equal(t, uint64(10), commitTS)
}

func TestGetMiss(t *testing.T) {
	rc, err := NewRowCache(4)
	require.NoError(t, err)

	_, _, ok := rc.Get(1, 999)
	require.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	rc, err := NewRowCache(4)
	require.NoError(t, err)

	rc.Put(1, 1, 1, &types.Row{PK: 1})
	rc.Invalidate(1, 1)

	_, _, ok := rc.Get(1, 1)
	require.False(t, ok)
}

func TestInvalidateTableOnlyDropsThatTable(t *testing.T) {
	rc, err := NewRowCache(8)
	require.NoError(t, err)

	rc.Put(1, 1, 1, &types.Row{PK: 1})
	rc.Put(2, 1, 1, &types.Row{PK: 1})
	rc.InvalidateTable(1)

	_, _, ok1 := rc.Get(1, 1)
	_, _, ok2 := rc.Get(2, 1)
	require.False(t, ok1)
	require.True(t, ok2)
}

func TestEvictionAtCapacity(t *testing.T) {
	rc, err := NewRowCache(2)
	require.NoError(t, err)

	rc.Put(1, 1, 1, &types.Row{PK: 1})
	rc.Put(1, 2, 2, &types.Row{PK: 2})
	rc.Put(1, 3, 3, &types.Row{PK: 3})

	require.Equal(t, 2, rc.Len())
	_, _, ok := rc.Get(1, 1)
	require.False(t, ok, "oldest entry should have been evicted")
}

func TestPurge(t *testing.T) {
	rc, err := NewRowCache(4)
	require.NoError(t, err)

	rc.Put(1, 1, 1, &types.Row{PK: 1})
	rc.Purge()
	require.Equal(t, 0, rc.Len())
}

func TestStaleCacheEntryRejectedByOlderReadTS(t *testing.T) {
	rc, err := NewRowCache(4)
	require.NoError(t, err)

	rc.Put(1, 1, 100, &types.Row{PK: 1})

	_, commitTS, ok := rc.Get(1, 1)
	require.True(t, ok)
	require.Greater(t, commitTS, uint64(50), "caller reading at read_ts=50 must not trust this entry")
}
