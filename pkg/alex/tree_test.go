package alex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigSortedRun(n int) (keys, payloads []int64) {
	keys = make([]int64, n)
	payloads = make([]int64, n)
	for i := 0; i < n; i++ {
		keys[i] = int64(i)
		payloads[i] = int64(i * 2)
	}
	return keys, payloads
}

func TestBulkBuildSingleLeafNoHeight(t *testing.T) {
	keys, payloads := bigSortedRun(100)
	tree := BulkBuild(keys, payloads, 1024, 512)
	assert.Equal(t, 0, tree.Height())
	assert.Equal(t, 100, tree.Count())
}

func TestBulkBuildMultiLevel(t *testing.T) {
	keys, payloads := bigSortedRun(20000)
	tree := BulkBuild(keys, payloads, 64, 8)
	assert.Greater(t, tree.Height(), 0)
	assert.Equal(t, 20000, tree.Count())

	for _, k := range []int64{0, 1, 9999, 19999, 500} {
		p, found := tree.Get(k)
		require.True(t, found, "key %d", k)
		assert.Equal(t, k*2, p)
	}
	_, found := tree.Get(20000)
	assert.False(t, found)
}

func TestBulkBuildEmpty(t *testing.T) {
	tree := BulkBuild(nil, nil, 64, 8)
	assert.Equal(t, 0, tree.Count())
	_, found := tree.Get(1)
	assert.False(t, found)
}

func TestTreeRangeScanOrdering(t *testing.T) {
	keys, payloads := bigSortedRun(5000)
	tree := BulkBuild(keys, payloads, 64, 8)

	var seen []int64
	tree.Range(1000, 1010, func(k, p int64) bool {
		seen = append(seen, k)
		return true
	})
	assert.Equal(t, []int64{1000, 1001, 1002, 1003, 1004, 1005, 1006, 1007, 1008, 1009}, seen)
}

func TestTreeInsertCascadesIntoNewLeaf(t *testing.T) {
	tree := NewAlexTree()
	for i := int64(0); i < 3000; i++ {
		require.NoError(t, tree.Insert(i, i*10))
	}
	assert.Equal(t, 3000, tree.Count())

	for _, k := range []int64{0, 1500, 2999} {
		p, found := tree.Get(k)
		require.True(t, found)
		assert.Equal(t, k*10, p)
	}
}

func TestTreeInsertGrowsHeightAtRoot(t *testing.T) {
	tree := BulkBuild(nil, nil, 8, 2)
	for i := int64(0); i < 500; i++ {
		require.NoError(t, tree.Insert(i, i))
	}
	assert.Greater(t, tree.Height(), 0)
	assert.Equal(t, 500, tree.Count())

	p, found := tree.Get(250)
	require.True(t, found)
	assert.Equal(t, int64(250), p)
}

func TestTreeInsertDuplicateRejected(t *testing.T) {
	keys, payloads := bigSortedRun(100)
	tree := BulkBuild(keys, payloads, 64, 8)

	err := tree.Insert(50, 999)
	require.Error(t, err)
	assert.Equal(t, 100, tree.Count())
}

func TestTreeDelete(t *testing.T) {
	keys, payloads := bigSortedRun(1000)
	tree := BulkBuild(keys, payloads, 64, 8)

	require.True(t, tree.Delete(500))
	_, found := tree.Get(500)
	assert.False(t, found)
	assert.Equal(t, 999, tree.Count())

	assert.False(t, tree.Delete(500))
}

func TestTreeInsertOutOfOrderKeys(t *testing.T) {
	tree := NewAlexTree()
	order := []int64{500, 10, 999, 1, 250, 750, 0, 333}
	for _, k := range order {
		require.NoError(t, tree.Insert(k, k*3))
	}
	for _, k := range order {
		p, found := tree.Get(k)
		require.True(t, found, "key %d", k)
		assert.Equal(t, k*3, p)
	}
}
