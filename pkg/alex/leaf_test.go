package alex

import (
	"testing"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedRun(n int) (keys, payloads []int64) {
	keys = make([]int64, n)
	payloads = make([]int64, n)
	for i := 0; i < n; i++ {
		keys[i] = int64(i * 10)
		payloads[i] = int64(i)
	}
	return keys, payloads
}

func TestBulkLoadGetAll(t *testing.T) {
	keys, payloads := sortedRun(50)
	leaf := BulkLoad(keys, payloads)
	require.Equal(t, 50, leaf.Count())

	for i, k := range keys {
		p, found := leaf.Get(k)
		require.True(t, found, "key %d should be found", k)
		assert.Equal(t, payloads[i], p)
	}
}

func TestBulkLoadEmpty(t *testing.T) {
	leaf := BulkLoad(nil, nil)
	assert.Equal(t, 0, leaf.Count())
	_, found := leaf.Get(42)
	assert.False(t, found)
}

func TestBulkLoadSingleKey(t *testing.T) {
	leaf := BulkLoad([]int64{7}, []int64{99})
	p, found := leaf.Get(7)
	require.True(t, found)
	assert.Equal(t, int64(99), p)
	_, found = leaf.Get(8)
	assert.False(t, found)
}

func TestGetMissingKey(t *testing.T) {
	keys, payloads := sortedRun(20)
	leaf := BulkLoad(keys, payloads)
	_, found := leaf.Get(5) // between slots, never inserted
	assert.False(t, found)
}

func TestInsertIntoSparseLeaf(t *testing.T) {
	keys, payloads := sortedRun(10)
	leaf := BulkLoad(keys, payloads)

	outcome, err := leaf.Insert(45, 1000)
	require.NoError(t, err)
	assert.Contains(t, []InsertOutcome{InsertOK, NeedsRetrain, NeedsSplit}, outcome)

	if outcome == InsertOK {
		p, found := leaf.Get(45)
		require.True(t, found)
		assert.Equal(t, int64(1000), p)
	}
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	keys, payloads := sortedRun(10)
	leaf := BulkLoad(keys, payloads)

	_, err := leaf.Insert(keys[3], 999)
	require.Error(t, err)
	assert.Equal(t, errs.BadInput, errs.KindOf(err))
}

func TestInsertEmptyLeafBootstrap(t *testing.T) {
	leaf := BulkLoad(nil, nil)
	outcome, err := leaf.Insert(5, 50)
	require.NoError(t, err)
	assert.Equal(t, InsertOK, outcome)

	p, found := leaf.Get(5)
	require.True(t, found)
	assert.Equal(t, int64(50), p)
}

func TestDeleteExisting(t *testing.T) {
	keys, payloads := sortedRun(20)
	leaf := BulkLoad(keys, payloads)

	require.True(t, leaf.Delete(keys[5]))
	_, found := leaf.Get(keys[5])
	assert.False(t, found)
	assert.Equal(t, 19, leaf.Count())
}

func TestDeleteMissing(t *testing.T) {
	keys, payloads := sortedRun(20)
	leaf := BulkLoad(keys, payloads)
	assert.False(t, leaf.Delete(99999))
}

func TestRangeScan(t *testing.T) {
	keys, payloads := sortedRun(30)
	leaf := BulkLoad(keys, payloads)

	var seen []int64
	leaf.Range(50, 150, func(k, p int64) bool {
		seen = append(seen, k)
		return true
	})
	assert.Equal(t, []int64{50, 60, 70, 80, 90, 100, 110, 120, 130, 140}, seen)
}

func TestRangeEarlyStop(t *testing.T) {
	keys, payloads := sortedRun(30)
	leaf := BulkLoad(keys, payloads)

	var seen []int64
	leaf.Range(0, 300, func(k, p int64) bool {
		seen = append(seen, k)
		return len(seen) < 3
	})
	assert.Len(t, seen, 3)
}

func TestSplitPreservesAllKeys(t *testing.T) {
	keys, payloads := sortedRun(40)
	leaf := BulkLoad(keys, payloads)

	splitKey, right := leaf.Split()

	var all []int64
	leaf.Range(keys[0], splitKey, func(k, _ int64) bool { all = append(all, k); return true })
	right.Range(splitKey, keys[len(keys)-1]+1, func(k, _ int64) bool { all = append(all, k); return true })

	assert.Len(t, all, 40)
	assert.Equal(t, leaf.Count()+right.Count(), 40)
	assert.LessOrEqual(t, leaf.hi, splitKey)
	assert.GreaterOrEqual(t, right.lo, splitKey)
}

func TestRetrainPreservesKeys(t *testing.T) {
	keys, payloads := sortedRun(25)
	leaf := BulkLoad(keys, payloads)

	leaf.Retrain()

	require.Equal(t, 25, leaf.Count())
	for i, k := range keys {
		p, found := leaf.Get(k)
		require.True(t, found)
		assert.Equal(t, payloads[i], p)
	}
}

func TestDensityWithinExpectedRange(t *testing.T) {
	keys, payloads := sortedRun(100)
	leaf := BulkLoad(keys, payloads)
	d := leaf.Density()
	assert.Greater(t, d, 0.3)
	assert.LessOrEqual(t, d, 1.0)
}
