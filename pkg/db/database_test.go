package db

import (
	"testing"

	"github.com/omendb/omendb/pkg/config"
	"github.com/omendb/omendb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docsSchema() types.Schema {
	return types.Schema{
		TableName: "docs",
		Columns: []types.Column{
			{ColumnName: "id", Type: types.DataTypeInt64, PrimaryKey: true},
			{ColumnName: "title", Type: types.DataTypeString},
			{ColumnName: "embedding", Type: types.DataTypeVector, Dim: 4},
		},
	}
}

func docRow(pk int64, title string, vec []float32) types.Row {
	return types.Row{PK: pk, Values: []types.Value{{Int64: pk}, {String: title}, {Vector: vec}}}
}

func openTestDB(t *testing.T, dataDir string) *Database {
	t.Helper()
	cfg := config.DefaultConfig(dataDir)
	d, err := Open(cfg)
	require.NoError(t, err)
	return d
}

// TestDurabilityAcrossReopen is a scaled-down S1 (spec.md §8, "Durability
// under kill"): commit rows in batches, close the database, reopen it, and
// confirm every committed row is still readable and the catalog survived.
func TestDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	const batches, batchSize = 5, 200

	d := openTestDB(t, dir)
	require.NoError(t, d.CreateTable(docsSchema()))

	for b := 0; b < batches; b++ {
		tx, err := d.Begin()
		require.NoError(t, err)
		for i := 0; i < batchSize; i++ {
			pk := int64(b*batchSize + i)
			require.NoError(t, d.Insert(tx, "docs", docRow(pk, "doc", []float32{1, 2, 3, 4})))
		}
		require.NoError(t, tx.Commit())
	}
	require.NoError(t, d.Close())

	d2 := openTestDB(t, dir)
	defer d2.Close()

	tx, err := d2.Begin()
	require.NoError(t, err)
	for pk := int64(0); pk < int64(batches*batchSize); pk++ {
		row, found, err := d2.GetByPK(tx, "docs", pk)
		require.NoError(t, err)
		require.Truef(t, found, "pk %d missing after reopen", pk)
		assert.Equal(t, pk, row.PK)
	}
	require.NoError(t, tx.Rollback())
}

// TestRangeScanOrderedSubset is a scaled-down S3 (spec.md §8, "Learned-index
// range"): bulk-insert sequential keys and confirm a sub-range returns
// exactly the expected keys in ascending order.
func TestRangeScanOrderedSubset(t *testing.T) {
	dir := t.TempDir()
	d := openTestDB(t, dir)
	defer d.Close()
	require.NoError(t, d.CreateTable(docsSchema()))

	const n = 2000
	tx, err := d.Begin()
	require.NoError(t, err)
	for i := int64(0); i < n; i++ {
		require.NoError(t, d.Insert(tx, "docs", docRow(i, "doc", []float32{1, 2, 3, 4})))
	}
	require.NoError(t, tx.Commit())

	tx2, err := d.Begin()
	require.NoError(t, err)
	defer tx2.Rollback()

	start, end := int64(500), int64(600)
	var got []int64
	err = d.RangeScan(tx2, "docs", start, &end, func(pk int64, row types.Row) (bool, error) {
		got = append(got, pk)
		return true, nil
	})
	require.NoError(t, err)
	require.Len(t, got, int(end-start))
	for i, pk := range got {
		assert.Equal(t, start+int64(i), pk)
	}
}

// TestGCSafetyUnderLongRunningReader is a scaled-down S6 (spec.md §8, "MVCC
// GC safety"): a long-running reader's snapshot must keep seeing rows
// deleted after it started, for as long as it stays open.
func TestGCSafetyUnderLongRunningReader(t *testing.T) {
	dir := t.TempDir()
	d := openTestDB(t, dir)
	defer d.Close()
	require.NoError(t, d.CreateTable(docsSchema()))

	const n = 100
	seed, err := d.Begin()
	require.NoError(t, err)
	for i := int64(0); i < n; i++ {
		require.NoError(t, d.Insert(seed, "docs", docRow(i, "doc", []float32{1, 2, 3, 4})))
	}
	require.NoError(t, seed.Commit())

	reader, err := d.Begin()
	require.NoError(t, err)
	defer reader.Rollback()

	deleter, err := d.Begin()
	require.NoError(t, err)
	for i := int64(0); i < n; i++ {
		require.NoError(t, d.DeleteByPK(deleter, "docs", i))
	}
	require.NoError(t, deleter.Commit())

	for i := int64(0); i < n; i++ {
		row, found, err := d.GetByPK(reader, "docs", i)
		require.NoError(t, err)
		require.Truef(t, found, "long-running reader lost visibility of pk %d after concurrent delete", i)
		assert.Equal(t, i, row.PK)
	}

	fresh, err := d.Begin()
	require.NoError(t, err)
	defer fresh.Rollback()
	for i := int64(0); i < n; i++ {
		_, found, err := d.GetByPK(fresh, "docs", i)
		require.NoError(t, err)
		assert.Falsef(t, found, "fresh snapshot should not see row %d deleted before it began", i)
	}
}

func TestCreateTableRejectsDuplicateAndMissingPK(t *testing.T) {
	dir := t.TempDir()
	d := openTestDB(t, dir)
	defer d.Close()

	require.NoError(t, d.CreateTable(docsSchema()))
	err := d.CreateTable(docsSchema())
	require.Error(t, err)

	noPK := types.Schema{TableName: "bad", Columns: []types.Column{{ColumnName: "x", Type: types.DataTypeInt64}}}
	err = d.CreateTable(noPK)
	require.Error(t, err)
}

func TestVectorKNNReturnsNearestAndRespectsFilter(t *testing.T) {
	dir := t.TempDir()
	d := openTestDB(t, dir)
	defer d.Close()
	require.NoError(t, d.CreateTable(docsSchema()))

	tx, err := d.Begin()
	require.NoError(t, err)
	vectors := map[int64][]float32{
		1: {1, 0, 0, 0},
		2: {0, 1, 0, 0},
		3: {0.9, 0.1, 0, 0},
	}
	for pk, v := range vectors {
		require.NoError(t, d.Insert(tx, "docs", docRow(pk, "doc", v)))
	}
	require.NoError(t, tx.Commit())

	tx2, err := d.Begin()
	require.NoError(t, err)
	defer tx2.Rollback()

	hits, err := d.VectorKNN(tx2, "docs", "embedding", []float32{1, 0, 0, 0}, 2, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].PK)

	filtered, err := d.VectorKNN(tx2, "docs", "embedding", []float32{1, 0, 0, 0}, 2, 10, func(pk int64) bool {
		return pk != 1
	})
	require.NoError(t, err)
	for _, h := range filtered {
		assert.NotEqual(t, int64(1), h.PK)
	}
}

func TestDeleteByPKThenReinsertIsIdempotentAgainstTree(t *testing.T) {
	dir := t.TempDir()
	d := openTestDB(t, dir)
	defer d.Close()
	require.NoError(t, d.CreateTable(docsSchema()))

	tx, err := d.Begin()
	require.NoError(t, err)
	require.NoError(t, d.Insert(tx, "docs", docRow(1, "a", []float32{1, 2, 3, 4})))
	require.NoError(t, tx.Commit())

	tx2, err := d.Begin()
	require.NoError(t, err)
	require.NoError(t, d.DeleteByPK(tx2, "docs", 1))
	require.NoError(t, tx2.Commit())

	tx3, err := d.Begin()
	require.NoError(t, err)
	_, found, err := d.GetByPK(tx3, "docs", 1)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, tx3.Rollback())

	tx4, err := d.Begin()
	require.NoError(t, err)
	require.NoError(t, d.Insert(tx4, "docs", docRow(1, "b", []float32{4, 3, 2, 1})))
	require.NoError(t, tx4.Commit())

	tx5, err := d.Begin()
	require.NoError(t, err)
	row, found, err := d.GetByPK(tx5, "docs", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", row.Values[1].String)
	require.NoError(t, tx5.Rollback())
}
