package vectorstore

import (
	"math/rand"
	"testing"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randVec(dim int, seed int64) []float32 {
	r := rand.New(rand.NewSource(seed))
	v := make([]float32, dim)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func TestCreateIndexRejectsDuplicate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.DefaultVectorIndexParams(8)))
	err := s.CreateIndex("docs", "embedding", types.DefaultVectorIndexParams(8))
	require.Error(t, err)
	assert.Equal(t, errs.BadInput, errs.KindOf(err))
}

func TestInsertSearchFindsExactMatch(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.VectorIndexParams{
		Dim: 8, M: 8, EfConstruction: 64, EfSearch: 32,
	}))

	var target []float32
	for i := 0; i < 100; i++ {
		v := randVec(8, int64(i))
		if i == 50 {
			target = v
		}
		require.NoError(t, s.Insert("docs", "embedding", int64(i), v))
	}

	hits, err := s.Search("docs", "embedding", target, 1, 4, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(50), hits[0].PK)
}

func TestSearchAppliesVisibilityFilter(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.VectorIndexParams{
		Dim: 4, M: 4, EfConstruction: 32, EfSearch: 32,
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Insert("docs", "embedding", int64(i), randVec(4, int64(i))))
	}

	hidden := int64(5)
	visible := func(pk int64) bool { return pk != hidden }

	hits, err := s.Search("docs", "embedding", randVec(4, 5), 20, 4, visible)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, hidden, h.PK)
	}
}

func TestDeleteMarksGraphNodeTombstoned(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.VectorIndexParams{
		Dim: 4, M: 4, EfConstruction: 32, EfSearch: 32,
	}))

	for i := 0; i < 30; i++ {
		require.NoError(t, s.Insert("docs", "embedding", int64(i), randVec(4, int64(i))))
	}
	require.NoError(t, s.Delete("docs", "embedding", 7))

	hits, err := s.Search("docs", "embedding", randVec(4, 7), 30, 4, nil)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, int64(7), h.PK)
	}
}

func TestInsertTwiceOnSamePKReplacesVector(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.VectorIndexParams{
		Dim: 3, M: 4, EfConstruction: 16, EfSearch: 16,
	}))

	require.NoError(t, s.Insert("docs", "embedding", 1, []float32{0, 0, 0}))
	require.NoError(t, s.Insert("docs", "embedding", 1, []float32{9, 9, 9}))

	hits, err := s.Search("docs", "embedding", []float32{9, 9, 9}, 1, 4, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].PK)
	assert.InDelta(t, 0, hits[0].Distance, 1e-3)
}

func TestSearchOnUnknownIndexReturnsNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Search("missing", "col", []float32{1}, 1, 1, nil)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.VectorIndexParams{
		Dim: 6, M: 6, EfConstruction: 32, EfSearch: 32,
	}))
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Insert("docs", "embedding", int64(i), randVec(6, int64(i))))
	}
	require.NoError(t, s.Save(dir))

	loaded := NewStore()
	require.NoError(t, loaded.CreateIndex("docs", "embedding", types.VectorIndexParams{
		Dim: 6, M: 6, EfConstruction: 32, EfSearch: 32,
	}))
	require.NoError(t, loaded.Load("docs", "embedding", dir))

	n, err := loaded.Len("docs", "embedding")
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	query := randVec(6, 10)
	want, err := s.Search("docs", "embedding", query, 5, 4, nil)
	require.NoError(t, err)
	got, err := loaded.Search("docs", "embedding", query, 5, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDropIndexThenSearchFails(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.DefaultVectorIndexParams(4)))
	require.NoError(t, s.DropIndex("docs", "embedding"))
	_, err := s.Search("docs", "embedding", []float32{1, 2, 3, 4}, 1, 1, nil)
	require.Error(t, err)
}

func TestIndexesListsRegisteredColumns(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.DefaultVectorIndexParams(4)))
	require.NoError(t, s.CreateIndex("images", "phash", types.DefaultVectorIndexParams(4)))

	cols := s.Indexes()
	assert.Len(t, cols, 2)
}

func TestBinaryQuantizationIndexInsertsWithoutError(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreateIndex("docs", "embedding", types.VectorIndexParams{
		Dim: 8, M: 8, EfConstruction: 32, EfSearch: 32, Quantization: types.QuantizationBinary,
	}))
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Insert("docs", "embedding", int64(i), randVec(8, int64(i))))
	}
	hits, err := s.Search("docs", "embedding", randVec(8, 3), 5, 4, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}
