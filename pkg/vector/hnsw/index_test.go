package hnsw

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapVectorSource struct {
	vecs map[uint32][]float32
}

func newMapVectorSource() *mapVectorSource {
	return &mapVectorSource{vecs: make(map[uint32][]float32)}
}

func (m *mapVectorSource) Vector(id uint32) []float32 { return m.vecs[id] }

func (m *mapVectorSource) add(id uint32, v []float32) { m.vecs[id] = v }

func buildIndex(t *testing.T, n, dim int) (*Index, *mapVectorSource) {
	t.Helper()
	src := newMapVectorSource()
	idx, err := NewIndex(Params{Dim: dim, M: 8, EfConstruction: 64, EfSearch: 32, Seed: 42}, src)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()
		}
		src.add(uint32(i), v)
		require.NoError(t, idx.Insert(uint32(i), v))
	}
	return idx, src
}

func TestNewIndexRejectsBadParams(t *testing.T) {
	src := newMapVectorSource()
	_, err := NewIndex(Params{Dim: 0, M: 8}, src)
	require.Error(t, err)
	assert.Equal(t, errs.BadInput, errs.KindOf(err))

	_, err = NewIndex(Params{Dim: 4, M: 1}, src)
	require.Error(t, err)
}

func TestInsertThenSearchFindsExactMatch(t *testing.T) {
	idx, src := buildIndex(t, 200, 16)

	target := src.Vector(42)
	results, err := idx.Search(target, 1, 64)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(42), results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-4)
}

func TestSearchReturnsKResultsOrderedByDistance(t *testing.T) {
	idx, src := buildIndex(t, 300, 12)

	query := src.Vector(0)
	results, err := idx.Search(query, 10, 100)
	require.NoError(t, err)
	require.Len(t, results, 10)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearchOnEmptyIndexReturnsNil(t *testing.T) {
	src := newMapVectorSource()
	idx, err := NewIndex(Params{Dim: 4, M: 4}, src)
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 2, 3, 4}, 5, 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSearchRejectsDimMismatch(t *testing.T) {
	idx, _ := buildIndex(t, 10, 8)
	_, err := idx.Search([]float32{1, 2}, 1, 10)
	require.Error(t, err)
	assert.Equal(t, errs.BadInput, errs.KindOf(err))
}

func TestGraphIsBidirectional(t *testing.T) {
	idx, _ := buildIndex(t, 250, 8)

	for id := range idx.nodes {
		node := idx.nodes[id]
		for l := 0; l <= int(node.Level); l++ {
			for _, nbr := range idx.neighbors.get(uint32(id), l) {
				back := idx.neighbors.get(nbr, l)
				assert.Contains(t, back, uint32(id), "edge %d->%d at level %d has no reverse", id, nbr, l)
			}
		}
	}
}

func TestMarkDeletedExcludesFromResultsButKeepsEdges(t *testing.T) {
	idx, src := buildIndex(t, 200, 8)

	require.NoError(t, idx.MarkDeleted(42))
	results, err := idx.Search(src.Vector(42), 5, 64)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, uint32(42), r.ID)
	}

	// Edges through the deleted node must still exist so neighbors
	// reachable only via it don't become unreachable.
	assert.NotEmpty(t, idx.neighbors.get(42, 0), "deleted node's own edges should not be removed")
}

// TestSearchTraversesThroughDeletedNodeToReachLiveNeighbor builds a graph
// where the only path to a live node is through a tombstoned one, and
// confirms beam search still reaches it: a tombstoned node must remain a
// pass-through for traversal even though it can never itself be a result.
func TestSearchTraversesThroughDeletedNodeToReachLiveNeighbor(t *testing.T) {
	src := newMapVectorSource()
	src.add(0, []float32{0, 0})
	src.add(1, []float32{1, 0})
	src.add(2, []float32{2, 0})

	idx, err := NewIndex(Params{Dim: 2, M: 8, EfConstruction: 64, EfSearch: 32, Seed: 1}, src)
	require.NoError(t, err)
	idx.nodes = []Node{{ID: 0}, {ID: 1}, {ID: 2}}
	idx.neighbors.set(0, 0, []uint32{1})
	idx.neighbors.set(1, 0, []uint32{0, 2})
	idx.neighbors.set(2, 0, []uint32{1})
	idx.entryPoint = 0
	idx.hasEntry = true
	idx.maxLevel = 0

	require.NoError(t, idx.MarkDeleted(1))

	results, err := idx.Search([]float32{2, 0}, 1, 4)
	require.NoError(t, err)
	require.Len(t, results, 1, "node 2 is reachable only through the tombstoned node 1 and must still be found")
	assert.Equal(t, uint32(2), results[0].ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx, src := buildIndex(t, 150, 10)
	path := filepath.Join(t.TempDir(), "graph.hnsw")
	require.NoError(t, idx.Save(path))

	loaded, err := NewIndex(Params{Dim: 10, M: 8}, src)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, idx.Len(), loaded.Len())
	assert.Equal(t, idx.maxLevel, loaded.maxLevel)
	assert.Equal(t, idx.entryPoint, loaded.entryPoint)

	for id := range idx.nodes {
		a := idx.nodes[id]
		b := loaded.nodes[id]
		assert.Equal(t, a.Level, b.Level)
		for l := 0; l <= int(a.Level); l++ {
			assert.ElementsMatch(t, idx.neighbors.get(uint32(id), l), loaded.neighbors.get(uint32(id), l))
		}
	}

	query := src.Vector(0)
	want, err := idx.Search(query, 5, 64)
	require.NoError(t, err)
	got, err := loaded.Search(query, 5, 64)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hnsw")
	require.NoError(t, os.WriteFile(path, []byte("not a valid graph file at all"), 0o644))

	idx, err := NewIndex(Params{Dim: 4, M: 4}, newMapVectorSource())
	require.NoError(t, err)
	err = idx.Load(path)
	require.Error(t, err)
	assert.Equal(t, errs.Corrupted, errs.KindOf(err))
}

func TestLoadRejectsDimMismatch(t *testing.T) {
	idx, _ := buildIndex(t, 20, 8)
	path := filepath.Join(t.TempDir(), "graph.hnsw")
	require.NoError(t, idx.Save(path))

	wrongDim, err := NewIndex(Params{Dim: 4, M: 4}, newMapVectorSource())
	require.NoError(t, err)
	err = wrongDim.Load(path)
	require.Error(t, err)
	assert.Equal(t, errs.Corrupted, errs.KindOf(err))
}

func TestReorderPreservesSearchResults(t *testing.T) {
	idx, src := buildIndex(t, 200, 8)
	query := src.Vector(5)
	before, err := idx.Search(query, 5, 64)
	require.NoError(t, err)

	oldToNew, err := idx.Reorder()
	require.NoError(t, err)
	require.Len(t, oldToNew, idx.Len())

	remappedSrc := newMapVectorSource()
	for old, v := range src.vecs {
		remappedSrc.add(oldToNew[old], v)
	}
	idx.vectors = remappedSrc

	after, err := idx.Search(query, 5, 64)
	require.NoError(t, err)

	beforeIDs := make(map[uint32]bool, len(before))
	for _, r := range before {
		beforeIDs[oldToNew[r.ID]] = true
	}
	for _, r := range after {
		assert.True(t, beforeIDs[r.ID], "id %d missing after reorder", r.ID)
	}
}

func TestSearchWithBuffersMatchesSearch(t *testing.T) {
	idx, src := buildIndex(t, 150, 8)
	query := src.Vector(3)

	want, err := idx.Search(query, 5, 64)
	require.NoError(t, err)

	buf := AcquireQueryBuffers()
	defer buf.Release()
	got, err := idx.SearchWithBuffers(query, 5, 64, buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQueryBuffersResetClearsVisited(t *testing.T) {
	buf := AcquireQueryBuffers()
	buf.visited[7] = true
	buf.reset()
	assert.Empty(t, buf.visited)
}
