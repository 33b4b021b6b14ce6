package hnsw

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/metrics"
	"github.com/omendb/omendb/pkg/vector/simd"
)

// Params configures one Index (spec.md §4.7: M typ. 32-48, M_max0 = 2M,
// ef_construction >= 200, ef_search dynamic, mL = 1/ln(M)).
type Params struct {
	Dim            int
	M              int
	EfConstruction int
	EfSearch       int
	Metric         simd.Metric
	Seed           int64
}

func (p Params) mMax0() int { return 2 * p.M }

func (p Params) levelFactor() float64 { return 1 / math.Log(float64(p.M)) }

// candidate is one node considered during a beam search, paired with its
// distance to the query.
type candidate struct {
	id   uint32
	dist float32
}

// NeighborLists holds every node's per-level adjacency. Conceptually the
// flat Vec<u32>-with-offsets layout spec.md §4.7 describes; represented
// here as one growable slice per (node, level) so insert/delete never
// need to reflow a shared flat buffer. serialize.go flattens this into
// count-prefixed id lists on disk at Save time and rebuilds it at Load time,
// which is where the "flat" invariant actually bites: the file format,
// not the in-memory graph under active mutation.
type NeighborLists struct {
	perNode [][MaxLevels][]uint32
}

func newNeighborLists() *NeighborLists {
	return &NeighborLists{}
}

func (n *NeighborLists) ensure(id uint32) {
	for uint32(len(n.perNode)) <= id {
		n.perNode = append(n.perNode, [MaxLevels][]uint32{})
	}
}

func (n *NeighborLists) get(id uint32, level int) []uint32 {
	if int(id) >= len(n.perNode) {
		return nil
	}
	return n.perNode[id][level]
}

func (n *NeighborLists) set(id uint32, level int, nbrs []uint32) {
	n.ensure(id)
	n.perNode[id][level] = nbrs
}

// Index is a hierarchical navigable small-world graph over dense u32
// node ids, addressed by position in nodes (spec.md §4.7, §6 "Ownership
// and cyclic structure").
type Index struct {
	mu sync.RWMutex

	params Params
	rng    *rand.Rand

	nodes     []Node
	neighbors *NeighborLists
	vectors   VectorSource

	entryPoint uint32
	hasEntry   bool
	maxLevel   int

	// metricTable/metricColumn label HNSWNodesTotal; set via SetLabels by
	// the owning VectorStore, which knows which (table, column) this
	// Index belongs to.
	metricTable, metricColumn string
}

// SetLabels names this Index for metrics reporting. Called once by the
// owning VectorStore after construction.
func (idx *Index) SetLabels(table, column string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.metricTable, idx.metricColumn = table, column
}

// NewIndex builds an empty Index. vectors supplies full-precision
// vectors by id during both insert (for distance computation against
// existing nodes) and search.
func NewIndex(p Params, vectors VectorSource) (*Index, error) {
	const op = "hnsw.NewIndex"
	if p.Dim <= 0 {
		return nil, errs.NewBadInput(op, nil)
	}
	if p.M <= 1 {
		return nil, errs.Newf(errs.BadInput, op, "M must be > 1, got %d", p.M)
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = 200
	}
	if p.EfSearch <= 0 {
		p.EfSearch = 100
	}
	if p.Metric == "" {
		p.Metric = simd.MetricL2
	}
	seed := p.Seed
	if seed == 0 {
		seed = 1
	}
	return &Index{
		params:    p,
		rng:       rand.New(rand.NewSource(seed)),
		neighbors: newNeighborLists(),
		vectors:   vectors,
	}, nil
}

// Len reports how many nodes (including soft-deleted ones) the index
// holds.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

func (idx *Index) dist(a, b []float32) float32 {
	return simd.Distance(idx.params.Metric, a, b)
}

func (idx *Index) sampleLevel() int {
	lvl := int(math.Floor(-math.Log(idx.rng.Float64()) * idx.params.levelFactor()))
	if lvl >= MaxLevels {
		lvl = MaxLevels - 1
	}
	return lvl
}

// Insert adds vector v (already stored in the backing VectorSource under
// id) to the graph, following spec.md §4.7's four-step construction
// procedure.
func (idx *Index) Insert(id uint32, v []float32) error {
	const op = "hnsw.Index.Insert"
	if len(v) != idx.params.Dim {
		return errs.Newf(errs.BadInput, op, "vector has %d dims, want %d", len(v), idx.params.Dim)
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HNSWInsertDuration)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	level := idx.sampleLevel()
	for uint32(len(idx.nodes)) <= id {
		idx.nodes = append(idx.nodes, Node{ID: uint32(len(idx.nodes))})
	}
	idx.nodes[id] = Node{ID: id, Level: uint8(level)}
	idx.neighbors.ensure(id)

	if !idx.hasEntry {
		idx.entryPoint = id
		idx.hasEntry = true
		idx.maxLevel = level
		metrics.HNSWNodesTotal.WithLabelValues(idx.metricTable, idx.metricColumn).Inc()
		return nil
	}

	// Step 2: greedy-descend from the entry point through every layer
	// strictly above this node's level to find one entry candidate for
	// the beam-search layers below.
	entry := candidate{id: idx.entryPoint, dist: idx.dist(v, idx.vectors.Vector(idx.entryPoint))}
	for l := idx.maxLevel; l > level; l-- {
		entry = idx.greedySearchLayer(v, entry, l)
	}

	// Step 3: beam-search + neighbor-selection heuristic at every layer
	// from min(level, maxLevel) down to 0.
	entries := []candidate{entry}
	for l := min(level, idx.maxLevel); l >= 0; l-- {
		found := idx.searchLayer(v, entries, l, idx.params.EfConstruction, nil)
		mMax := idx.params.M
		if l == 0 {
			mMax = idx.params.mMax0()
		}
		selected := idx.selectNeighborsHeuristic(v, found, idx.params.M)
		idx.connect(id, l, selected, mMax)
		entries = found
	}

	// Step 4: a new node deeper than every existing level becomes the
	// new entry point.
	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entryPoint = id
	}
	metrics.HNSWNodesTotal.WithLabelValues(idx.metricTable, idx.metricColumn).Inc()
	return nil
}

// connect adds bidirectional edges from id to each of selected at layer
// l, pruning either side back to mMax neighbors with the same heuristic
// used at construction (spec.md §4.7 step 3, "if any neighbor's
// out-degree exceeds M_max, prune the same way"). A node pruned out of
// a neighbor's list also loses its own edge back to that neighbor.
func (idx *Index) connect(id uint32, l int, selected []candidate, mMax int) {
	ids := make([]uint32, len(selected))
	for i, c := range selected {
		ids[i] = c.id
	}
	idx.neighbors.set(id, l, ids)
	idx.nodes[id].NumNbrs[l] = uint8(len(ids))

	for _, c := range selected {
		existing := idx.neighbors.get(c.id, l)
		merged := appendUnique(existing, id)
		if len(merged) > mMax {
			v := idx.vectors.Vector(c.id)
			cands := make([]candidate, len(merged))
			for i, nid := range merged {
				cands[i] = candidate{id: nid, dist: idx.dist(v, idx.vectors.Vector(nid))}
			}
			pruned := idx.selectNeighborsHeuristic(v, cands, mMax)
			keep := make(map[uint32]bool, len(pruned))
			for _, p := range pruned {
				keep[p.id] = true
			}
			for _, nid := range merged {
				if keep[nid] {
					continue
				}
				var back []uint32
				for _, b := range idx.neighbors.get(nid, l) {
					if b != c.id {
						back = append(back, b)
					}
				}
				idx.neighbors.set(nid, l, back)
				idx.nodes[nid].NumNbrs[l] = uint8(len(back))
			}
			merged = make([]uint32, len(pruned))
			for i, p := range pruned {
				merged[i] = p.id
			}
		}
		idx.neighbors.set(c.id, l, merged)
		idx.nodes[c.id].NumNbrs[l] = uint8(len(merged))
	}
}

func appendUnique(ids []uint32, id uint32) []uint32 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// selectNeighborsHeuristic implements spec.md §4.7's diversified
// neighbor selection: a candidate is admitted only if it is closer to
// the new node than to any already-admitted neighbor. This favors
// spreading neighbors across directions from the new node over simply
// keeping the M closest, which is what keeps the graph navigable rather
// than locally clustered.
func (idx *Index) selectNeighborsHeuristic(v []float32, cands []candidate, m int) []candidate {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].dist < sorted[j].dist })

	var selected []candidate
	for _, c := range sorted {
		if len(selected) >= m {
			break
		}
		cv := idx.vectors.Vector(c.id)
		admit := true
		for _, s := range selected {
			if idx.dist(cv, idx.vectors.Vector(s.id)) < c.dist {
				admit = false
				break
			}
		}
		if admit {
			selected = append(selected, c)
		}
	}
	// Backfill with the closest remaining candidates if the heuristic
	// was too strict to reach m -- an under-full neighbor list hurts
	// recall more than a slightly less diversified one.
	if len(selected) < m {
		have := make(map[uint32]bool, len(selected))
		for _, s := range selected {
			have[s.id] = true
		}
		for _, c := range sorted {
			if len(selected) >= m {
				break
			}
			if !have[c.id] {
				selected = append(selected, c)
			}
		}
	}
	return selected
}

// greedySearchLayer walks layer l from entry toward the single closest
// node to v, used above the insertion/query level where only coarse
// navigation is needed (ef=1 equivalent).
func (idx *Index) greedySearchLayer(v []float32, entry candidate, l int) candidate {
	best := entry
	improved := true
	for improved {
		improved = false
		for _, nbrID := range idx.neighbors.get(best.id, l) {
			d := idx.dist(v, idx.vectors.Vector(nbrID))
			if d < best.dist {
				best = candidate{id: nbrID, dist: d}
				improved = true
			}
		}
	}
	return best
}

// searchLayer runs the standard HNSW beam search at layer l from the
// given entry points, returning up to ef candidates ordered nearest
// first. buf, if non-nil, supplies the visited-set backing storage so
// repeated queries (SearchWithBuffers) don't allocate a fresh map per call.
func (idx *Index) searchLayer(v []float32, entries []candidate, l int, ef int, buf *QueryBuffers) []candidate {
	var visited map[uint32]bool
	candidates := newMinHeap()
	results := newMaxHeap()
	if buf != nil {
		visited = buf.visited
		candidates.items = buf.candidates[:0]
		results.items = buf.results[:0]
	} else {
		visited = make(map[uint32]bool)
	}

	for _, e := range entries {
		visited[e.id] = true
		candidates.push(e)
		results.push(e)
	}

	for candidates.Len() > 0 {
		c := candidates.pop()
		if results.Len() >= ef && c.dist > results.peek().dist {
			break
		}
		for _, nbrID := range idx.neighbors.get(c.id, l) {
			if visited[nbrID] {
				continue
			}
			visited[nbrID] = true
			d := idx.dist(v, idx.vectors.Vector(nbrID))
			// A tombstoned node is still pushed onto candidates so its own
			// neighbors stay reachable during expansion; it is only barred
			// from results admission, per MarkDeleted's doc comment.
			if results.Len() < ef || d < results.peek().dist {
				candidates.push(candidate{id: nbrID, dist: d})
				if !idx.nodes[nbrID].Deleted {
					results.push(candidate{id: nbrID, dist: d})
					if results.Len() > ef {
						results.popWorst()
					}
				}
			}
		}
	}

	out := results.drainSorted()
	if buf != nil {
		buf.candidates = candidates.items
		buf.results = results.items
	}
	metrics.HNSWNodesVisited.Observe(float64(len(visited)))
	return out
}

// Search returns up to k approximate nearest neighbors of v, using ef
// (or Params.EfSearch if ef <= 0) candidates at layer 0 (spec.md §4.7,
// "Search").
func (idx *Index) Search(v []float32, k, ef int) ([]Result, error) {
	return idx.search(v, k, ef, nil)
}

// SearchWithBuffers is Search, but reuses buf's visited-set storage
// instead of allocating a fresh one -- for callers issuing many queries
// back to back (e.g. a batch k-NN scan) who already hold a QueryBuffers
// from AcquireQueryBuffers.
func (idx *Index) SearchWithBuffers(v []float32, k, ef int, buf *QueryBuffers) ([]Result, error) {
	buf.reset()
	return idx.search(v, k, ef, buf)
}

func (idx *Index) search(v []float32, k, ef int, buf *QueryBuffers) ([]Result, error) {
	const op = "hnsw.Index.Search"
	if len(v) != idx.params.Dim {
		return nil, errs.Newf(errs.BadInput, op, "query has %d dims, want %d", len(v), idx.params.Dim)
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HNSWSearchDuration)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.hasEntry {
		return nil, nil
	}
	if ef <= 0 {
		ef = idx.params.EfSearch
	}
	if ef < k {
		ef = k
	}

	entry := candidate{id: idx.entryPoint, dist: idx.dist(v, idx.vectors.Vector(idx.entryPoint))}
	for l := idx.maxLevel; l > 0; l-- {
		entry = idx.greedySearchLayer(v, entry, l)
	}

	found := idx.searchLayer(v, []candidate{entry}, 0, ef, buf)
	results := make([]Result, 0, k)
	for _, c := range found {
		if idx.nodes[c.id].Deleted {
			continue
		}
		results = append(results, Result{ID: c.id, Distance: c.dist})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Result is one Search hit.
type Result struct {
	ID       uint32
	Distance float32
}

// MarkDeleted soft-tombstones id: Search skips it, but its edges remain
// in the graph so neighbors stay reachable (spec.md §9 Open Question
// (a), resolved as "soft-filter only, no HNSW graph GC").
func (idx *Index) MarkDeleted(id uint32) error {
	const op = "hnsw.Index.MarkDeleted"
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if int(id) >= len(idx.nodes) {
		return errs.NewNotFound(op, nil)
	}
	idx.nodes[id].Deleted = true
	return nil
}

// IsDeleted reports whether id has been soft-tombstoned via MarkDeleted.
// An out-of-range id is treated as deleted.
func (idx *Index) IsDeleted(id uint32) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if int(id) >= len(idx.nodes) {
		return true
	}
	return idx.nodes[id].Deleted
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
