// Package vectorstore implements the VectorStore entity from spec.md §4.7
// and §3 ("Entity: VectorStorage"): one HNSWIndex per (table, column)
// vector column, holding the dense full-precision vectors backing it and
// the mapping between a row's primary key and its HNSW node id.
package vectorstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/omendb/omendb/pkg/errs"
	logPkg "github.com/omendb/omendb/pkg/log"
	"github.com/omendb/omendb/pkg/types"
	"github.com/omendb/omendb/pkg/vector/hnsw"
	"github.com/omendb/omendb/pkg/vector/quant"
	"github.com/omendb/omendb/pkg/vector/simd"
	"github.com/rs/zerolog"
)

// slab is the per-(table,column) vector index: dense float32 storage,
// the HNSW graph over it, and the pk<->node id mapping. Implements
// hnsw.VectorSource directly so Index can fetch vectors by node id
// without knowing anything about rows or primary keys.
type slab struct {
	mu sync.RWMutex

	table, column string
	dim           int
	quantizer     types.QuantizationKind

	vectors  [][]float32 // node id -> full-precision vector
	pkByNode []int64     // node id -> owning row's primary key
	nodeByPK map[int64]uint32

	index   *hnsw.Index
	binaryQ *quant.BinaryQuantizer
	rabitQ  *quant.RaBitQQuantizer

	// codes/rCodes hold each vector's quantized form, kept in sync by
	// quantize() on every Insert/replace/Load and consulted by
	// Store.Search instead of the full-precision vector when the column
	// was created with a non-none Quantization.
	codes  map[uint32][]uint64 // node id -> binary code, when quantizer == binary
	rCodes map[uint32]quant.Code
}

func (s *slab) Vector(id uint32) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.vectors) {
		return nil
	}
	return s.vectors[id]
}

// Store holds every vector index in the database, keyed by "table.column".
type Store struct {
	mu     sync.RWMutex
	slabs  map[string]*slab
	logger zerolog.Logger
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{
		slabs:  make(map[string]*slab),
		logger: logPkg.WithComponent("vectorstore"),
	}
}

func key(table, column string) string { return table + "." + column }

// CreateIndex registers a new HNSW index for table.column (spec.md §4.3
// CREATE_VECTOR_INDEX). params.Dim must match every vector inserted
// under this index thereafter.
func (s *Store) CreateIndex(table, column string, params types.VectorIndexParams) error {
	const op = "vectorstore.Store.CreateIndex"
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(table, column)
	if _, exists := s.slabs[k]; exists {
		return errs.Newf(errs.BadInput, op, "vector index already exists on %s", k)
	}

	sl := &slab{
		table:     table,
		column:    column,
		dim:       params.Dim,
		quantizer: params.Quantization,
		nodeByPK:  make(map[int64]uint32),
	}

	hnswParams := hnsw.Params{
		Dim:            params.Dim,
		M:              params.M,
		EfConstruction: params.EfConstruction,
		EfSearch:       params.EfSearch,
		Metric:         simd.MetricL2,
	}
	idx, err := hnsw.NewIndex(hnswParams, sl)
	if err != nil {
		return err
	}
	idx.SetLabels(table, column)
	sl.index = idx

	switch params.Quantization {
	case types.QuantizationBinary:
		bq, err := quant.TrainBinaryQuantizer(params.Dim, nil)
		if err != nil {
			return err
		}
		sl.binaryQ = bq
		sl.codes = make(map[uint32][]uint64)
	case types.QuantizationRaBitQ:
		bits := params.RaBitQBits
		if bits <= 0 {
			bits = 4
		}
		rq, err := quant.NewRaBitQQuantizer(params.Dim, bits)
		if err != nil {
			return err
		}
		sl.rabitQ = rq
		sl.rCodes = make(map[uint32]quant.Code)
	}

	s.slabs[k] = sl
	s.logger.Info().Str("table", table).Str("column", column).Int("dim", params.Dim).Msg("created vector index")
	return nil
}

// DropIndex removes a previously created index. Existing Result
// references into it become meaningless; callers must not retain them
// past DropIndex.
func (s *Store) DropIndex(table, column string) error {
	const op = "vectorstore.Store.DropIndex"
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(table, column)
	if _, exists := s.slabs[k]; !exists {
		return errs.NewNotFound(op, nil)
	}
	delete(s.slabs, k)
	return nil
}

func (s *Store) get(table, column string) (*slab, error) {
	const op = "vectorstore.Store.get"
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slabs[key(table, column)]
	if !ok {
		return nil, errs.Newf(errs.NotFound, op, "no vector index on %s.%s", table, column)
	}
	return sl, nil
}

// Insert adds v, owned by row pk, to the index on table.column. Called
// at the same point in the write path as any other column write, so a
// vector write shares the owning transaction's write-write conflict
// check (spec.md's Open Question (b) resolution).
func (s *Store) Insert(table, column string, pk int64, v []float32) error {
	const op = "vectorstore.Store.Insert"
	sl, err := s.get(table, column)
	if err != nil {
		return err
	}
	if len(v) != sl.dim {
		return errs.Newf(errs.BadInput, op, "vector has %d dims, want %d", len(v), sl.dim)
	}

	sl.mu.Lock()
	if existing, already := sl.nodeByPK[pk]; already {
		sl.mu.Unlock()
		return sl.replace(existing, v)
	}
	id := uint32(len(sl.vectors))
	sl.vectors = append(sl.vectors, v)
	sl.pkByNode = append(sl.pkByNode, pk)
	sl.nodeByPK[pk] = id
	sl.mu.Unlock()

	if err := sl.index.Insert(id, v); err != nil {
		return err
	}
	sl.quantize(id, v)
	return nil
}

// replace handles re-inserting a vector for an already-indexed pk
// (an UPDATE of a vector column): the backing slab entry and its
// quantized code are overwritten in place. The graph is not re-linked:
// the node keeps its id and the edges built for the old value, which
// simply see the updated vector on the next distance compute.
func (sl *slab) replace(id uint32, v []float32) error {
	sl.mu.Lock()
	sl.vectors[id] = v
	sl.mu.Unlock()
	sl.quantize(id, v)
	return nil
}

func (sl *slab) quantize(id uint32, v []float32) {
	switch sl.quantizer {
	case types.QuantizationBinary:
		code, err := sl.binaryQ.Encode(v)
		if err != nil {
			return
		}
		sl.mu.Lock()
		sl.codes[id] = code
		sl.mu.Unlock()
	case types.QuantizationRaBitQ:
		code, err := sl.rabitQ.Encode(v)
		if err != nil {
			return
		}
		sl.mu.Lock()
		sl.rCodes[id] = code
		sl.mu.Unlock()
	}
}

// Delete soft-removes pk's vector: the HNSW node is tombstoned, never
// physically removed (spec.md's Open Question (a) resolution).
func (s *Store) Delete(table, column string, pk int64) error {
	const op = "vectorstore.Store.Delete"
	sl, err := s.get(table, column)
	if err != nil {
		return err
	}
	sl.mu.RLock()
	id, ok := sl.nodeByPK[pk]
	sl.mu.RUnlock()
	if !ok {
		return errs.NewNotFound(op, nil)
	}
	return sl.index.MarkDeleted(id)
}

// VisibilityFunc reports whether the row with this primary key is
// visible to the querying transaction's snapshot -- the MVCC filter
// Search applies to every candidate before counting it toward k
// (spec.md's Open Question (a) resolution: "vectorstore filters search
// results by the row's MVCC visibility at query time").
type VisibilityFunc func(pk int64) bool

// Search runs approximate k-NN on table.column. With no quantizer
// configured it beam-searches the HNSW graph directly; with one
// configured it instead ranks every indexed vector by its cheap
// quantized distance and reranks the top k*expansionFactor of those with
// full-precision distance (spec.md §2's vector k-NN data flow:
// "quantized search (ef candidates) -> rerank with full-precision
// distances"). Either way expansionFactor extra candidates absorb
// MVCC-invisible rows filtered out of the result without a second pass.
func (s *Store) Search(table, column string, query []float32, k int, expansionFactor int, visible VisibilityFunc) ([]Hit, error) {
	const op = "vectorstore.Store.Search"
	sl, err := s.get(table, column)
	if err != nil {
		return nil, err
	}
	if len(query) != sl.dim {
		return nil, errs.Newf(errs.BadInput, op, "query has %d dims, want %d", len(query), sl.dim)
	}
	if expansionFactor <= 0 {
		expansionFactor = 1
	}
	ef := k * expansionFactor

	var candidates []hnsw.Result
	if sl.quantizer == types.QuantizationNone {
		candidates, err = sl.index.Search(query, ef, ef)
		if err != nil {
			return nil, err
		}
	} else {
		candidates, err = sl.quantizedSearch(query, ef)
		if err != nil {
			return nil, err
		}
	}

	hits := make([]Hit, 0, k)
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	for _, c := range candidates {
		pk := sl.pkByNode[c.ID]
		if visible != nil && !visible(pk) {
			continue
		}
		hits = append(hits, Hit{PK: pk, Distance: c.Distance})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// quantizedSearch ranks every vector by quantized distance to query,
// takes the ef closest, and reranks them with full-precision L2 --
// a brute-force scan rather than a graph traversal, since the indexed
// quantized codes aren't wired into hnsw.Index's own beam search.
func (sl *slab) quantizedSearch(query []float32, ef int) ([]hnsw.Result, error) {
	const op = "vectorstore.slab.quantizedSearch"
	sl.mu.RLock()
	n := len(sl.vectors)
	sl.mu.RUnlock()
	if n == 0 {
		return nil, nil
	}

	ranked := make([]scoredNode, 0, n)

	switch sl.quantizer {
	case types.QuantizationBinary:
		qCode, err := sl.binaryQ.Encode(query)
		if err != nil {
			return nil, err
		}
		sl.mu.RLock()
		for id, code := range sl.codes {
			if sl.index.IsDeleted(id) {
				continue
			}
			ranked = append(ranked, scoredNode{id: id, dist: float32(quant.Hamming(qCode, code))})
		}
		sl.mu.RUnlock()
	case types.QuantizationRaBitQ:
		qCode, err := sl.rabitQ.Encode(query)
		if err != nil {
			return nil, err
		}
		sl.mu.RLock()
		for id, code := range sl.rCodes {
			if sl.index.IsDeleted(id) {
				continue
			}
			ranked = append(ranked, scoredNode{id: id, dist: quant.ApproxL2Squared(qCode, code)})
		}
		sl.mu.RUnlock()
	default:
		return nil, errs.Newf(errs.BadInput, op, "unknown quantization kind %q", sl.quantizer)
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })
	if len(ranked) > ef {
		ranked = ranked[:ef]
	}

	candidates := make([]quant.Candidate, len(ranked))
	sl.mu.RLock()
	for i, r := range ranked {
		candidates[i] = quant.Candidate{ID: r.id, Vector: sl.vectors[r.id]}
	}
	sl.mu.RUnlock()

	reranked := quant.Rerank(query, candidates, len(candidates), simd.L2Squared)
	out := make([]hnsw.Result, len(reranked))
	for i, c := range reranked {
		out[i] = hnsw.Result{ID: c.ID, Distance: c.Distance}
	}
	return out, nil
}

// scoredNode pairs a node id with its distance during a quantized scan.
type scoredNode struct {
	id   uint32
	dist float32
}

// Hit is one k-NN search result, identified by the row primary key that
// owns the matched vector.
type Hit struct {
	PK       int64
	Distance float32
}

// Save persists every registered index to dir, one graph file plus one
// vector/mapping file per (table, column) (spec.md §5: "vectors/<table>_<column>.hnsw.graph").
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, sl := range s.slabs {
		if err := sl.save(dir); err != nil {
			return fmt.Errorf("saving vector index %s: %w", k, err)
		}
	}
	return nil
}

// Indexes lists the (table, column) pairs with a registered vector
// index, used by the catalog to know what to Load on startup.
func (s *Store) Indexes() []TableColumn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TableColumn, 0, len(s.slabs))
	for _, sl := range s.slabs {
		out = append(out, TableColumn{Table: sl.table, Column: sl.column})
	}
	return out
}

// TableColumn names one vector-indexed column.
type TableColumn struct {
	Table, Column string
}

// Len reports how many vectors (including soft-deleted ones) are
// indexed on table.column.
func (s *Store) Len(table, column string) (int, error) {
	sl, err := s.get(table, column)
	if err != nil {
		return 0, err
	}
	return sl.index.Len(), nil
}
