/*
Package vectorstore implements VectorStore (spec.md §3, §4.7): one
hnsw.Index per (table, column) vector column, plus the dense vector
storage and pk<->node id mapping the graph itself doesn't know about.

	Store
	 └─ slabs["table.column"] -> slab
	      ├─ vectors  [][]float32   node id -> full-precision vector (implements hnsw.VectorSource)
	      ├─ pkByNode []int64       node id -> row primary key
	      ├─ nodeByPK map           row primary key -> node id
	      ├─ index    *hnsw.Index
	      └─ codes/rCodes           optional quantized codes, by quantizer kind

# MVCC integration

VectorStore itself knows nothing about transactions or read timestamps.
Search takes a VisibilityFunc the caller (pkg/db) builds from the active
transaction's snapshot; candidates failing it are dropped from the
result without affecting graph traversal -- this is the "soft-filter
only" resolution to spec.md §9 Open Question (a). A vector write goes
through Insert/Delete at the same point in the write path as any other
column, so it rides the transaction's normal write-write conflict check
(Open Question (b)).

# Quantized search

A column created with Quantization != None gets its Search routed
through a brute-force quantized scan instead of the HNSW graph: every
indexed vector's cached code is ranked against the query by
quant.Hamming or quant.ApproxL2Squared, the closest ef survive, and
quant.Rerank recomputes them at full precision before the visibility
filter runs. The HNSW graph itself always stores and searches the
full-precision vector (hnsw.Index has no notion of a quantized
metric); quantization here trades graph traversal for a cheaper
candidate-generation pass over the whole column.

# Persistence

Save/Load write/read two files per index: `<table>_<column>.hnsw.vecs`
(pk<->vector mapping, this package's own format) and
`<table>_<column>.hnsw.graph` (the HNSW graph, hnsw.Index's own format).

# Usage

	vs := vectorstore.NewStore()
	err := vs.CreateIndex("docs", "embedding", types.DefaultVectorIndexParams(768))
	err = vs.Insert("docs", "embedding", pk, vec)
	hits, err := vs.Search("docs", "embedding", query, 10, 200, visibleFn)
*/
package vectorstore
