/*
Package hnsw implements the vector core of spec.md §4.7: a hierarchical
navigable small-world graph over dense, index-addressed u32 node ids.

# Layout

	Index
	 ├─ nodes      []Node            contiguous, index-addressed, one 64-byte record per id
	 ├─ neighbors  *NeighborLists    per (node, level) adjacency, flattened on Save
	 └─ vectors    VectorSource      external: Index never owns raw vector data

	Node{ID, Level, NumNbrs[16], Deleted, padding}  <-- one cache line

# Insert (spec.md §4.7 steps 1-4)

	sample level ~ floor(-ln(U(0,1)) / ln(M))
	greedy-descend from entry point through layers > level  -> one candidate
	for each layer min(level,maxLevel)..0:
	    beam-search(ef_construction) -> candidates
	    selectNeighborsHeuristic -> <= M diversified neighbors
	    connect bidirectionally, pruning the far side back to M_max if needed
	level > maxLevel -> this node becomes the new entry point

# Search

	greedy-descend layers maxLevel..1 -> one candidate
	beam-search(ef) at layer 0 -> top candidates, nearest first
	soft-deleted nodes are traversed but filtered out of results

# Bidirectionality invariant

Every edge a->b at level l implies b->a at level l exists (spec.md §6,
invariant 6) -- connect() always writes both directions in the same
call, including through a prune.

# Serialization

Save/Load round-trip the full graph: magic, version, dim, num_nodes,
max_level, params, raw Node records, then each node's neighbor ids
flattened per level. Reorder does a one-shot BFS renumbering from the
entry point so that neighbors visited together are more likely to share
a cache line; callers must remap their own external id -> node id tables
using the returned old->new mapping.

# Usage

	idx, err := hnsw.NewIndex(hnsw.Params{Dim: 768, M: 32, EfConstruction: 200}, vectorSource)
	err = idx.Insert(id, vec)
	results, err := idx.Search(query, 10, 100)
*/
package hnsw
