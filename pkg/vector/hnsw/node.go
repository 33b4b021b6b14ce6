package hnsw

// MaxLevels bounds how many layers a single node can participate in.
// spec.md's level-assignment formula (-ln(U(0,1))*mL) has unbounded
// support in theory but vanishing probability mass above a handful of
// layers for any M actually used in practice; capping here keeps
// Node's per-level neighbor-count array a fixed, cache-line-sized
// field instead of a slice.
const MaxLevels = 16

// Node is the cache-line-aligned per-vector record spec.md §4.7
// describes: "id: u32, level: u8, per-level neighbor counts [u8;
// MAX_LEVELS], padding". id equals the node's position in Index.nodes
// (index-addressed, not pointer-addressed), so Node itself never points
// at another Node -- only NeighborLists does, by id.
type Node struct {
	ID      uint32
	Level   uint8
	NumNbrs [MaxLevels]uint8
	Deleted bool
	_       [42]byte // pad to 64 bytes so a Node occupies exactly one cache line
}

// Deleted nodes are soft-tombstoned rather than physically removed
// (spec.md §9 Open Question (a): "soft-filter only, no HNSW graph GC" --
// see SPEC_FULL.md's resolution). Neighbor lists still reference their
// id; Search filters them out of results but still traverses through
// them, since removing a node's edges entirely would disconnect the
// graph around it.

// VectorSource is the minimal read-only surface Index needs to fetch a
// node's vector without owning vector storage itself. VectorStore
// (pkg/vectorstore) implements this by indexing into its own dense
// []float32 slab; tests implement it directly with a map.
type VectorSource interface {
	Vector(id uint32) []float32
}
