package hnsw

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/omendb/omendb/pkg/errs"
)

// magic and formatVersion identify the on-disk graph file format (spec.md
// §5, "File format invariants"): 8-byte magic + u32 version + u32
// dimensions + u32 num_nodes + u8 max_level + parameter block, followed
// by raw node records and flattened neighbor-list data.
var magic = [8]byte{'O', 'M', 'E', 'N', 'H', 'N', 'S', 'W'}

const formatVersion uint32 = 1

// Save writes the graph to path in the format described above. Nodes are
// written in id order; then, for each node and each of its levels, a
// u32 neighbor count followed by that many u32 ids, rebuilt into
// NeighborLists.perNode on Load.
func (idx *Index) Save(path string) error {
	const op = "hnsw.Index.Save"
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return errs.NewStorageIo(op, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := idx.writeTo(w); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := w.Flush(); err != nil {
		return errs.NewStorageIo(op, err)
	}
	return nil
}

func (idx *Index) writeTo(w io.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	hdr := []uint32{formatVersion, uint32(idx.params.Dim), uint32(len(idx.nodes))}
	for _, v := range hdr {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(idx.maxLevel)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(idx.params.M)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.params.EfConstruction)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.params.EfSearch)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, idx.hasEntry); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, idx.entryPoint); err != nil {
		return err
	}

	for i := range idx.nodes {
		if err := binary.Write(w, binary.LittleEndian, idx.nodes[i]); err != nil {
			return err
		}
	}

	for id := range idx.nodes {
		for l := 0; l <= int(idx.nodes[id].Level); l++ {
			nbrs := idx.neighbors.get(uint32(id), l)
			if err := binary.Write(w, binary.LittleEndian, uint32(len(nbrs))); err != nil {
				return err
			}
			for _, n := range nbrs {
				if err := binary.Write(w, binary.LittleEndian, n); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Load replaces idx's graph with the contents of path. vectors must
// already supply every vector id the loaded graph references -- Load
// never touches vector storage itself.
func (idx *Index) Load(path string) error {
	const op = "hnsw.Index.Load"
	f, err := os.Open(path)
	if err != nil {
		return errs.NewStorageIo(op, err)
	}
	defer f.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.readFrom(bufio.NewReader(f)); err != nil {
		return err
	}
	return nil
}

func (idx *Index) readFrom(r io.Reader) error {
	const op = "hnsw.Index.Load"
	var gotMagic [8]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if gotMagic != magic {
		return errs.Newf(errs.Corrupted, op, "bad magic %x", gotMagic)
	}
	var version, dim, numNodes uint32
	for _, p := range []*uint32{&version, &dim, &numNodes} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return errs.NewStorageIo(op, err)
		}
	}
	if version != formatVersion {
		return errs.Newf(errs.Corrupted, op, "unsupported graph format version %d, want %d", version, formatVersion)
	}
	if int(dim) != idx.params.Dim {
		return errs.Newf(errs.Corrupted, op, "graph file has dim %d, index configured for %d", dim, idx.params.Dim)
	}

	var maxLevel, m uint8
	var efConstruction, efSearch uint32
	var hasEntry bool
	var entryPoint uint32
	if err := binary.Read(r, binary.LittleEndian, &maxLevel); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &efConstruction); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &efSearch); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hasEntry); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &entryPoint); err != nil {
		return errs.NewStorageIo(op, err)
	}

	nodes := make([]Node, numNodes)
	for i := range nodes {
		if err := binary.Read(r, binary.LittleEndian, &nodes[i]); err != nil {
			return errs.NewStorageIo(op, err)
		}
	}

	neighbors := newNeighborLists()
	for id := range nodes {
		neighbors.ensure(uint32(id))
		for l := 0; l <= int(nodes[id].Level); l++ {
			var count uint32
			if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
				return errs.NewStorageIo(op, err)
			}
			nbrs := make([]uint32, count)
			for i := range nbrs {
				if err := binary.Read(r, binary.LittleEndian, &nbrs[i]); err != nil {
					return errs.NewStorageIo(op, err)
				}
			}
			neighbors.set(uint32(id), l, nbrs)
		}
	}

	idx.maxLevel = int(maxLevel)
	idx.params.M = int(m)
	idx.params.EfConstruction = int(efConstruction)
	idx.params.EfSearch = int(efSearch)
	idx.hasEntry = hasEntry
	idx.entryPoint = entryPoint
	idx.nodes = nodes
	idx.neighbors = neighbors
	return nil
}

// Reorder renumbers every node by a one-shot BFS from the entry point
// (spec.md §4.7: "Optional one-shot BFS reordering from the entry point
// assigns new node IDs so that neighbors are likely to share cache
// lines"). The returned mapping must be applied by the caller to its own vector
// storage and any external id mapping; Reorder only touches the graph's
// internal ids. Returns the old->new id mapping.
func (idx *Index) Reorder() ([]uint32, error) {
	const op = "hnsw.Index.Reorder"
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := len(idx.nodes)
	if n == 0 {
		return nil, nil
	}
	if !idx.hasEntry {
		return nil, errs.Newf(errs.BadInput, op, "index has no entry point")
	}

	oldToNew := make([]uint32, n)
	for i := range oldToNew {
		oldToNew[i] = ^uint32(0)
	}
	order := make([]uint32, 0, n)
	queue := []uint32{idx.entryPoint}
	visited := make([]bool, n)
	visited[idx.entryPoint] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		oldToNew[cur] = uint32(len(order))
		order = append(order, cur)
		for l := 0; l <= int(idx.nodes[cur].Level); l++ {
			for _, nbr := range idx.neighbors.get(cur, l) {
				if !visited[nbr] {
					visited[nbr] = true
					queue = append(queue, nbr)
				}
			}
		}
	}
	// Any node unreachable from the entry point (shouldn't happen in a
	// connected graph, but Search must never panic on index-out-of-range)
	// keeps its relative order appended at the end.
	for old := 0; old < n; old++ {
		if oldToNew[old] == ^uint32(0) {
			oldToNew[old] = uint32(len(order))
			order = append(order, uint32(old))
		}
	}

	newNodes := make([]Node, n)
	newNeighbors := newNeighborLists()
	for newID, oldID := range order {
		node := idx.nodes[oldID]
		node.ID = uint32(newID)
		newNodes[newID] = node
		for l := 0; l <= int(node.Level); l++ {
			nbrs := idx.neighbors.get(oldID, l)
			remapped := make([]uint32, len(nbrs))
			for i, nbr := range nbrs {
				remapped[i] = oldToNew[nbr]
			}
			newNeighbors.set(uint32(newID), l, remapped)
		}
	}

	idx.nodes = newNodes
	idx.neighbors = newNeighbors
	idx.entryPoint = oldToNew[idx.entryPoint]
	return oldToNew, nil
}
