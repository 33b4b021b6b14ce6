package vectorstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/omendb/omendb/pkg/errs"
)

// graphFileName and vecFileName follow spec.md §5's naming:
// "vectors/<table>_<column>.hnsw.graph" for the HNSW graph, plus a
// sibling file for the pk<->vector mapping the graph alone doesn't
// carry.
func graphFileName(table, column string) string {
	return fmt.Sprintf("%s_%s.hnsw.graph", table, column)
}

func vecFileName(table, column string) string {
	return fmt.Sprintf("%s_%s.hnsw.vecs", table, column)
}

var vecMagic = [4]byte{'O', 'V', 'E', 'C'}

func (sl *slab) save(dir string) error {
	const op = "vectorstore.slab.save"
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if err := sl.writeVectors(filepath.Join(dir, vecFileName(sl.table, sl.column))); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := sl.index.Save(filepath.Join(dir, graphFileName(sl.table, sl.column))); err != nil {
		return err
	}
	return nil
}

func (sl *slab) writeVectors(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if _, err := w.Write(vecMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sl.dim)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(sl.vectors))); err != nil {
		return err
	}
	for id, v := range sl.vectors {
		if err := binary.Write(w, binary.LittleEndian, sl.pkByNode[id]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Load restores the index previously registered on table.column via
// CreateIndex (dim/params must already match) from the graph+vector
// files under dir.
func (s *Store) Load(table, column, dir string) error {
	sl, err := s.get(table, column)
	if err != nil {
		return err
	}
	return sl.load(dir)
}

func (sl *slab) load(dir string) error {
	const op = "vectorstore.slab.load"
	if err := sl.readVectors(filepath.Join(dir, vecFileName(sl.table, sl.column))); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := sl.index.Load(filepath.Join(dir, graphFileName(sl.table, sl.column))); err != nil {
		return err
	}
	sl.mu.RLock()
	vectors := append([][]float32(nil), sl.vectors...)
	sl.mu.RUnlock()
	for id, v := range vectors {
		sl.quantize(uint32(id), v)
	}
	return nil
}

func (sl *slab) readVectors(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return err
	}
	if gotMagic != vecMagic {
		return errs.NewCorrupted("vectorstore.slab.readVectors", fmt.Errorf("bad magic %x", gotMagic))
	}
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	if int(dim) != sl.dim {
		return errs.Newf(errs.Corrupted, "vectorstore.slab.readVectors", "file has dim %d, index configured for %d", dim, sl.dim)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.vectors = make([][]float32, count)
	sl.pkByNode = make([]int64, count)
	sl.nodeByPK = make(map[int64]uint32, count)
	for id := uint32(0); id < count; id++ {
		var pk int64
		if err := binary.Read(r, binary.LittleEndian, &pk); err != nil {
			return err
		}
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return err
		}
		sl.vectors[id] = v
		sl.pkByNode[id] = pk
		sl.nodeByPK[pk] = id
	}
	return nil
}
