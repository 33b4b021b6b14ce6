package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/omendb/omendb/pkg/config"
	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/log"
	"github.com/omendb/omendb/pkg/metrics"
)

var (
	bucketSegments = []byte("segments")
	bucketMeta     = []byte("meta")

	keyNextSeq       = []byte("next_seq")
	keyCheckpointSeq = []byte("checkpoint_seq")
)

// segmentMeta describes one WAL segment file. It is persisted in the
// bbolt-backed meta store rather than derived from the filesystem, so
// replay and checkpoint truncation never need to sniff file contents
// to know segment boundaries.
type segmentMeta struct {
	StartSeq uint64
	EndSeq   uint64
	Path     string
	Sealed   bool
}

// WAL is OmenDB's durable, append-only write-ahead log. Every record
// gets a monotonically increasing sequence number; segments rotate at
// cfg.SegmentSizeBytes, and a checkpoint lets old, fully-applied
// segments be reclaimed. Segment bookkeeping lives in a small
// go.etcd.io/bbolt database alongside the segment files themselves.
type WAL struct {
	dir          string
	segSizeBytes int64
	syncOnCommit bool

	meta *bolt.DB

	mu      sync.Mutex
	curFile *os.File
	curBuf  *bufio.Writer
	curMeta segmentMeta
	nextSeq uint64
}

// Open opens (or creates) the WAL rooted at dataDir/wal.
func Open(dataDir string, cfg config.WALConfig) (*WAL, error) {
	const op = "wal.Open"
	dir := filepath.Join(dataDir, "wal")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.NewStorageIo(op, err)
	}

	meta, err := bolt.Open(filepath.Join(dir, "meta.db"), 0o600, nil)
	if err != nil {
		return nil, errs.NewStorageIo(op, err)
	}

	w := &WAL{
		dir:          dir,
		segSizeBytes: cfg.SegmentSizeBytes,
		syncOnCommit: cfg.SyncOnCommit,
		meta:         meta,
		nextSeq:      1,
	}

	var resumeSeg *segmentMeta
	err = meta.Update(func(tx *bolt.Tx) error {
		segBucket, err := tx.CreateBucketIfNotExists(bucketSegments)
		if err != nil {
			return err
		}
		metaBucket, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if v := metaBucket.Get(keyNextSeq); v != nil {
			w.nextSeq = binary.BigEndian.Uint64(v)
		}
		return segBucket.ForEach(func(k, v []byte) error {
			var sm segmentMeta
			if err := json.Unmarshal(v, &sm); err != nil {
				return err
			}
			if !sm.Sealed {
				resumeSeg = &sm
			}
			return nil
		})
	})
	if err != nil {
		meta.Close()
		return nil, errs.NewStorageIo(op, err)
	}

	if resumeSeg != nil {
		if err := w.resumeSegment(*resumeSeg); err != nil {
			meta.Close()
			return nil, errs.NewStorageIo(op, err)
		}
	} else if err := w.rotate(); err != nil {
		meta.Close()
		return nil, errs.NewStorageIo(op, err)
	}

	return w, nil
}

func (w *WAL) resumeSegment(sm segmentMeta) error {
	f, err := os.OpenFile(sm.Path, os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	w.curFile = f
	w.curBuf = bufio.NewWriter(f)
	w.curMeta = sm
	return nil
}

// rotate seals the current segment (if any) and opens a new one
// starting at nextSeq.
func (w *WAL) rotate() error {
	if w.curFile != nil {
		if err := w.sealCurrent(); err != nil {
			return err
		}
	}

	path := filepath.Join(w.dir, fmt.Sprintf("seg-%020d.log", w.nextSeq))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	sm := segmentMeta{StartSeq: w.nextSeq, EndSeq: w.nextSeq - 1, Path: path}
	if err := w.putSegmentMeta(sm); err != nil {
		f.Close()
		return err
	}

	w.curFile = f
	w.curBuf = bufio.NewWriter(f)
	w.curMeta = sm
	return nil
}

func (w *WAL) sealCurrent() error {
	if err := w.curBuf.Flush(); err != nil {
		return err
	}
	if err := w.curFile.Close(); err != nil {
		return err
	}
	w.curMeta.Sealed = true
	return w.putSegmentMeta(w.curMeta)
}

func (w *WAL) putSegmentMeta(sm segmentMeta) error {
	data, err := json.Marshal(sm)
	if err != nil {
		return err
	}
	return w.meta.Update(func(tx *bolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, sm.StartSeq)
		return tx.Bucket(bucketSegments).Put(key, data)
	})
}

// Append durably records r and returns its assigned sequence number.
func (w *WAL) Append(r Record) (uint64, error) {
	const op = "wal.Append"
	timer := metrics.NewTimer()
	w.mu.Lock()
	defer w.mu.Unlock()

	encoded := Encode(r)
	if w.segmentSize()+int64(len(encoded)) > w.segSizeBytes && w.curMeta.EndSeq >= w.curMeta.StartSeq {
		if err := w.rotate(); err != nil {
			return 0, errs.NewStorageIo(op, err)
		}
	}

	seq := w.nextSeq
	if _, err := w.curBuf.Write(encoded); err != nil {
		return 0, errs.NewStorageIo(op, err)
	}
	if err := w.curBuf.Flush(); err != nil {
		return 0, errs.NewStorageIo(op, err)
	}
	if w.syncOnCommit {
		if err := w.curFile.Sync(); err != nil {
			return 0, errs.NewStorageIo(op, err)
		}
	}

	w.curMeta.EndSeq = seq
	if err := w.putSegmentMeta(w.curMeta); err != nil {
		return 0, errs.NewStorageIo(op, err)
	}

	w.nextSeq++
	if err := w.putNextSeq(); err != nil {
		return 0, errs.NewStorageIo(op, err)
	}

	metrics.WALAppendsTotal.Inc()
	timer.ObserveDuration(metrics.WALAppendDuration)
	return seq, nil
}

func (w *WAL) segmentSize() int64 {
	info, err := w.curFile.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (w *WAL) putNextSeq() error {
	return w.meta.Update(func(tx *bolt.Tx) error {
		v := make([]byte, 8)
		binary.BigEndian.PutUint64(v, w.nextSeq)
		return tx.Bucket(bucketMeta).Put(keyNextSeq, v)
	})
}

// Replay calls fn for every record after the last checkpoint, in
// sequence order. A CRC mismatch on the final record of a segment is
// treated as a torn tail from an unclean shutdown: replay stops at
// that point instead of failing, on the assumption the interrupted
// write never reached a commit record and so never became visible.
func (w *WAL) Replay(fn func(seq uint64, r Record) error) error {
	const op = "wal.Replay"
	segments, checkpointSeq, err := w.listSegments()
	if err != nil {
		return errs.NewStorageIo(op, err)
	}

	logger := log.WithComponent("wal")
	for _, sm := range segments {
		if sm.EndSeq < checkpointSeq && sm.EndSeq != 0 {
			continue
		}
		if err := replaySegment(sm, checkpointSeq, fn, logger); err != nil {
			return err
		}
	}
	return nil
}

func replaySegment(sm segmentMeta, checkpointSeq uint64, fn func(uint64, Record) error, logger zerolog.Logger) error {
	f, err := os.Open(sm.Path)
	if err != nil {
		return errs.NewStorageIo("wal.Replay", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	seq := sm.StartSeq
	for {
		lenBuf := make([]byte, lengthFieldSize)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			if err == io.EOF {
				return nil
			}
			return nil // short read at tail: torn write, stop here
		}
		bodyLen := binary.BigEndian.Uint32(lenBuf)
		rest := make([]byte, int(bodyLen)+crcFieldSize)
		if _, err := io.ReadFull(r, rest); err != nil {
			logger.Warn().Msg("wal: torn record at tail of segment, stopping replay here")
			return nil
		}

		raw := append(lenBuf, rest...)
		rec, err := Decode(raw)
		if err != nil {
			if _, peekErr := r.Peek(1); peekErr == io.EOF {
				logger.Warn().Msg("wal: corrupt record at tail of segment, stopping replay here")
				return nil
			}
			return err
		}

		if seq > checkpointSeq {
			if err := fn(seq, rec); err != nil {
				return err
			}
		}
		seq++
	}
}

func (w *WAL) listSegments() ([]segmentMeta, uint64, error) {
	var segments []segmentMeta
	var checkpointSeq uint64
	err := w.meta.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyCheckpointSeq); v != nil {
			checkpointSeq = binary.BigEndian.Uint64(v)
		}
		return tx.Bucket(bucketSegments).ForEach(func(k, v []byte) error {
			var sm segmentMeta
			if err := json.Unmarshal(v, &sm); err != nil {
				return err
			}
			segments = append(segments, sm)
			return nil
		})
	})
	return segments, checkpointSeq, err
}

// Checkpoint records the highest sequence number that is safe to
// replay past (the caller -- pkg/db's Checkpoint -- flushes the
// KVStore first, so everything up to upToSeq is durable there), then
// reclaims any fully-sealed segment whose every record is now covered.
func (w *WAL) Checkpoint(upToSeq uint64) (reclaimed int, err error) {
	const op = "wal.Checkpoint"
	if _, err := w.Append(Record{Type: RecordCheckpoint}); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.meta.Update(func(tx *bolt.Tx) error {
		v := make([]byte, 8)
		binary.BigEndian.PutUint64(v, upToSeq)
		return tx.Bucket(bucketMeta).Put(keyCheckpointSeq, v)
	}); err != nil {
		return 0, errs.NewStorageIo(op, err)
	}

	segments, _, err := w.listSegments()
	if err != nil {
		return 0, errs.NewStorageIo(op, err)
	}

	for _, sm := range segments {
		if !sm.Sealed || sm.EndSeq == 0 || sm.EndSeq > upToSeq || sm.Path == w.curMeta.Path {
			continue
		}
		if err := os.Remove(sm.Path); err != nil && !os.IsNotExist(err) {
			return reclaimed, errs.NewStorageIo(op, err)
		}
		if err := w.meta.Update(func(tx *bolt.Tx) error {
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, sm.StartSeq)
			return tx.Bucket(bucketSegments).Delete(key)
		}); err != nil {
			return reclaimed, errs.NewStorageIo(op, err)
		}
		reclaimed++
	}

	metrics.WALTruncationsTotal.Add(float64(reclaimed))
	return reclaimed, nil
}

// LastSequence returns the sequence number of the most recently
// appended record, for callers (pkg/db's Checkpoint) that need to
// checkpoint up through everything durable as of now.
func (w *WAL) LastSequence() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextSeq - 1
}

// SegmentCount reports the current number of live (not yet reclaimed)
// WAL segment files.
func (w *WAL) SegmentCount() int {
	segments, _, err := w.listSegments()
	if err != nil {
		return 0
	}
	return len(segments)
}

// Close flushes and closes the active segment and the meta store.
func (w *WAL) Close() error {
	const op = "wal.Close"
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.sealCurrent(); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := w.meta.Close(); err != nil {
		return errs.NewStorageIo(op, err)
	}
	return nil
}
