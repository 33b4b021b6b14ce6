package storage

import (
	"bytes"
	"math"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/omendb/omendb/pkg/config"
	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/types"
)

// tombstoneByte is prefixed to every stored value so Get/Range can
// distinguish a deletion marker from a zero-length row payload without
// a second lookup.
const (
	liveByte      byte = 0
	tombstoneByte byte = 1
)

// BadgerStore implements KVStore on top of a badger/v4 LSM tree.
// Unlike badger's own MVCC (which versions by internal commit
// timestamp), every row version here is an explicit, distinct key --
// see keys.go -- so ordinary badger.Txn writes never conflict with
// each other; first-committer-wins conflict detection is pkg/txn's job.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a KVStore rooted at dataDir/kv,
// tuned by cfg.
func NewBadgerStore(dataDir string, cfg config.KVConfig) (*BadgerStore, error) {
	const op = "storage.NewBadgerStore"
	path := filepath.Join(dataDir, "kv")

	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.WARNING).
		WithBlockCacheSize(int64(cfg.BlockCacheMB) << 20).
		WithIndexCacheSize(int64(cfg.IndexCacheMB) << 20).
		WithBlockSize(cfg.BlockSizeKB << 10).
		WithMemTableSize(int64(cfg.WriteBufferMB) << 20).
		WithNumCompactors(cfg.NumCompactors).
		WithBloomFalsePositive(bloomFalsePositiveRate(cfg.BloomBitsPerKey))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.NewStorageIo(op, err)
	}
	return &BadgerStore{db: db}, nil
}

// bloomFalsePositiveRate converts a bits-per-key budget to the false
// positive rate badger's bloom filter option expects, using the
// standard bound fp ≈ (0.6185)^(bits/key).
func bloomFalsePositiveRate(bitsPerKey int) float64 {
	if bitsPerKey <= 0 {
		return 0.01
	}
	return math.Pow(0.6185, float64(bitsPerKey))
}

func encodeValue(value []byte, tombstone bool) []byte {
	marker := liveByte
	if tombstone {
		marker = tombstoneByte
	}
	buf := make([]byte, 1+len(value))
	buf[0] = marker
	copy(buf[1:], value)
	return buf
}

func decodeValue(raw []byte) (value []byte, tombstone bool) {
	if len(raw) == 0 {
		return nil, false
	}
	return raw[1:], raw[0] == tombstoneByte
}

func (s *BadgerStore) Put(tableID types.TableID, pk int64, commitTS uint64, value []byte, tombstone bool) error {
	const op = "storage.BadgerStore.Put"
	key := EncodeKey(tableID, pk, commitTS)
	entry := badger.NewEntry(key, encodeValue(value, tombstone))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return errs.NewStorageIo(op, err)
	}
	return nil
}

func (s *BadgerStore) Get(tableID types.TableID, pk int64, maxCommitTS uint64) (value []byte, commitTS uint64, tombstone, found bool, err error) {
	const op = "storage.BadgerStore.Get"
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	value, commitTS, tombstone, found, err = getVersion(txn, tableID, pk, maxCommitTS)
	if err != nil {
		err = errs.NewStorageIo(op, err)
	}
	return
}

func (s *BadgerStore) Range(tableID types.TableID, startPK int64, endPK *int64, fn VisitFunc) error {
	const op = "storage.BadgerStore.Range"
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	if err := rangeVersions(txn, tableID, startPK, endPK, fn); err != nil {
		return errs.NewStorageIo(op, err)
	}
	return nil
}

func (s *BadgerStore) Snapshot() (Snapshot, error) {
	return &badgerSnapshot{txn: s.db.NewTransaction(false)}, nil
}

func (s *BadgerStore) Flush() error {
	const op = "storage.BadgerStore.Flush"
	if err := s.db.Sync(); err != nil {
		return errs.NewStorageIo(op, err)
	}
	return nil
}

func (s *BadgerStore) Compact() error {
	const op = "storage.BadgerStore.Compact"
	if err := s.db.Flatten(1); err != nil {
		return errs.NewStorageIo(op, err)
	}
	err := s.db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return errs.NewStorageIo(op, err)
	}
	return nil
}

// GCVersions scans the entire keyspace in row-prefix order and deletes
// every version of a row shadowed by a newer version already older
// than oldestActiveReadTS, per pkg/txn's GC sweep (spec.md §4.6).
func (s *BadgerStore) GCVersions(oldestActiveReadTS uint64) (removed int, err error) {
	const op = "storage.BadgerStore.GCVersions"

	var toDelete [][]byte
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var curPrefix []byte
		keptBoundary := false
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			prefix := key[:prefixSize]
			if curPrefix == nil || !bytes.Equal(prefix, curPrefix) {
				curPrefix = append([]byte(nil), prefix...)
				keptBoundary = false
			}
			_, _, cts := DecodeKey(key)
			if cts >= oldestActiveReadTS {
				continue
			}
			if !keptBoundary {
				keptBoundary = true
				continue
			}
			toDelete = append(toDelete, key)
		}
		return nil
	})
	if err != nil {
		return 0, errs.NewStorageIo(op, err)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range toDelete {
		if err := wb.Delete(k); err != nil {
			return 0, errs.NewStorageIo(op, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, errs.NewStorageIo(op, err)
	}
	return len(toDelete), nil
}

func (s *BadgerStore) DiskBytes() (int64, error) {
	lsm, vlog := s.db.Size()
	return lsm + vlog, nil
}

func (s *BadgerStore) Close() error {
	const op = "storage.BadgerStore.Close"
	if err := s.db.Close(); err != nil {
		return errs.NewStorageIo(op, err)
	}
	return nil
}

// badgerSnapshot implements Snapshot over one long-lived read-only
// badger.Txn, giving a transaction a consistent view of the KVStore
// for its entire lifetime.
type badgerSnapshot struct {
	txn *badger.Txn
}

func (sn *badgerSnapshot) Get(tableID types.TableID, pk int64, maxCommitTS uint64) ([]byte, uint64, bool, bool, error) {
	return getVersion(sn.txn, tableID, pk, maxCommitTS)
}

func (sn *badgerSnapshot) Range(tableID types.TableID, startPK int64, endPK *int64, fn VisitFunc) error {
	return rangeVersions(sn.txn, tableID, startPK, endPK, fn)
}

func (sn *badgerSnapshot) Close() {
	sn.txn.Discard()
}

// getVersion walks a single PK's version chain, newest-first, and
// returns the first version whose commitTS <= maxCommitTS.
func getVersion(txn *badger.Txn, tableID types.TableID, pk int64, maxCommitTS uint64) (value []byte, commitTS uint64, tombstone, found bool, err error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := EncodeRowPrefix(tableID, pk)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		_, cts, err2 := decodeKeyCopy(item)
		if err2 != nil {
			return nil, 0, false, false, err2
		}
		if cts > maxCommitTS {
			continue
		}
		raw, err2 := item.ValueCopy(nil)
		if err2 != nil {
			return nil, 0, false, false, err2
		}
		v, ts := decodeValue(raw)
		return v, cts, ts, true, nil
	}
	return nil, 0, false, false, nil
}

func rangeVersions(txn *badger.Txn, tableID types.TableID, startPK int64, endPK *int64, fn VisitFunc) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	tablePrefix := EncodeTablePrefix(tableID)
	startKey := EncodeRowPrefix(tableID, startPK)
	for it.Seek(startKey); it.ValidForPrefix(tablePrefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		_, pk, cts := DecodeKey(key)
		if endPK != nil && pk >= *endPK {
			break
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		v, tombstone := decodeValue(raw)
		cont, err := fn(pk, cts, v, tombstone)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

func decodeKeyCopy(item *badger.Item) (types.TableID, uint64, error) {
	key := item.KeyCopy(nil)
	tableID, _, commitTS := DecodeKey(key)
	return tableID, commitTS, nil
}
