package storage

import (
	"github.com/omendb/omendb/pkg/types"
)

// VisitFunc is called once per row version found by Range, in
// ascending PK order and newest-version-first within a PK. Returning
// false stops the scan early.
type VisitFunc func(pk int64, commitTS uint64, value []byte, tombstone bool) (cont bool, err error)

// KVStore is the LSM-backed key-value engine underlying every table
// and vector index column. It stores raw, already-encoded row bytes --
// the MVCC semantics (visibility, conflict detection) live one layer up
// in pkg/txn, which is the only caller that interprets commitTS values.
type KVStore interface {
	// Put writes one new version of a row. A nil value with
	// tombstone=true records a deletion marker rather than removing
	// prior versions, so readers with an older snapshot still see them.
	Put(tableID types.TableID, pk int64, commitTS uint64, value []byte, tombstone bool) error

	// Get returns the newest version of pk with commitTS <= maxCommitTS.
	Get(tableID types.TableID, pk int64, maxCommitTS uint64) (value []byte, commitTS uint64, tombstone, found bool, err error)

	// Range visits every row in [startPK, endPK) (endPK exclusive; a
	// nil endPK means unbounded), newest-version-first per PK, so a
	// caller typically keeps only the first version it sees per PK
	// with commitTS <= maxCommitTS.
	Range(tableID types.TableID, startPK int64, endPK *int64, fn VisitFunc) error

	// Snapshot returns a stable, read-only view of the store for a
	// transaction to read against without re-resolving visibility on
	// every call.
	Snapshot() (Snapshot, error)

	// Flush forces any buffered writes to become durable and visible.
	Flush() error

	// Compact runs one LSM compaction / value-log GC pass.
	Compact() error

	// GCVersions physically removes row versions no active transaction
	// could possibly still need: for every key, any version older than
	// oldestActiveReadTS that is shadowed by a newer version also older
	// than oldestActiveReadTS. Versions with commitTS >= oldestActiveReadTS
	// are never touched, since an active reader may still need them.
	GCVersions(oldestActiveReadTS uint64) (removed int, err error)

	// DiskBytes reports the KVStore's total size on disk.
	DiskBytes() (int64, error)

	Close() error
}

// Snapshot is a stable, read-only view of the KVStore taken at a point
// in time, handed to a transaction so that every read it performs
// during its lifetime observes one consistent database state
// regardless of concurrent commits.
type Snapshot interface {
	Get(tableID types.TableID, pk int64, maxCommitTS uint64) (value []byte, commitTS uint64, tombstone, found bool, err error)
	Range(tableID types.TableID, startPK int64, endPK *int64, fn VisitFunc) error
	Close()
}
