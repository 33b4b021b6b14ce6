/*
Package storage implements OmenDB's KVStore: the LSM-backed engine
that durably holds every row version for every table, under an
explicit MVCC key encoding the package owns rather than relying on
badger's internal versioning.

# Architecture

	┌──────────────────── KVSTORE (badger/v4) ──────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Key Encoding                    │          │
	│  │  [ tableID:4 ][ pk:8 sign-flipped ][ ~ts:8 ] │          │
	│  │  Ascending byte order == PK order, newest-   │          │
	│  │  version-first within a PK (keys.go)         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            BadgerStore                       │          │
	│  │  Put: one badger.Entry per row version       │          │
	│  │  Get: seek row prefix, skip ts > maxCommitTS │          │
	│  │  Range: seek table prefix, stop at endPK     │          │
	│  │  Snapshot: one long-lived read-only txn      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │               badger/v4 LSM                  │          │
	│  │  memtable → L0 → ... → Ln, block cache,      │          │
	│  │  bloom filters, value log + GC               │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

Every write goes through a distinct key (table, PK, commit_ts), so
badger never sees two transactions touch the same key -- its own
optimistic-conflict machinery stays dormant. First-committer-wins
conflict detection and read-snapshot visibility both live in pkg/txn,
which is the only caller that interprets a commit_ts as anything other
than an opaque sort key.

# Usage

	import "github.com/omendb/omendb/pkg/storage"

	kv, err := storage.NewBadgerStore(cfg.DataDir, cfg.KV)
	defer kv.Close()

	err = kv.Put(tableID, pk, commitTS, encodedRow, false)

	val, ts, tombstone, found, err := kv.Get(tableID, pk, readTS)

	snap, err := kv.Snapshot()
	defer snap.Close()
	err = snap.Range(tableID, startPK, &endPK, func(pk int64, ts uint64, v []byte, tomb bool) (bool, error) {
		return true, nil
	})
*/
package storage
