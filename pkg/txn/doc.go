/*
Package txn implements TxnManager: the timestamp oracle, MVCC read
visibility, deferred write staging, first-committer-wins conflict
detection, background version GC, and WAL-replay crash recovery
described in spec.md §4.6.

# Architecture

	┌───────────────────────── MANAGER ─────────────────────────────┐
	│                                                                 │
	│  Begin() ──► txn_id, start_ts, KVStore.Snapshot()              │
	│                                                                 │
	│  Txn.Get/Range: own write_set ──► RowCache (if commitTS<=start)│
	│                ──► Snapshot.Get/Range (maxCommitTS = start_ts) │
	│                                                                 │
	│  Txn.Put/Delete: staged into write_set only, no durable effect │
	│                                                                 │
	│  Txn.Commit():                                                 │
	│    1. per-key striped locks (sorted, deadlock-free)            │
	│    2. first-committer-wins: any committed version with         │
	│       commit_ts > start_ts ──► SerializationConflict           │
	│    3. commit_ts = oracle++                                     │
	│    4. WAL: BeginTxn, Put/Delete*, CommitTxn (one atomic batch) │
	│    5. KVStore.Put each write at commit_ts                      │
	│    6. RowCache.Invalidate each touched key                     │
	│                                                                 │
	│  Background GC: oldest_active_read_ts = min(active start_ts)   │
	│                 KVStore.GCVersions(watermark)                  │
	└─────────────────────────────────────────────────────────────────┘

# Crash recovery

Recover replays the WAL once at startup, before any Manager exists:
buffer Put/Delete records per txn_id between its BeginTxn and
CommitTxn, apply the buffer on CommitTxn, and drop it entirely if the
log ends (or a RollbackTxn appears) before a CommitTxn arrives. Because
Commit only ever appends BeginTxn immediately followed by its Put/
Delete/CommitTxn records in one call, the only way a BeginTxn can lack
a CommitTxn is a crash mid-commit -- exactly the case recovery must
discard.

# Usage

	mgr := txn.NewManager(store, log, rowCache, broker, cfg.Txn.DefaultTimeout)
	mgr.StartGC(cfg.Txn.GCInterval)
	defer mgr.Close()

	t, err := mgr.Begin()
	row, found, err := t.Get(tableID, pk)
	err = t.Put(tableID, pk, row)
	err = t.Commit() // or t.Rollback()
*/
package txn
