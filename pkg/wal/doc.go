/*
Package wal implements OmenDB's write-ahead log: the durable, append-only
record of every transaction's begin/put/delete/commit/rollback events,
replayed on startup to rebuild KVStore state a crash left un-flushed.

# Architecture

	┌──────────────────────── WAL ──────────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Record Framing                 │          │
	│  │  [len:4][type:1][txnID:8][tableID:4][pk:8]  │          │
	│  │  [commitTS:8][valueLen:4][value][crc32:4]   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Segment Files                     │          │
	│  │  seg-00000000000000000001.log                │          │
	│  │  seg-00000000000000048213.log  (active)      │          │
	│  │  Rotated at cfg.SegmentSizeBytes             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │     Segment Metadata (go.etcd.io/bbolt)      │          │
	│  │  segments bucket: startSeq -> {path,end,...} │          │
	│  │  meta bucket: next_seq, checkpoint_seq       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Replay and torn tails

A crash mid-append can leave a segment's last record partially
written. Replay reads records sequentially and treats a length-prefix
or CRC32 mismatch on the last record of a segment as a torn tail: it
stops replaying that segment rather than returning an error, since an
interrupted write never reached its RecordCommitTxn and so was never
visible to any reader.

# Checkpoints

Checkpoint(upToSeq) appends a RecordCheckpoint marker, records
upToSeq as the new checkpoint_seq, and deletes any fully-sealed
segment whose every record is at or below that watermark. pkg/db's
Database.Checkpoint calls it after flushing the KVStore.

# Usage

	import "github.com/omendb/omendb/pkg/wal"

	w, err := wal.Open(cfg.DataDir, cfg.WAL)
	defer w.Close()

	seq, err := w.Append(wal.Record{Type: wal.RecordBeginTxn, TxnID: txnID})

	err = w.Replay(func(seq uint64, r wal.Record) error {
		return applyToKVStore(r)
	})

	reclaimed, err := w.Checkpoint(lastAppliedSeq)
*/
package wal
