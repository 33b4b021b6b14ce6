package txn

import (
	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/storage"
	"github.com/omendb/omendb/pkg/types"
	"github.com/omendb/omendb/pkg/wal"
)

// Recover replays the WAL against store on startup: for every
// CommitTxn record it applies the Put/Delete records buffered since
// that transaction's BeginTxn, and discards (never applies) the
// writes of any transaction whose BeginTxn has no matching CommitTxn
// -- the crash recovery contract in spec.md §4.6. It must run once,
// before any Manager is constructed over the same store and log.
func Recover(store storage.KVStore, log *wal.WAL) (applied int, err error) {
	const op = "txn.Recover"
	pending := make(map[uint64][]wal.Record)

	replayErr := log.Replay(func(seq uint64, r wal.Record) error {
		switch r.Type {
		case wal.RecordBeginTxn:
			pending[r.TxnID] = nil
		case wal.RecordPut, wal.RecordDelete:
			pending[r.TxnID] = append(pending[r.TxnID], r)
		case wal.RecordCommitTxn:
			for _, w := range pending[r.TxnID] {
				tombstone := w.Type == wal.RecordDelete
				if putErr := store.Put(types.TableID(w.TableID), w.PK, w.CommitTS, w.Value, tombstone); putErr != nil {
					return putErr
				}
				applied++
			}
			delete(pending, r.TxnID)
		case wal.RecordRollbackTxn:
			delete(pending, r.TxnID)
		}
		return nil
	})
	if replayErr != nil {
		return applied, errs.NewStorageIo(op, replayErr)
	}
	return applied, nil
}
