/*
Package db implements Database, the facade spec.md §6 exposes as
OmenDB's external interface: table lifecycle, transaction-scoped row
operations, vector index management and k-NN search, and
administration (flush/checkpoint/compact/metrics).

# Architecture

	┌─────────────────────────── Database ────────────────────────────┐
	│                                                                   │
	│  catalog: meta/catalog.json  -- table name -> {table_id, schema} │
	│    each Table also holds an AlexTree, a fast PK-membership       │
	│    index that only ever grows (see Table's doc comment)          │
	│                                                                   │
	│  CreateTable/DropTable  ──► catalog.create/drop, catalog.save    │
	│                         ──► vectorstore.CreateIndex per vector   │
	│                             column, events.Broker.Publish        │
	│                                                                   │
	│  Begin()                ──► txn.Manager.Begin                   │
	│  Insert/UpdateByPK      ──► txn.Txn.Put + Table.remember         │
	│                         ──► vectorstore.Store.Insert per vector  │
	│                             column, staged immediately (not      │
	│                             deferred to commit)                  │
	│  GetByPK                ──► Table.knownPK fast-path miss,        │
	│                             else txn.Txn.Get                     │
	│  RangeScan              ──► txn.Txn.Range                       │
	│  DeleteByPK             ──► txn.Txn.Delete + vectorstore.Delete  │
	│                                                                   │
	│  CreateVectorIndex      ──► vectorstore.Store.CreateIndex        │
	│  VectorKNN              ──► vectorstore.Store.Search, wrapping   │
	│                             t.Get as the VisibilityFunc          │
	│                                                                   │
	│  Flush/Checkpoint/Compact/Metrics ──► storage.KVStore,           │
	│                                       wal.WAL, catalog.save,     │
	│                                       vectorstore.Store.Save     │
	└───────────────────────────────────────────────────────────────────┘

Database is the single place that wires together every other package
in this module -- pkg/storage, pkg/wal, pkg/cache, pkg/events, pkg/txn,
pkg/alex (via the catalog's per-table trees), and pkg/vectorstore --
the way the teacher's top-level Manager wires its own subsystems.

# Startup sequence

Open performs, in order: open the KVStore, open the WAL, txn.Recover
(replay the WAL into the KVStore before any Manager exists), build the
RowCache, start the event broker, construct the transaction manager and
start its background GC, load the catalog from meta/catalog.json,
rebuild every table's AlexTree from the KVStore's committed rows
directly, register and reload every vector index, then start the
metrics collector.

# Usage

	cfg := config.DefaultConfig("/var/lib/omendb")
	d, err := db.Open(cfg)
	defer d.Close()

	err = d.CreateTable(schema)

	t, err := d.Begin()
	err = d.Insert(t, "docs", row)
	err = t.Commit()

	hits, err := d.VectorKNN(t, "docs", "embedding", query, 10, 200, nil)
*/
package db
