// Package db implements Database, the facade spec.md §6 names as
// OmenDB's external interface: table lifecycle, row operations scoped
// to a caller-held transaction, vector index management and k-NN
// search, and administration (flush/checkpoint/compact/metrics).
//
// Database is the single place that wires together every other
// package in this module -- pkg/storage, pkg/wal, pkg/cache,
// pkg/events, pkg/txn, pkg/alex (via the catalog's per-table trees),
// and pkg/vectorstore -- the way the teacher's top-level Manager wires
// its own subsystems.
package db

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/omendb/omendb/pkg/cache"
	"github.com/omendb/omendb/pkg/config"
	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/events"
	logPkg "github.com/omendb/omendb/pkg/log"
	"github.com/omendb/omendb/pkg/metrics"
	"github.com/omendb/omendb/pkg/storage"
	"github.com/omendb/omendb/pkg/txn"
	"github.com/omendb/omendb/pkg/types"
	"github.com/omendb/omendb/pkg/vectorstore"
	"github.com/omendb/omendb/pkg/wal"
	"github.com/rs/zerolog"
)

var errNoPrimaryKey = errors.New("db: schema has no primary_key column")

// Database owns every subsystem backing one on-disk OmenDB instance.
type Database struct {
	cfg *config.Config

	store  storage.KVStore
	log    *wal.WAL
	cache  *cache.RowCache
	broker *events.Broker
	txns   *txn.Manager
	vs     *vectorstore.Store
	cat    *catalog

	collector *metrics.Collector
	logger    zerolog.Logger

	closeOnce sync.Once
}

// Open builds or reopens a Database rooted at cfg.DataDir: opens the
// KVStore and WAL, replays the WAL into the KVStore (txn.Recover),
// constructs the transaction manager and vector store, loads the
// catalog, rebuilds each table's AlexTree membership index from
// committed rows, and starts background GC and the metrics collector.
func Open(cfg *config.Config) (*Database, error) {
	const op = "db.Open"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.NewBadgerStore(cfg.DataDir, cfg.KV)
	if err != nil {
		return nil, err
	}
	walLog, err := wal.Open(cfg.DataDir, cfg.WAL)
	if err != nil {
		store.Close()
		return nil, err
	}

	if _, err := txn.Recover(store, walLog); err != nil {
		store.Close()
		walLog.Close()
		return nil, err
	}

	rc, err := cache.NewRowCache(cfg.Cache.Capacity)
	if err != nil {
		store.Close()
		walLog.Close()
		return nil, err
	}
	broker := events.NewBroker()
	broker.Start()

	mgr := txn.NewManager(store, walLog, rc, broker, cfg.Txn.DefaultTimeout)
	mgr.StartGC(cfg.Txn.GCInterval)

	d := &Database{
		cfg:    cfg,
		store:  store,
		log:    walLog,
		cache:  rc,
		broker: broker,
		txns:   mgr,
		vs:     vectorstore.NewStore(),
		cat:    newCatalog(cfg.DataDir),
		logger: logPkg.WithComponent("db"),
	}

	if err := d.cat.load(); err != nil {
		d.Close()
		return nil, errs.New(errs.KindOf(err), op, err)
	}
	if err := d.rebuildIndexes(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.loadVectorIndexes(); err != nil {
		d.Close()
		return nil, err
	}

	d.collector = metrics.NewCollector(d)
	d.collector.Start()

	d.logger.Info().Str("data_dir", cfg.DataDir).Msg("database opened")
	return d, nil
}

// rebuildIndexes repopulates every table's AlexTree membership index
// by scanning the KVStore directly (bypassing the transaction layer,
// since this runs before any transaction exists). A PK is remembered
// once it has any version at all, tombstoned or not -- see Table's
// doc comment for why the tree must never forget a deleted key.
func (d *Database) rebuildIndexes() error {
	for _, t := range d.cat.list() {
		table := t
		err := d.store.Range(table.id, 0, nil, func(pk int64, _ uint64, _ []byte, _ bool) (bool, error) {
			if err := table.remember(pk); err != nil {
				return false, err
			}
			return true, nil
		})
		if err != nil {
			return errs.NewStorageIo("db.Database.rebuildIndexes", err)
		}
	}
	return nil
}

// loadVectorIndexes registers every vector column declared in the
// catalog's schemas and, if a saved graph/vectors pair exists under
// the data directory's vectors/ subdirectory, loads it.
func (d *Database) loadVectorIndexes() error {
	dir := filepath.Join(d.cfg.DataDir, "vectors")
	for _, t := range d.cat.list() {
		for _, col := range t.Schema().Columns {
			if col.Type != types.DataTypeVector {
				continue
			}
			params := defaultVectorParams(d.cfg, col.Dim)
			if err := d.vs.CreateIndex(t.Schema().TableName, col.ColumnName, params); err != nil {
				return err
			}
			vecFile := filepath.Join(dir, fmt.Sprintf("%s_%s.hnsw.vecs", t.Schema().TableName, col.ColumnName))
			if _, statErr := os.Stat(vecFile); statErr != nil {
				continue // nothing persisted yet for this column
			}
			if err := d.vs.Load(t.Schema().TableName, col.ColumnName, dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func defaultVectorParams(cfg *config.Config, dim int) types.VectorIndexParams {
	return types.VectorIndexParams{
		Dim:             dim,
		M:               cfg.Vector.DefaultM,
		EfConstruction:  cfg.Vector.DefaultEfConstruction,
		EfSearch:        cfg.Vector.DefaultEfSearch,
		ExpansionFactor: cfg.Vector.DefaultExpansionFactor,
	}
}

// CreateTable registers a new table in the catalog and persists it.
func (d *Database) CreateTable(schema types.Schema) error {
	if _, err := d.cat.create(schema); err != nil {
		return err
	}
	for _, col := range schema.Columns {
		if col.Type != types.DataTypeVector {
			continue
		}
		if err := d.vs.CreateIndex(schema.TableName, col.ColumnName, defaultVectorParams(d.cfg, col.Dim)); err != nil {
			d.cat.drop(schema.TableName)
			return err
		}
	}
	if err := d.cat.save(); err != nil {
		return err
	}
	d.broker.Publish(&events.Event{Type: events.EventTableCreated, Message: schema.TableName})
	d.logger.Info().Str("table", schema.TableName).Msg("table created")
	return nil
}

// DropTable removes a table from the catalog, drops its vector indexes
// and evicts its rows from the RowCache. Its KVStore rows become
// unreachable but are not erased; Compact does not remove them either.
func (d *Database) DropTable(name string) error {
	t, err := d.cat.get(name)
	if err != nil {
		return err
	}
	d.cache.InvalidateTable(t.ID())
	for _, col := range t.Schema().Columns {
		if col.Type == types.DataTypeVector {
			_ = d.vs.DropIndex(name, col.ColumnName)
		}
	}
	if err := d.cat.drop(name); err != nil {
		return err
	}
	d.broker.Publish(&events.Event{Type: events.EventTableDropped, Message: name})
	return d.cat.save()
}

// Begin starts a new transaction (spec.md §6 begin() -> txn_id).
func (d *Database) Begin() (*txn.Txn, error) { return d.txns.Begin() }

// Insert stages row into table under t, validating it against the
// table's schema. A vector-typed column's value is staged into the
// vector store's index at the same point in the write path as every
// other column (spec.md's Open Question (b) resolution) -- it takes
// effect immediately rather than waiting for t.Commit, matching
// pkg/vectorstore's own MVCC-agnostic design (its Search filters by
// visibility at query time instead).
func (d *Database) Insert(t *txn.Txn, table string, row types.Row) error {
	const op = "db.Database.Insert"
	tbl, err := d.cat.get(table)
	if err != nil {
		return err
	}
	if err := validateRow(tbl.Schema(), row); err != nil {
		return errs.NewBadInput(op, err)
	}
	if err := t.Put(tbl.id, row.PK, row); err != nil {
		return err
	}
	if err := tbl.remember(row.PK); err != nil {
		return err
	}
	return d.writeVectorColumns(tbl, row)
}

// UpdateByPK overwrites an existing row's values. It is staged the
// same way Insert is; no AlexTree mutation is needed since the PK is
// already remembered.
func (d *Database) UpdateByPK(t *txn.Txn, table string, row types.Row) error {
	const op = "db.Database.UpdateByPK"
	tbl, err := d.cat.get(table)
	if err != nil {
		return err
	}
	if err := validateRow(tbl.Schema(), row); err != nil {
		return errs.NewBadInput(op, err)
	}
	if err := t.Put(tbl.id, row.PK, row); err != nil {
		return err
	}
	return d.writeVectorColumns(tbl, row)
}

func (d *Database) writeVectorColumns(tbl *Table, row types.Row) error {
	schema := tbl.Schema()
	for i, col := range schema.Columns {
		if col.Type != types.DataTypeVector || i >= len(row.Values) {
			continue
		}
		if err := d.vs.Insert(schema.TableName, col.ColumnName, row.PK, row.Values[i].Vector); err != nil {
			return err
		}
	}
	return nil
}

// GetByPK resolves a row as of t's snapshot. It first consults the
// table's AlexTree: if the PK was never remembered there, no version
// of it has ever existed under any snapshot, so the miss can be
// reported without touching the transaction's view at all. A hit
// still falls through to t.Get for the MVCC-correct answer, since the
// tree has no notion of which version (if any) is visible at t.
func (d *Database) GetByPK(t *txn.Txn, table string, pk int64) (types.Row, bool, error) {
	tbl, err := d.cat.get(table)
	if err != nil {
		return types.Row{}, false, err
	}
	if !tbl.knownPK(pk) {
		return types.Row{}, false, nil
	}
	return t.Get(tbl.id, pk)
}

// RangeScan visits every live row in [startPK, endPK) as of t's
// snapshot in ascending PK order. Ordering and visibility are both
// already correctly handled by t.Range against the KVStore's own
// ordered keyspace, so this delegates directly rather than driving
// the scan off the AlexTree's own (MVCC-unaware) key ordering.
func (d *Database) RangeScan(t *txn.Txn, table string, startPK int64, endPK *int64, fn func(pk int64, row types.Row) (bool, error)) error {
	tbl, err := d.cat.get(table)
	if err != nil {
		return err
	}
	return t.Range(tbl.id, startPK, endPK, fn)
}

// DeleteByPK stages a tombstone for pk. The AlexTree never forgets pk
// (see Table's doc comment); Insert reusing the same PK later detects
// it's already remembered and skips re-inserting into the tree.
func (d *Database) DeleteByPK(t *txn.Txn, table string, pk int64) error {
	tbl, err := d.cat.get(table)
	if err != nil {
		return err
	}
	if err := t.Delete(tbl.id, pk); err != nil {
		return err
	}
	schema := tbl.Schema()
	for _, col := range schema.Columns {
		if col.Type == types.DataTypeVector {
			_ = d.vs.Delete(table, col.ColumnName, pk)
		}
	}
	return nil
}

// CreateVectorIndex registers an HNSW index on table.column (spec.md
// §4.3/§6 create_vector_index). The column must already exist on the
// table's schema as a DataTypeVector with matching dimensionality.
func (d *Database) CreateVectorIndex(table, column string, params types.VectorIndexParams) error {
	const op = "db.Database.CreateVectorIndex"
	tbl, err := d.cat.get(table)
	if err != nil {
		return err
	}
	col, found := tbl.Schema().ColumnByName(column)
	if !found || col.Type != types.DataTypeVector {
		return errs.Newf(errs.BadInput, op, "%s.%s is not a vector column", table, column)
	}
	if params.Dim == 0 {
		params.Dim = col.Dim
	}
	return d.vs.CreateIndex(table, column, params)
}

// VectorKNN runs approximate k-NN on table.column as of t's snapshot
// (spec.md §6 vector_knn(column, query, k, ef, filter=None)). ef is
// the absolute candidate-pool size HNSW should beam-search (or, for a
// quantized column, the size of the quantized scan's candidate pool
// before full-precision rerank); it is converted to vectorstore's
// expansion-factor convention internally. filter, when non-nil, is
// applied in addition to t's own MVCC visibility.
func (d *Database) VectorKNN(t *txn.Txn, table, column string, query []float32, k, ef int, filter func(pk int64) bool) ([]vectorstore.Hit, error) {
	tbl, err := d.cat.get(table)
	if err != nil {
		return nil, err
	}
	expansion := 1
	if k > 0 && ef > k {
		expansion = ef / k
	}
	visible := func(pk int64) bool {
		if _, found, err := t.Get(tbl.id, pk); err != nil || !found {
			return false
		}
		return filter == nil || filter(pk)
	}
	return d.vs.Search(table, column, query, k, expansion, visible)
}

// Flush forces the KVStore's buffered writes to become durable.
func (d *Database) Flush() error { return d.store.Flush() }

// Checkpoint forces a WAL checkpoint record, flushes the KVStore, and
// persists the catalog -- the "materialize then truncate" shape
// spec.md §4.2 describes for WAL checkpoints (SPEC_FULL.md §5).
func (d *Database) Checkpoint() error {
	const op = "db.Database.Checkpoint"
	if err := d.store.Flush(); err != nil {
		return err
	}
	if _, err := d.log.Checkpoint(d.log.LastSequence()); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := d.cat.save(); err != nil {
		return err
	}
	if err := d.vs.Save(filepath.Join(d.cfg.DataDir, "vectors")); err != nil {
		return err
	}
	d.broker.Publish(&events.Event{Type: events.EventCheckpointDone, Message: "checkpoint complete"})
	return nil
}

// Compact runs one LSM compaction / value-log GC pass.
func (d *Database) Compact() error {
	if err := d.store.Compact(); err != nil {
		return err
	}
	d.broker.Publish(&events.Event{Type: events.EventCompactionDone, Message: "compaction complete"})
	return nil
}

// Metrics renders the current metrics registry in Prometheus text
// exposition format (spec.md §6 metrics() -> text).
func (d *Database) Metrics(w io.Writer) error { return metrics.WriteText(w) }

// CacheStats implements pkg/metrics.StatsSource by delegating to the
// transaction manager's own RowCache-backed implementation.
func (d *Database) CacheStats() (hits, misses uint64, occupancy int) { return d.txns.CacheStats() }

// ActiveTxnCount implements pkg/metrics.StatsSource.
func (d *Database) ActiveTxnCount() int { return d.txns.ActiveTxnCount() }

// DiskBytes implements pkg/metrics.StatsSource.
func (d *Database) DiskBytes() (int64, error) { return d.txns.DiskBytes() }

// WALSegmentCount implements pkg/metrics.StatsSource.
func (d *Database) WALSegmentCount() int { return d.txns.WALSegmentCount() }

// Close stops every background loop and releases underlying
// resources. Safe to call more than once.
func (d *Database) Close() error {
	var closeErr error
	d.closeOnce.Do(func() {
		if d.collector != nil {
			d.collector.Stop()
		}
		d.txns.Close()
		d.broker.Stop()
		if err := d.log.Close(); err != nil {
			closeErr = fmt.Errorf("closing wal: %w", err)
		}
		if err := d.store.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("closing store: %w", err)
		}
	})
	return closeErr
}

func validateRow(schema types.Schema, row types.Row) error {
	if row.Tombstone() {
		return errors.New("cannot insert a tombstoned row")
	}
	if len(row.Values) != len(schema.Columns) {
		return fmt.Errorf("row has %d values, schema %q has %d columns", len(row.Values), schema.TableName, len(schema.Columns))
	}
	for i, col := range schema.Columns {
		if col.Type == types.DataTypeVector && len(row.Values[i].Vector) != col.Dim {
			return fmt.Errorf("column %q: vector has %d dims, want %d", col.ColumnName, len(row.Values[i].Vector), col.Dim)
		}
	}
	return nil
}
