// Package txn implements the MVCC transaction manager: a monotonic
// timestamp oracle, snapshot-isolated reads, deferred write_set
// staging, first-committer-wins conflict detection, background
// garbage collection, and WAL-replay crash recovery (spec.md §4.6).
package txn

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omendb/omendb/pkg/cache"
	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/events"
	logPkg "github.com/omendb/omendb/pkg/log"
	"github.com/omendb/omendb/pkg/metrics"
	"github.com/omendb/omendb/pkg/storage"
	"github.com/omendb/omendb/pkg/types"
	"github.com/omendb/omendb/pkg/wal"
	"github.com/rs/zerolog"
)

// Status is a transaction's position in its lifecycle.
type Status int32

const (
	StatusActive Status = iota
	StatusCommitting
	StatusCommitted
	StatusAborted
)

// numStripes sizes the per-key conflict-check lock table. Keys hash
// into one of these stripes rather than each getting its own lock, so
// Manager's memory footprint doesn't grow with the keyspace.
const numStripes = 256

type writeKey struct {
	table types.TableID
	pk    int64
}

type pendingWrite struct {
	table     types.TableID
	pk        int64
	value     []byte
	tombstone bool
}

// Txn is one in-flight (or just-finished) transaction. All its writes
// stay in writeSet until Commit, per spec.md §4.6's "only on COMMIT
// are they materialized" write protocol -- this is what makes Rollback
// always a no-op against durable state.
type Txn struct {
	ID      uint64
	StartTS uint64

	mgr    *Manager
	status atomic.Int32

	mu       sync.Mutex
	writeSet map[writeKey]pendingWrite
	order    []writeKey // preserves first-write order for deterministic WAL framing

	snap      storage.Snapshot
	startedAt time.Time
}

func (t *Txn) Status() Status { return Status(t.status.Load()) }

// Get resolves (table, pk) as of this transaction's snapshot: its own
// uncommitted writes take precedence, then the RowCache (if its
// cached version is not newer than StartTS), then the KVStore
// snapshot taken at Begin.
func (t *Txn) Get(table types.TableID, pk int64) (types.Row, bool, error) {
	const op = "txn.Txn.Get"
	if t.Status() != StatusActive {
		return types.Row{}, false, errs.NewBadInput(op, errTxnNotActive)
	}

	t.mu.Lock()
	w, staged := t.writeSet[writeKey{table, pk}]
	t.mu.Unlock()
	if staged {
		if w.tombstone {
			return types.Row{}, false, nil
		}
		row, err := types.DecodeRow(w.value)
		if err != nil {
			return types.Row{}, false, errs.NewCorrupted(op, err)
		}
		return row, true, nil
	}

	if row, commitTS, ok := t.mgr.cache.Get(table, pk); ok && commitTS <= t.StartTS {
		return *row, true, nil
	}

	value, commitTS, tombstone, found, err := t.snap.Get(table, pk, t.StartTS)
	if err != nil {
		return types.Row{}, false, errs.NewStorageIo(op, err)
	}
	if !found || tombstone {
		return types.Row{}, false, nil
	}
	row, err := types.DecodeRow(value)
	if err != nil {
		return types.Row{}, false, errs.NewCorrupted(op, err)
	}
	// Cache only a version that is still the newest committed one, checked
	// under pk's stripe lock so a concurrent Commit cannot land in between.
	s := stripeFor(table, pk)
	t.mgr.stripes[s].Lock()
	if _, latestTS, _, ok, err := t.mgr.store.Get(table, pk, math.MaxUint64); err == nil && ok && latestTS == commitTS {
		t.mgr.cache.Put(table, pk, commitTS, &row)
	}
	t.mgr.stripes[s].Unlock()
	return row, true, nil
}

// Range visits every live row in [startPK, endPK) as of this
// transaction's snapshot, newest-version-first resolution already
// applied, merging in its own uncommitted writes.
func (t *Txn) Range(table types.TableID, startPK int64, endPK *int64, fn func(pk int64, row types.Row) (cont bool, err error)) error {
	const op = "txn.Txn.Range"
	if t.Status() != StatusActive {
		return errs.NewBadInput(op, errTxnNotActive)
	}

	t.mu.Lock()
	staged := make(map[int64]pendingWrite, len(t.writeSet))
	for k, w := range t.writeSet {
		if k.table == table {
			staged[k.pk] = w
		}
	}
	t.mu.Unlock()

	seen := make(map[int64]bool)
	cont := true
	rangeErr := t.snap.Range(table, startPK, endPK, func(pk int64, commitTS uint64, value []byte, tombstone bool) (bool, error) {
		// Versions arrive newest first; only the first one at or below
		// StartTS counts for each pk.
		if seen[pk] || commitTS > t.StartTS {
			return true, nil
		}
		seen[pk] = true
		if w, isStaged := staged[pk]; isStaged {
			// This transaction's own pending write for pk supersedes
			// whatever the snapshot sees for it.
			if w.tombstone {
				return true, nil
			}
			row, err := types.DecodeRow(w.value)
			if err != nil {
				return false, err
			}
			c, err := fn(pk, row)
			cont = c
			return cont, err
		}
		if tombstone {
			return true, nil
		}
		row, err := types.DecodeRow(value)
		if err != nil {
			return false, err
		}
		c, err := fn(pk, row)
		cont = c
		return cont, err
	})
	if rangeErr != nil {
		return errs.NewStorageIo(op, rangeErr)
	}
	if !cont {
		return nil
	}

	t.mu.Lock()
	var ownKeys []writeKey
	for _, k := range t.order {
		if k.table != table || seen[k.pk] {
			continue
		}
		if endPK != nil && (k.pk < startPK || k.pk >= *endPK) {
			continue
		}
		if k.pk < startPK {
			continue
		}
		ownKeys = append(ownKeys, k)
	}
	writes := make(map[writeKey]pendingWrite, len(ownKeys))
	for _, k := range ownKeys {
		writes[k] = t.writeSet[k]
	}
	t.mu.Unlock()

	sort.Slice(ownKeys, func(i, j int) bool { return ownKeys[i].pk < ownKeys[j].pk })
	for _, k := range ownKeys {
		w := writes[k]
		if w.tombstone {
			continue
		}
		row, err := types.DecodeRow(w.value)
		if err != nil {
			return errs.NewCorrupted(op, err)
		}
		if c, err := fn(k.pk, row); err != nil {
			return err
		} else if !c {
			break
		}
	}
	return nil
}

// Put stages an insert/update into the write_set; it has no durable
// effect until Commit.
func (t *Txn) Put(table types.TableID, pk int64, row types.Row) error {
	const op = "txn.Txn.Put"
	if t.Status() != StatusActive {
		return errs.NewBadInput(op, errTxnNotActive)
	}
	value, err := types.EncodeRow(row)
	if err != nil {
		return errs.NewBadInput(op, err)
	}
	t.stage(table, pk, value, false)
	return nil
}

// Delete stages a tombstone for (table, pk).
func (t *Txn) Delete(table types.TableID, pk int64) error {
	const op = "txn.Txn.Delete"
	if t.Status() != StatusActive {
		return errs.NewBadInput(op, errTxnNotActive)
	}
	t.stage(table, pk, nil, true)
	return nil
}

func (t *Txn) stage(table types.TableID, pk int64, value []byte, tombstone bool) {
	key := writeKey{table, pk}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.writeSet[key]; !exists {
		t.order = append(t.order, key)
	}
	t.writeSet[key] = pendingWrite{table: table, pk: pk, value: value, tombstone: tombstone}
}

// Manager owns the timestamp oracle and drives commit/rollback for
// every Txn, plus background GC. It holds no versioned data itself --
// KVStore owns every committed version; Manager only owns timestamps
// and conflict metadata (spec.md §3, "Ownership").
type Manager struct {
	store  storage.KVStore
	log    *wal.WAL
	cache  *cache.RowCache
	broker *events.Broker
	logger zerolog.Logger

	oracle  atomic.Uint64
	nextID  atomic.Uint64
	timeout time.Duration

	mu      sync.Mutex
	active  map[uint64]*Txn
	stripes [numStripes]sync.Mutex

	gcStop chan struct{}
	gcDone chan struct{}
}

// NewManager builds a Manager over an already-open KVStore, WAL, and
// RowCache. Callers typically obtain these from pkg/db's Database
// construction.
func NewManager(store storage.KVStore, log *wal.WAL, rc *cache.RowCache, broker *events.Broker, timeout time.Duration) *Manager {
	return &Manager{
		store:   store,
		log:     log,
		cache:   rc,
		broker:  broker,
		logger:  logPkg.WithComponent("txn"),
		timeout: timeout,
		active:  make(map[uint64]*Txn),
	}
}

// Begin assigns a new txn_id and start_ts, taking a KVStore snapshot
// so every read this transaction performs sees one consistent state.
func (m *Manager) Begin() (*Txn, error) {
	const op = "txn.Manager.Begin"
	snap, err := m.store.Snapshot()
	if err != nil {
		return nil, errs.NewStorageIo(op, err)
	}

	t := &Txn{
		ID:        m.nextID.Add(1),
		StartTS:   m.oracle.Add(1),
		mgr:       m,
		writeSet:  make(map[writeKey]pendingWrite),
		snap:      snap,
		startedAt: time.Now(),
	}
	t.status.Store(int32(StatusActive))

	m.mu.Lock()
	m.active[t.ID] = t
	m.mu.Unlock()

	metrics.TxnBeginsTotal.Inc()
	metrics.TxnActiveGauge.Inc()
	return t, nil
}

// stripeFor hashes (table, pk) into one of numStripes conflict-check
// locks. Collisions between unrelated keys just mean two commits
// briefly contend for a lock neither needed to -- safe, just
// occasionally slower.
func stripeFor(table types.TableID, pk int64) int {
	h := uint64(table)*1099511628211 ^ uint64(pk)
	return int(h % numStripes)
}

// Commit validates the write_set against first-committer-wins
// (spec.md §4.6), then atomically appends the WAL batch, materializes
// every write into the KVStore at a fresh commit_ts, and invalidates
// each touched key's cache entry.
func (t *Txn) Commit() error {
	const op = "txn.Txn.Commit"
	if !t.status.CompareAndSwap(int32(StatusActive), int32(StatusCommitting)) {
		return errs.NewBadInput(op, errTxnNotActive)
	}
	m := t.mgr
	timer := metrics.NewTimer()

	t.mu.Lock()
	order := append([]writeKey(nil), t.order...)
	writes := make(map[writeKey]pendingWrite, len(order))
	for _, k := range order {
		writes[k] = t.writeSet[k]
	}
	t.mu.Unlock()

	if len(order) == 0 {
		t.finish(StatusCommitted)
		metrics.TxnCommitsTotal.Inc()
		timer.ObserveDuration(metrics.TxnCommitDuration)
		return nil
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].table != order[j].table {
			return order[i].table < order[j].table
		}
		return order[i].pk < order[j].pk
	})

	stripeIdx := make([]int, len(order))
	for i, k := range order {
		stripeIdx[i] = stripeFor(k.table, k.pk)
	}
	sort.Ints(stripeIdx)
	locked := make(map[int]bool, len(stripeIdx))
	for _, idx := range stripeIdx {
		if !locked[idx] {
			m.stripes[idx].Lock()
			locked[idx] = true
		}
	}
	defer func() {
		for idx := range locked {
			m.stripes[idx].Unlock()
		}
	}()

	for _, k := range order {
		_, commitTS, _, found, err := m.store.Get(k.table, k.pk, math.MaxUint64)
		if err != nil {
			t.abortLocked(StatusAborted, "storage_error")
			return errs.NewStorageIo(op, err)
		}
		if found && commitTS > t.StartTS {
			t.abortLocked(StatusAborted, "conflict")
			metrics.TxnConflictsTotal.Inc()
			return errs.NewConflict(op, errWriteConflict)
		}
	}

	commitTS := m.oracle.Add(1)

	if err := m.log.Append(wal.Record{Type: wal.RecordBeginTxn, TxnID: t.ID}); err != nil {
		t.abortLocked(StatusAborted, "wal_error")
		return errs.NewStorageIo(op, err)
	}
	for _, k := range order {
		w := writes[k]
		rt := wal.RecordPut
		if w.tombstone {
			rt = wal.RecordDelete
		}
		rec := wal.Record{Type: rt, TxnID: t.ID, TableID: uint32(k.table), PK: k.pk, CommitTS: commitTS, Value: w.value}
		if _, err := m.log.Append(rec); err != nil {
			t.abortLocked(StatusAborted, "wal_error")
			return errs.NewStorageIo(op, err)
		}
	}
	if err := m.log.Append(wal.Record{Type: wal.RecordCommitTxn, TxnID: t.ID, CommitTS: commitTS}); err != nil {
		t.abortLocked(StatusAborted, "wal_error")
		return errs.NewStorageIo(op, err)
	}

	for _, k := range order {
		w := writes[k]
		if err := m.store.Put(k.table, k.pk, commitTS, w.value, w.tombstone); err != nil {
			m.logger.Error().Err(err).Msg("commit applied to WAL but KVStore.Put failed; recovery will replay it")
			return errs.NewStorageIo(op, err)
		}
		m.cache.Invalidate(k.table, k.pk)
	}

	t.finish(StatusCommitted)
	metrics.TxnCommitsTotal.Inc()
	timer.ObserveDuration(metrics.TxnCommitDuration)
	m.broker.Publish(&events.Event{Type: events.EventTxnCommitted, Message: "transaction committed"})
	return nil
}

// abortLocked marks the transaction aborted while the caller still
// holds its per-key stripe locks (used from inside Commit's failure
// paths, where releasing and reacquiring would be wasted work).
func (t *Txn) abortLocked(status Status, reason string) {
	t.finish(status)
	metrics.TxnAbortsTotal.WithLabelValues(reason).Inc()
}

// Rollback discards the write_set. Since writes never touched durable
// state before Commit, Rollback never leaves partial effects.
func (t *Txn) Rollback() error {
	const op = "txn.Txn.Rollback"
	if !t.status.CompareAndSwap(int32(StatusActive), int32(StatusAborted)) &&
		!t.status.CompareAndSwap(int32(StatusCommitting), int32(StatusAborted)) {
		return errs.NewBadInput(op, errTxnNotActive)
	}
	t.finish(StatusAborted)
	metrics.TxnAbortsTotal.WithLabelValues("rollback").Inc()
	t.mgr.broker.Publish(&events.Event{Type: events.EventTxnAborted, Message: "transaction rolled back"})
	return nil
}

func (t *Txn) finish(status Status) {
	t.status.Store(int32(status))
	t.snap.Close()
	m := t.mgr
	m.mu.Lock()
	delete(m.active, t.ID)
	m.mu.Unlock()
	metrics.TxnActiveGauge.Dec()
}

// ActiveTxnCount implements pkg/metrics.StatsSource.
func (m *Manager) ActiveTxnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// CacheStats implements pkg/metrics.StatsSource by delegating to the
// shared RowCache; hit/miss totals are tracked as counters by the
// cache package itself, so only occupancy is meaningful here.
func (m *Manager) CacheStats() (hits, misses uint64, occupancy int) {
	return 0, 0, m.cache.Len()
}

// DiskBytes implements pkg/metrics.StatsSource.
func (m *Manager) DiskBytes() (int64, error) { return m.store.DiskBytes() }

// WALSegmentCount implements pkg/metrics.StatsSource.
func (m *Manager) WALSegmentCount() int { return m.log.SegmentCount() }

// oldestActiveReadTS returns the smallest start_ts among active
// transactions, or the current oracle value if none are active --
// the GC watermark below which no reader could possibly still need an
// older shadowed version (spec.md §4.6).
func (m *Manager) oldestActiveReadTS() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.active) == 0 {
		return m.oracle.Load()
	}
	oldest := uint64(math.MaxUint64)
	for _, t := range m.active {
		if t.StartTS < oldest {
			oldest = t.StartTS
		}
	}
	return oldest
}

// Close stops background GC and releases no other resources -- the
// underlying KVStore, WAL, and RowCache are owned by the caller.
func (m *Manager) Close() {
	m.StopGC()
}
