package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/metrics"
	"github.com/omendb/omendb/pkg/types"
)

// rowKey identifies one cached row by table and primary key.
type rowKey struct {
	table types.TableID
	pk    int64
}

// cached is one cache slot: the latest row this process has observed
// for a key, tagged with the commit_ts it was valid as of. A reader
// with an older read_ts cannot trust this entry and must fall back to
// KVStore -- the cache never tries to answer for a snapshot older than
// what it happens to hold.
type cached struct {
	row      *types.Row
	commitTS uint64
}

// RowCache is a bounded LRU cache of decoded rows, fronting KVStore
// point reads. Every write that touches a cached key must invalidate
// it -- staleness here would surface as a transaction reading a value
// another committed transaction already overwrote.
type RowCache struct {
	lru *lru.Cache[rowKey, cached]
}

// NewRowCache creates a RowCache holding at most capacity rows.
func NewRowCache(capacity int) (*RowCache, error) {
	const op = "cache.NewRowCache"
	onEvict := func(rowKey, cached) { metrics.CacheEvictionsTotal.Inc() }
	l, err := lru.NewWithEvict[rowKey, cached](capacity, onEvict)
	if err != nil {
		return nil, errs.NewBadInput(op, err)
	}
	return &RowCache{lru: l}, nil
}

// Get returns the cached row for (table, pk) and the commit_ts it was
// cached at, if present. Callers must compare commitTS against their
// own read_ts before trusting the row -- a cache hit with a commitTS
// newer than the reader's snapshot is not a usable answer.
func (c *RowCache) Get(table types.TableID, pk int64) (row *types.Row, commitTS uint64, found bool) {
	entry, ok := c.lru.Get(rowKey{table, pk})
	if ok {
		metrics.CacheHitsTotal.Inc()
		return entry.row, entry.commitTS, true
	}
	metrics.CacheMissesTotal.Inc()
	return nil, 0, false
}

// Put caches row under (table, pk) as of commitTS, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *RowCache) Put(table types.TableID, pk int64, commitTS uint64, row *types.Row) {
	c.lru.Add(rowKey{table, pk}, cached{row: row, commitTS: commitTS})
}

// Invalidate removes a row from the cache. Callers must invalidate
// (table, pk) on every committed write to that row, including deletes.
func (c *RowCache) Invalidate(table types.TableID, pk int64) {
	c.lru.Remove(rowKey{table, pk})
}

// InvalidateTable drops every cached row belonging to table, used when
// a table is dropped.
func (c *RowCache) InvalidateTable(table types.TableID) {
	for _, key := range c.lru.Keys() {
		if key.table == table {
			c.lru.Remove(key)
		}
	}
}

// Len returns the current number of cached rows.
func (c *RowCache) Len() int {
	return c.lru.Len()
}

// Purge evicts every entry, e.g. before a full table scan that would
// otherwise thrash the cache with rows it will never be asked for again.
func (c *RowCache) Purge() {
	c.lru.Purge()
}
