/*
Package cache implements RowCache, a bounded LRU of decoded rows sitting
in front of the KVStore's point-read path.

# Architecture

	┌──────────────────────── ROWCACHE ──────────────────────────┐
	│                                                              │
	│  Get(table, pk) ──hit──► (*types.Row, commitTS), caller checks│
	│       │                  commitTS against its own read_ts    │
	│       └─miss──► KVStore.Get ──► Put(table, pk, ts, row)      │
	│                                                              │
	│  Any committed write to (table, pk) ──► Invalidate(table,pk) │
	│  Table drop ──► InvalidateTable(table)                       │
	│                                                              │
	│  Backed by github.com/hashicorp/golang-lru/v2; eviction on   │
	│  capacity overflow increments omendb_cache_evictions_total.  │
	└────────────────────────────────────────────────────────────┘

# Invalidation discipline

RowCache has no TTL and no write-through path of its own: pkg/txn is
responsible for calling Invalidate on every key it writes as part of
commit, after the write is durable in the KVStore. A missed invalidation
would let a reader observe a value a later transaction already
superseded, which MVCC snapshot isolation (spec.md §3) promises never
happens.

# Usage

	import "github.com/omendb/omendb/pkg/cache"

	rc, err := cache.NewRowCache(cfg.Cache.Capacity)

	if row, commitTS, ok := rc.Get(tableID, pk); ok && commitTS <= readTS {
		return row, nil
	}
	row, commitTS, err := loadFromKVStore(tableID, pk, readTS)
	rc.Put(tableID, pk, commitTS, row)
*/
package cache
