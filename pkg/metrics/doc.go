/*
Package metrics defines and registers OmenDB's Prometheus metrics.

Metrics cover the KVStore, WAL, RowCache, transaction manager, and both
indexes (ALEX and HNSW). There is no HTTP server here -- an embedder
scrapes by calling WriteText against a writer of its choosing.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │  KV: gets, puts, compactions, bytes on disk │          │
	│  │  WAL: appends, segments, truncations        │          │
	│  │  Cache: hits, misses, evictions, occupancy  │          │
	│  │  Txn: begins, commits, aborts, conflicts    │          │
	│  │  ALEX: position error, leaf hits, retrains  │          │
	│  │  HNSW: nodes visited, recall, cache misses  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │             Collector                       │          │
	│  │  - Ticker-driven gauge refresh (15s)        │          │
	│  │  - Polls a StatsSource (pkg/db.Database)     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          WriteText(w io.Writer)              │          │
	│  │  - Prometheus text exposition format         │          │
	│  │  - github.com/prometheus/common/expfmt       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	import "github.com/omendb/omendb/pkg/metrics"

	timer := metrics.NewTimer()
	row, found, err := db.GetByPK(tx, table, pk)
	timer.ObserveDuration(metrics.KVGetDuration)
	metrics.KVGetsTotal.Inc()

	col := metrics.NewCollector(db)
	col.Start()
	defer col.Stop()

	var buf bytes.Buffer
	if err := metrics.WriteText(&buf); err != nil {
		log.Errorf("metrics export failed: %v", err)
	}

# Design Patterns

Package-init registration: every metric is a package-level variable
registered in init(); MustRegister panics on a duplicate name, which
catches typos at import time rather than at scrape time.

Event-driven counters are incremented inline at the call site (KVGetsTotal,
TxnCommitsTotal); gauges that are expensive to keep current on every write
(cache occupancy, on-disk size) are instead refreshed by Collector on a
timer.
*/
package metrics
