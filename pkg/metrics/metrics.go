package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	// KVStore metrics
	KVGetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_kv_gets_total",
			Help: "Total number of point gets against the KVStore",
		},
	)

	KVPutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_kv_puts_total",
			Help: "Total number of puts against the KVStore",
		},
	)

	KVGetDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omendb_kv_get_duration_seconds",
			Help:    "KVStore point get latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	KVCompactionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_kv_compactions_total",
			Help: "Total number of LSM compaction cycles run",
		},
	)

	KVBytesOnDisk = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omendb_kv_bytes_on_disk",
			Help: "Total on-disk size of the KVStore, in bytes",
		},
	)

	// WAL metrics
	WALAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_wal_appends_total",
			Help: "Total number of records appended to the write-ahead log",
		},
	)

	WALAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omendb_wal_append_duration_seconds",
			Help:    "WAL append (including fsync, when sync_on_commit is set) latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WALSegmentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omendb_wal_segments_total",
			Help: "Current number of live WAL segment files",
		},
	)

	WALTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_wal_truncations_total",
			Help: "Total number of WAL segments reclaimed after a checkpoint",
		},
	)

	// RowCache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_cache_hits_total",
			Help: "Total RowCache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_cache_misses_total",
			Help: "Total RowCache misses",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_cache_evictions_total",
			Help: "Total RowCache entries evicted to respect capacity",
		},
	)

	CacheOccupancy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omendb_cache_occupancy",
			Help: "Current number of entries held in the RowCache",
		},
	)

	// Transaction manager metrics
	TxnBeginsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_txn_begins_total",
			Help: "Total number of transactions begun",
		},
	)

	TxnCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_txn_commits_total",
			Help: "Total number of transactions committed",
		},
	)

	TxnAbortsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omendb_txn_aborts_total",
			Help: "Total number of transactions aborted, by reason",
		},
		[]string{"reason"},
	)

	TxnConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_txn_conflicts_total",
			Help: "Total number of first-committer-wins conflicts detected at commit time",
		},
	)

	TxnActiveGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omendb_txn_active",
			Help: "Current number of open (not yet committed or rolled back) transactions",
		},
	)

	TxnCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omendb_txn_commit_duration_seconds",
			Help:    "Time from Commit() call to durable WAL commit record, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TxnGCCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_txn_gc_cycles_total",
			Help: "Total number of old-version garbage collection cycles run",
		},
	)

	// ALEX learned index metrics
	AlexPositionErrorAbs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omendb_alex_position_error_abs",
			Help:    "Absolute difference between a leaf model's predicted position and the actual found position",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
		},
	)

	AlexLeafHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_alex_leaf_hits_total",
			Help: "Total number of lookups resolved by exponential/binary search within a leaf's bounded error range",
		},
	)

	AlexRetrainsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_alex_retrains_total",
			Help: "Total number of leaf model retrains triggered by drift or split",
		},
	)

	AlexSplitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omendb_alex_splits_total",
			Help: "Total number of leaf node splits",
		},
	)

	// HNSW vector index metrics
	HNSWNodesVisited = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omendb_hnsw_nodes_visited",
			Help:    "Number of candidate nodes visited per KNN search",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	HNSWSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omendb_hnsw_search_duration_seconds",
			Help:    "KNN search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	HNSWRecallEstimate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omendb_hnsw_recall_estimate",
			Help: "Sampled recall@k estimate against brute-force ground truth, refreshed periodically",
		},
	)

	HNSWCacheMissRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omendb_hnsw_cache_miss_rate",
			Help: "Fraction of neighbor-list reads that missed the node's cache line prefetch, sampled",
		},
	)

	HNSWInsertDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omendb_hnsw_insert_duration_seconds",
			Help:    "HNSW Insert latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	HNSWNodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omendb_hnsw_nodes_total",
			Help: "Total number of vectors indexed, by table and column",
		},
		[]string{"table", "column"},
	)
)

func init() {
	prometheus.MustRegister(
		KVGetsTotal, KVPutsTotal, KVGetDuration, KVCompactionsTotal, KVBytesOnDisk,
		WALAppendsTotal, WALAppendDuration, WALSegmentsTotal, WALTruncationsTotal,
		CacheHitsTotal, CacheMissesTotal, CacheEvictionsTotal, CacheOccupancy,
		TxnBeginsTotal, TxnCommitsTotal, TxnAbortsTotal, TxnConflictsTotal,
		TxnActiveGauge, TxnCommitDuration, TxnGCCyclesTotal,
		AlexPositionErrorAbs, AlexLeafHitsTotal, AlexRetrainsTotal, AlexSplitsTotal,
		HNSWNodesVisited, HNSWSearchDuration, HNSWRecallEstimate, HNSWCacheMissRate,
		HNSWInsertDuration, HNSWNodesTotal,
	)
}

// WriteText renders the current state of every registered metric in
// Prometheus text exposition format. OmenDB has no HTTP server (the
// metrics endpoint is a non-goal), so callers that want to expose these
// values write the result to a file, a log line, or an embedder-supplied
// writer themselves.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
