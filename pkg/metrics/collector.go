package metrics

import "time"

// StatsSource is implemented by pkg/db.Database. It is defined here,
// rather than imported, so the metrics package never depends on the
// engine packages it instruments.
type StatsSource interface {
	CacheStats() (hits, misses uint64, occupancy int)
	ActiveTxnCount() int
	DiskBytes() (int64, error)
	WALSegmentCount() int
}

// Collector periodically samples gauge-valued metrics that are cheaper
// to poll than to update on every mutation (cache occupancy, active
// transaction count, on-disk size, live WAL segment count).
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a background ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	_, _, occupancy := c.source.CacheStats()
	CacheOccupancy.Set(float64(occupancy))

	TxnActiveGauge.Set(float64(c.source.ActiveTxnCount()))

	if size, err := c.source.DiskBytes(); err == nil {
		KVBytesOnDisk.Set(float64(size))
	}

	WALSegmentsTotal.Set(float64(c.source.WALSegmentCount()))
}
