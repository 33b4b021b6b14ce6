package txn

import (
	"time"

	"github.com/omendb/omendb/pkg/metrics"
)

// StartGC launches the background goroutine that periodically sweeps
// shadowed MVCC versions below oldestActiveReadTS (spec.md §4.6,
// "Garbage collection"). Safe to call once per Manager; a second call
// before StopGC is a no-op.
func (m *Manager) StartGC(interval time.Duration) {
	m.mu.Lock()
	if m.gcStop != nil {
		m.mu.Unlock()
		return
	}
	m.gcStop = make(chan struct{})
	m.gcDone = make(chan struct{})
	stop := m.gcStop
	done := m.gcDone
	m.mu.Unlock()

	if interval <= 0 {
		interval = 10 * time.Second
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.runGCCycle()
			}
		}
	}()
}

// StopGC halts the background GC goroutine, waiting for any in-flight
// cycle to finish. Safe to call multiple times or when GC was never
// started.
func (m *Manager) StopGC() {
	m.mu.Lock()
	stop := m.gcStop
	done := m.gcDone
	m.gcStop = nil
	m.gcDone = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// runGCCycle computes oldest_active_read_ts and asks the KVStore to
// remove any version shadowed below it.
func (m *Manager) runGCCycle() {
	watermark := m.oldestActiveReadTS()
	removed, err := m.store.GCVersions(watermark)
	if err != nil {
		m.logger.Warn().Err(err).Msg("GC cycle failed")
		return
	}
	metrics.TxnGCCyclesTotal.Inc()
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Uint64("watermark", watermark).Msg("GC cycle reclaimed shadowed versions")
	}
}
