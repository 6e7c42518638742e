package processor

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics counts outcomes of the processor since start.
type ServiceMetrics struct {
	processed       atomic.Int64
	failed          atomic.Int64
	skipped         atomic.Int64
	totalDurationNs atomic.Int64
	startedAt       time.Time
}

type Snapshot struct {
	Processed     int64
	Failed        int64
	Skipped       int64
	RatePerSecond float64
	AvgDuration   time.Duration
	Uptime        time.Duration
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{startedAt: time.Now()}
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	m.processed.Add(1)
	m.totalDurationNs.Add(int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	m.failed.Add(1)
}

func (m *ServiceMetrics) RecordSkipped() {
	m.skipped.Add(1)
}

func (m *ServiceMetrics) Snapshot() Snapshot {
	processed := m.processed.Load()
	uptime := time.Since(m.startedAt)

	snap := Snapshot{
		Processed: processed,
		Failed:    m.failed.Load(),
		Skipped:   m.skipped.Load(),
		Uptime:    uptime,
	}
	if secs := uptime.Seconds(); secs > 0 {
		snap.RatePerSecond = float64(processed) / secs
	}
	if processed > 0 {
		snap.AvgDuration = time.Duration(m.totalDurationNs.Load() / processed)
	}
	return snap
}
