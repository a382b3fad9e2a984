package processor

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics counts refresh jobs since the service started.
type ServiceMetrics struct {
	processed  atomic.Int64
	failed     atomic.Int64
	durationNs atomic.Int64
	maxNs      atomic.Int64
	startedAt  time.Time
}

type MetricsSnapshot struct {
	Processed     int64
	Failed        int64
	RatePerSecond float64
	AvgDuration   time.Duration
	MaxDuration   time.Duration
	Uptime        time.Duration
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{startedAt: time.Now()}
}

func (m *ServiceMetrics) RecordSuccess(d time.Duration) {
	m.processed.Add(1)
	m.durationNs.Add(int64(d))
	for {
		cur := m.maxNs.Load()
		if int64(d) <= cur || m.maxNs.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

func (m *ServiceMetrics) RecordFailure() {
	m.failed.Add(1)
}

func (m *ServiceMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Processed:   m.processed.Load(),
		Failed:      m.failed.Load(),
		MaxDuration: time.Duration(m.maxNs.Load()),
		Uptime:      time.Since(m.startedAt),
	}
	if secs := s.Uptime.Seconds(); secs > 0 {
		s.RatePerSecond = float64(s.Processed) / secs
	}
	if s.Processed > 0 {
		s.AvgDuration = time.Duration(m.durationNs.Load() / s.Processed)
	}
	return s
}
