package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	quotesPublished atomic.Uint64
	swapsSettled    atomic.Uint64
	errorsTotal     atomic.Uint64

	// Gauges
	activeMonitors    atomic.Int32
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordQuote records one published quote.
func (m *Metrics) RecordQuote() {
	m.quotesPublished.Add(1)
}

// RecordSettlement records one settled swap.
func (m *Metrics) RecordSettlement() {
	m.swapsSettled.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// MonitorStarted increments the live swap-monitor gauge.
func (m *Metrics) MonitorStarted() {
	m.activeMonitors.Add(1)
}

// MonitorFinished decrements the live swap-monitor gauge.
func (m *Metrics) MonitorFinished() {
	m.activeMonitors.Add(-1)
}

// IncrementConnections increments active stream connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active stream connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	QuotesPublished   uint64
	SwapsSettled      uint64
	ErrorsTotal       uint64
	ActiveMonitors    int32
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		QuotesPublished:   m.quotesPublished.Load(),
		SwapsSettled:      m.swapsSettled.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		ActiveMonitors:    m.activeMonitors.Load(),
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.quotesPublished.Store(0)
	m.swapsSettled.Store(0)
	m.errorsTotal.Store(0)
	m.activeMonitors.Store(0)
	m.activeConnections.Store(0)
}
