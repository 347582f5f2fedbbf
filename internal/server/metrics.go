package server

import (
	"sync/atomic"
	"time"
)

// Metrics holds server runtime counters
type Metrics struct {
	ConnectionsTotal  atomic.Int64
	ActiveConnections atomic.Int64
	RequestsTotal     atomic.Int64
	Responses2xx      atomic.Int64
	Errors4xx         atomic.Int64
	PathEscapes       atomic.Int64
	ConnectionErrors  atomic.Int64 // aborted without a response
	BytesSent         atomic.Int64 // body bytes only

	TotalLatencyNs atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a request that got a response
func (m *Metrics) RecordRequest(statusCode int, bodyBytes int64, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())
	m.BytesSent.Add(bodyBytes)

	switch {
	case statusCode >= 200 && statusCode < 300:
		m.Responses2xx.Add(1)
	case statusCode >= 400 && statusCode < 500:
		m.Errors4xx.Add(1)
	}
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}
	return time.Duration(m.TotalLatencyNs.Load() / totalReqs)
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	ConnectionsTotal  int64
	ActiveConnections int64
	RequestsTotal     int64
	Responses2xx      int64
	Errors4xx         int64
	PathEscapes       int64
	ConnectionErrors  int64
	BytesSent         int64
	AverageLatency    time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsTotal:  m.ConnectionsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		RequestsTotal:     m.RequestsTotal.Load(),
		Responses2xx:      m.Responses2xx.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		PathEscapes:       m.PathEscapes.Load(),
		ConnectionErrors:  m.ConnectionErrors.Load(),
		BytesSent:         m.BytesSent.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
