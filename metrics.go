package raft

import metrics "github.com/armon/go-metrics"

// Metrics is the counters facade the engine reports through, backed by
// armon/go-metrics the way hashicorp/raft itself is. It is purely
// observational: nothing in the engine branches on a metric.
type Metrics interface {
	IncrCounter(key []string, val float32)
}

// noopMetrics discards everything; used when a Config carries no
// Metrics sink.
type noopMetrics struct{}

func (noopMetrics) IncrCounter([]string, float32) {}

// defaultMetricsSink wraps the process-global armon/go-metrics sink, for
// hosts that want metrics without wiring their own sink.
func defaultMetricsSink() Metrics {
	return globalMetrics{}
}

type globalMetrics struct{}

func (globalMetrics) IncrCounter(key []string, val float32) {
	metrics.IncrCounter(key, val)
}
