// Package metrics provides Prometheus metrics for ballotbox.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result outcomes.
const (
	OutcomeMatched   = "matched"
	OutcomeFallback  = "fallback"
	OutcomeUnhandled = "unhandled"
)

var (
	// DispatchesTotal tracks queries dispatched by page states.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ballotbox",
			Subsystem: "pagestate",
			Name:      "dispatches_total",
			Help:      "Total number of queries dispatched by page states",
		},
		[]string{"section", "query"},
	)

	// ResultsTotal tracks arriving results by how they were correlated.
	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ballotbox",
			Subsystem: "pagestate",
			Name:      "results_total",
			Help:      "Total number of results by correlation outcome",
		},
		[]string{"query", "outcome"},
	)

	// CyclesCompleted tracks page state cycles that delivered every step.
	CyclesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ballotbox",
			Subsystem: "pagestate",
			Name:      "cycles_completed_total",
			Help:      "Total number of page state cycles completed",
		},
		[]string{"section", "state"},
	)

	// ProtocolViolations tracks aborted cycles.
	ProtocolViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ballotbox",
			Subsystem: "pagestate",
			Name:      "protocol_violations_total",
			Help:      "Total number of cycles aborted on an unreachable state",
		},
	)

	// RequestsTotal tracks backend requests by status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ballotbox",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of backend requests",
		},
		[]string{"query", "status"},
	)

	// RequestDuration tracks backend request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ballotbox",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"query"},
	)

	// ActivePages tracks pages with a running event loop.
	ActivePages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ballotbox",
			Subsystem: "session",
			Name:      "active_pages",
			Help:      "Number of pages with a running event loop",
		},
	)
)

// Request statuses.
const (
	StatusOK          = "ok"
	StatusServerError = "server_error"
	StatusFailed      = "failed"
)
