// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshCycles counts refresh cycles by outcome:
	// "published", "stale", "fetch_error", "decode_error".
	RefreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubestats_refresh_cycles_total",
			Help: "Refresh cycles by outcome",
		},
		[]string{"outcome"},
	)

	// StaleDrops counts completed cycles discarded because a newer cycle
	// had already published.
	StaleDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tubestats_refresh_stale_drops_total",
			Help: "Completed refresh cycles dropped because a newer one already published",
		},
	)

	// FetchDuration observes fetch latency per source ("dashboard", "predictions").
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubestats_fetch_duration_seconds",
			Help:    "Duration of source fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)

	// SnapshotSeq is the sequence number of the published snapshot.
	SnapshotSeq = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubestats_snapshot_seq",
			Help: "Sequence number of the currently published snapshot",
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tubestats_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubestats_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubestats_http_requests_total",
			Help: "HTTP API requests by route and status",
		},
		[]string{"route", "status"},
	)
)
