// Path: internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes recorded by the search controller.
const (
	OutcomeCommitted = "committed"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
)

var (
	// SearchFetches counts controller fetches by outcome.
	SearchFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasearch_fetches_total",
			Help: "Search fetches by outcome (committed, discarded, failed)",
		},
		[]string{"outcome"},
	)

	// SearchFetchDuration tracks how long a fetch took from trigger to completion.
	SearchFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediasearch_fetch_duration_seconds",
			Help:    "Duration of search fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// UpstreamRequests counts HTTP attempts against the media API by status code.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasearch_upstream_requests_total",
			Help: "Requests sent to the media search API by status code",
		},
		[]string{"code"},
	)

	// UpstreamRetries counts retried attempts.
	UpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediasearch_upstream_retries_total",
			Help: "Retried requests to the media search API",
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediasearch_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// ActiveSessions is the number of live search sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediasearch_active_sessions",
			Help: "Live search sessions",
		},
	)
)
