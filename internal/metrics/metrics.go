// Package metrics provides Prometheus metrics for the BCID service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "bcid"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Minting metrics
var (
	// MintsTotal counts expedition mint attempts by outcome.
	MintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "minter",
			Name:      "mints_total",
			Help:      "Total expedition mint attempts",
		},
		[]string{"outcome"}, // ok, invalid, duplicate, unauthorized, error
	)

	// MintDuration tracks end-to-end mint latency.
	MintDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "minter",
			Name:      "mint_duration_seconds",
			Help:      "Expedition mint latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// ResolvesTotal counts resolver lookups by kind and outcome.
	ResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolves_total",
			Help:      "Total resolver lookups",
		},
		[]string{"kind", "outcome"}, // kind: token, code, resource
	)
)

// Registration metrics
var (
	// RegistrationsTotal counts registration attempts against the external
	// identifier authority.
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registrar",
			Name:      "registrations_total",
			Help:      "Total identifier registration attempts",
		},
		[]string{"result"}, // ok, error
	)

	// RegistrationsDropped counts events dropped due to a full queue.
	RegistrationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registrar",
			Name:      "dropped_total",
			Help:      "Registration events dropped due to queue overflow",
		},
	)

	// RegistrationQueueDepth tracks pending registration events.
	RegistrationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registrar",
			Name:      "queue_depth",
			Help:      "Registration events waiting to be dispatched",
		},
	)
)

// Auth metrics
var (
	// AuthAttemptsTotal counts authentication attempts.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total authentication attempts",
		},
		[]string{"result"}, // success, failure
	)
)
