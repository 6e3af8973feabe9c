// Package metrics holds the prometheus collectors shared by the querier,
// the normalizer and the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeEmpty       = "empty"
	OutcomeUnsupported = "unsupported"
	OutcomeInvalid     = "invalid"
)

var (
	// KPRequests counts HTTP requests sent to KPs.
	KPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expand_kp_requests_total",
		Help: "Requests sent to knowledge providers by outcome",
	}, []string{"kp", "outcome"})

	KPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expand_kp_request_duration_seconds",
		Help:    "Knowledge provider request latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"kp"})

	// OneHopQueries counts AnswerOneHop/AnswerSingleNode calls.
	OneHopQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expand_one_hop_queries_total",
		Help: "One-hop and single-node queries by kp and outcome",
	}, []string{"kp", "outcome"})

	DroppedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expand_dropped_items_total",
		Help: "Nodes and edges dropped from KP answers",
	}, []string{"kp", "reason"})

	NormalizerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expand_normalizer_calls_total",
		Help: "Identifier normalization lookups by operation and outcome",
	}, []string{"op", "outcome"})

	NormalizerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "expand_normalizer_duration_seconds",
		Help:    "Identifier normalization lookup latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expand_http_requests_total",
		Help: "HTTP requests served by route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expand_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
