// Package observability provides Prometheus metrics, HTTP middleware, and
// OpenTelemetry tracing setup for monitoring kette servers.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts all HTTP requests by status code and method.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kette_requests_total",
			Help: "Total requests",
		},
		[]string{"code", "method"},
	)

	// RequestsInFlight tracks HTTP requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kette_requests_in_flight",
			Help: "Requests being served",
		},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kette_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of streaming responses in flight.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kette_streaming_connections_active",
			Help: "Active streaming responses",
		},
	)

	// PipelineFailuresTotal counts failures captured by the pipeline, by phase.
	PipelineFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kette_pipeline_failures_total",
			Help: "Failures captured by the request pipeline",
		},
		[]string{"phase"},
	)

	// ShortCircuitsTotal counts requests answered directly by request middleware.
	ShortCircuitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kette_pipeline_short_circuits_total",
			Help: "Requests answered by request middleware",
		},
	)

	// ExceptionsTotal counts status-bearing exceptions entering recovery.
	ExceptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kette_exceptions_total",
			Help: "Exceptions routed to recovery",
		},
		[]string{"status"},
	)

	// DispatchTotal counts final dispatches by response kind and outcome.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kette_dispatch_total",
			Help: "Final response dispatches",
		},
		[]string{"kind", "outcome"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kette_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		StreamingConnections,
		PipelineFailuresTotal,
		ShortCircuitsTotal,
		ExceptionsTotal,
		DispatchTotal,
		RateLimitRejectedTotal,
	)
}
