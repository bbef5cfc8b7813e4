// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the relais gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// CallBuckets defines histogram buckets suited for proxied function calls,
// which range from sub-second lookups to hour-long remote computations.
var CallBuckets = []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900, 1800, 3600}

// VendorBuckets defines histogram buckets for upstream vendor API
// latencies, ranging from 50ms to 60s.
var VendorBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relais_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: CallBuckets,
		},
		[]string{"method"},
	)

	// InflightRequests tracks the number of HTTP requests currently being served.
	InflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relais_requests_inflight",
			Help: "In-flight HTTP requests",
		},
	)

	// InvocationsTotal counts proxied function invocations by function,
	// kind, and outcome (ok, error, denied, timeout).
	InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_invocations_total",
			Help: "Function proxy invocations",
		},
		[]string{"function", "kind", "status"},
	)

	// InvocationDuration records end-to-end invocation duration in seconds.
	InvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relais_invocation_duration_seconds",
			Help:    "Function proxy invocation duration",
			Buckets: CallBuckets,
		},
		[]string{"function", "kind"},
	)

	// SourceRequestsTotal counts requests sent to upstream vendor APIs
	// through the external proxy, by source, operation, and outcome.
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_source_requests_total",
			Help: "Vendor API requests",
		},
		[]string{"source", "operation", "status"},
	)

	// SourceRequestDuration records vendor API latency in seconds.
	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relais_source_request_duration_seconds",
			Help:    "Vendor API request duration",
			Buckets: VendorBuckets,
		},
		[]string{"source", "operation"},
	)

	// CallsRecordedTotal counts call ledger writes by backend and outcome.
	CallsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_calls_recorded_total",
			Help: "Call ledger writes",
		},
		[]string{"backend", "status"},
	)

	// RegistrySources tracks the number of registered sources per class
	// (data_source or function).
	RegistrySources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relais_registry_sources",
			Help: "Registered sources",
		},
		[]string{"class"},
	)

	// RateLimitRejectedTotal counts requests rejected by the gateway
	// rate limiter, by caller role.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_rate_limited_total",
			Help: "Requests rejected by rate limiting",
		},
		[]string{"role"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InflightRequests,
		InvocationsTotal,
		InvocationDuration,
		SourceRequestsTotal,
		SourceRequestDuration,
		CallsRecordedTotal,
		RegistrySources,
		RateLimitRejectedTotal,
	)
}
