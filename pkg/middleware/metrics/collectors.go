package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	functionInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "serverfn_invocations_total", Help: "server function invocations by outcome"},
		[]string{"function", "outcome"},
	)

	functionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serverfn_invocation_seconds",
			Help:    "server function invocation time.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"function"},
	)

	generationPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "serverfn_generation_passes_total", Help: "handler generation passes by outcome"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsToUri,
		totalHttpRequests,
		functionInvocations,
		functionDuration,
		generationPasses,
	)
}
