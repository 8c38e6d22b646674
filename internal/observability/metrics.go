package observability

import "github.com/prometheus/client_golang/prometheus"

// unmatchedRoute labels requests for paths outside the served route set.
const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidmetrics_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "vidmetrics_http_request_duration_seconds",
			Help: "HTTP request latency by route.",
			// Answers wait on the completion service; the top bucket is the HTTP write timeout.
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 45},
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds)
}
