package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestsTotal, httpRequestDuration) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickcommand_http_requests_total",
			Help: "HTTP API requests by route pattern and status code.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quickcommand_http_request_duration_seconds",
			Help:    "HTTP API request latency.",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15, 60, 300},
		},
		[]string{"route"},
	)
)

func ObserveHTTPRequest(method, route string, code int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(seconds)
}
