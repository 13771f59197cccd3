package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(remoteCallsLatencyMs, pollAttempts)
}

var (
	remoteCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quickcommand_remote_calls_latency_ms",
			Help:    "Remote API call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"op", "success"}, // op: token, submit, status
	)

	pollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quickcommand_poll_attempts",
			Help:    "Status queries needed per quick command execution.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		},
	)
)

func ObserveRemoteCall(op string, latencyMs int64, success bool) {
	remoteCallsLatencyMs.WithLabelValues(norm(op), strconv.FormatBool(success)).Observe(float64(latencyMs))
}

func ObservePollAttempts(n int) {
	pollAttempts.Observe(float64(n))
}
