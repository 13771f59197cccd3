package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		commandsReceivedTotal,
		commandOutcomesTotal,
		rateLimitTriggeredTotal,
	)
}

var (
	commandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickcommand_commands_received_total",
			Help: "Counts quick commands received per chat platform.",
		},
		[]string{"platform"},
	)

	commandOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickcommand_command_outcomes_total",
			Help: "Quick command results by outcome.",
		},
		[]string{"outcome"}, // usage, completed, submit_failed, poll_failed, busy, rate_limited, queue_full
	)

	rateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quickcommand_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)
)

func IncCommandReceived(platform string) {
	commandsReceivedTotal.WithLabelValues(norm(platform)).Inc()
}

func IncCommandOutcome(outcome string) {
	commandOutcomesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncRateLimitTriggered() {
	rateLimitTriggeredTotal.Inc()
}
