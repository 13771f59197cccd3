package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(chatMessagesSentTotal) }

var chatMessagesSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quickcommand_chat_messages_sent_total",
		Help: "Outgoing chat messages (chunks) per platform.",
	},
	[]string{"platform", "success"},
)

func IncChatMessageSent(platform string, success bool) {
	chatMessagesSentTotal.WithLabelValues(norm(platform), strconv.FormatBool(success)).Inc()
}
