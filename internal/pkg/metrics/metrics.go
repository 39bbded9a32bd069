package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "commands_total",
		Help:      "Synchronous billing commands by command and result.",
	}, []string{"command", "result"})

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})

	statusWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "status_writes_total",
		Help:      "Subscription status writes by source and status.",
	}, []string{"source", "status"})
)

// ObserveCommand counts a start-checkout, cancel or reactivate invocation.
func ObserveCommand(command, result string) {
	commandsTotal.WithLabelValues(command, result).Inc()
}

// ObserveWebhook counts a webhook delivery. Unknown event types are folded
// into "other" to keep label cardinality bounded.
func ObserveWebhook(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveStatusWrite counts a status write from a command ("optimistic") or
// a webhook ("webhook").
func ObserveStatusWrite(source, status string) {
	statusWritesTotal.WithLabelValues(source, status).Inc()
}
