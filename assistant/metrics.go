package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_messages_total",
		Help: "Messages appended to the conversation timeline, by sender.",
	}, []string{"sender"})

	escalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_escalations_total",
		Help: "Handovers from the AI assistant to a pharmacist.",
	})

	pollCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_poll_cycles_total",
		Help: "History fetches performed by the escalation poll loop.",
	})

	platformErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_platform_errors_total",
		Help: "Failed calls to the pharmacy platform, by operation.",
	}, []string{"op"})
)
