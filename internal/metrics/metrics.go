package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total messages delivered, by channel",
		},
		[]string{"channel"},
	)

	MessageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_failures_total",
			Help: "Total messages that exhausted their retry budget, by channel",
		},
		[]string{"channel"},
	)

	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total sweep iterations, by sweep and result",
		},
		[]string{"sweep", "result"},
	)

	RepliesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_replies_total",
			Help: "Total inbound whatsapp replies, by resolved action",
		},
		[]string{"action"},
	)
)

func Init() {
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(MessageFailures)
	prometheus.MustRegister(SweepRuns)
	prometheus.MustRegister(RepliesHandled)
}
