package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesStored counts messages appended to a log, by conversation kind.
	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yummy_chat_messages_stored_total",
			Help: "Total number of messages appended to conversation logs",
		},
		[]string{"kind"},
	)

	// Pushes counts outbound socket events; result is "delivered" or "dropped".
	Pushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yummy_chat_pushes_total",
			Help: "Total number of events pushed to live connections",
		},
		[]string{"event", "result"},
	)

	OnlineConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yummy_chat_online_connections",
		Help: "Number of identified live connections",
	})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yummy_chat_online_users",
		Help: "Number of users with at least one live connection",
	})

	// StoreLatency records store operation latency in seconds.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yummy_chat_store_latency_seconds",
			Help:    "Store operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
