package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmcp_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatmcp_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	ChannelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatmcp_channels_created_total",
			Help: "Total channels created",
		},
	)

	AgentsJoined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatmcp_agents_joined_total",
			Help: "Total agents that joined a channel",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatmcp_messages_sent_total",
			Help: "Total messages appended to channel logs",
		},
	)

	MessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmcp_messages_delivered_total",
			Help: "Total messages returned to agents",
		},
		[]string{"mode"}, // "unread", "history", "mentions"
	)

	// Concurrency metrics
	TxRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmcp_tx_retries_total",
			Help: "Operations retried after a transient transaction conflict",
		},
		[]string{"operation"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmcp_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
