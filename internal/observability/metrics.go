package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts credential checks by method and outcome.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alvacus_auth_attempts_total",
		Help: "Authentication attempts by method and outcome",
	}, []string{"method", "outcome"})

	// TokenRejections counts requests refused by an authorization gate.
	TokenRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alvacus_token_rejections_total",
		Help: "Requests rejected by an authorization gate",
	}, []string{"gate", "reason"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alvacus_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// MailDeliveries counts outgoing emails by template and result.
	MailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alvacus_mail_deliveries_total",
		Help: "Outgoing emails by template and result",
	}, []string{"template", "result"})

	// NotificationsPublished counts notifications fanned out over Redis.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alvacus_notifications_published_total",
		Help: "Notifications published by type and result",
	}, []string{"type", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
