package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// FriendRequestsTotal counts friend request transitions by outcome.
	FriendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_friend_requests_total",
		Help: "Friend request transitions by outcome",
	}, []string{"outcome"})

	// MessagesTotal counts direct messages by result (sent, blocked).
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_messages_total",
		Help: "Direct messages by result",
	}, []string{"result"})

	// NotificationsCreated counts notifications written, by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_notifications_created_total",
		Help: "Notifications created by type",
	}, []string{"type"})

	// NotificationDeliveryFailures counts best-effort realtime deliveries that failed.
	NotificationDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialnet_notification_delivery_failures_total",
		Help: "Realtime notification deliveries that failed after commit",
	})

	// AnalyticsRollupDuration records how long a daily metrics rollup takes.
	AnalyticsRollupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "socialnet_analytics_rollup_duration_seconds",
		Help:    "Daily metrics rollup duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialnet_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialnet_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveRollup records the rollup duration since start.
func ObserveRollup(start time.Time) {
	AnalyticsRollupDuration.Observe(time.Since(start).Seconds())
}
