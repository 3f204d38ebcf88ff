package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubConnectedClients tracks live WebSocket connections across all sessions
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Live WebSocket connections across all sessions",
		},
	)

	// HubActiveTopics tracks session topics with at least one subscriber
	HubActiveTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_topics",
			Help: "Session topics with at least one subscriber",
		},
	)

	// HubBroadcastsTotal tracks broadcasts by event type
	HubBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Broadcasts dispatched by event type",
		},
		[]string{"event"},
	)

	// HubSlowClientsEvicted tracks clients dropped because their send buffer filled
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Clients dropped because their send buffer filled",
		},
	)

	// HubCommandChannelDepth tracks current hub command channel depth
	HubCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_command_channel_depth",
			Help: "Current hub command channel depth",
		},
	)
)

// Buzz arbitration metrics
var (
	// BuzzArrivalsTotal tracks arrival registrations by outcome
	BuzzArrivalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzz_arrivals_total",
			Help: "Buzz arrivals by outcome (accepted, window_not_open, duplicate)",
		},
		[]string{"outcome"},
	)

	// BuzzWindowsOpened tracks opened buzz windows
	BuzzWindowsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buzz_windows_opened_total",
			Help: "Buzz windows opened",
		},
	)

	// BuzzResolutionsTotal tracks windows resolved or closed without resolution
	BuzzResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzz_resolutions_total",
			Help: "Buzz windows finalized by kind (resolved, closed)",
		},
		[]string{"kind"},
	)

	// BuzzResolveDuration tracks time spent computing a resolution
	BuzzResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buzz_resolve_duration_seconds",
			Help:    "Time spent computing a buzz resolution",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// BuzzLogFailures tracks failed durable buzz log writes
	BuzzLogFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buzz_log_failures_total",
			Help: "Failed durable buzz log writes",
		},
	)
)

// WebSocket protocol metrics
var (
	// WSMessagesReceived tracks inbound client events by type
	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_received_total",
			Help: "Inbound client events by type",
		},
		[]string{"event"},
	)

	// WSInvalidMessages tracks inbound frames rejected at decode or validation
	WSInvalidMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_invalid_messages_total",
			Help: "Inbound frames rejected at decode or validation",
		},
	)

	// WSRateLimited tracks inbound frames dropped by the per-connection limiter
	WSRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_rate_limited_total",
			Help: "Inbound frames dropped by the per-connection rate limiter",
		},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerState tracks current breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// CircuitBreakerStateChanges tracks breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)
)

// Database metrics
var (
	// DBQueryDuration tracks query latency by simplified query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration by query kind",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks failed queries by simplified query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Failed database queries by query kind",
		},
		[]string{"query"},
	)
)

// Cross-instance relay metrics
var (
	// RelayPublished tracks envelopes published to the event bus
	RelayPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Broadcast envelopes published to the event bus",
		},
	)

	// RelayDelivered tracks envelopes received from other instances
	RelayDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_delivered_total",
			Help: "Broadcast envelopes received from other instances",
		},
	)

	// RelayDropped tracks relay messages that could not be parsed or routed
	RelayDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dropped_total",
			Help: "Relay messages that could not be parsed or routed",
		},
	)
)
