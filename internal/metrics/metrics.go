// Package metrics holds the Prometheus collectors for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "countingbot"

var (
	// Gateway
	GatewayConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "connects_total",
			Help:      "Gateway handshakes by mode (identify or resume)",
		},
		[]string{"mode"},
	)

	GatewayDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "disconnects_total",
			Help:      "Gateway connections that ended",
		},
	)

	GatewayHeartbeats = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "heartbeats_total",
			Help:      "Heartbeats sent and acknowledged",
		},
		[]string{"direction"}, // "sent", "ack"
	)

	GatewayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "events_total",
			Help:      "Dispatch events received by type",
		},
		[]string{"type"},
	)

	GatewayMalformedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "malformed_frames_total",
			Help:      "Frames dropped because they could not be decoded",
		},
	)

	GatewaySequence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "sequence",
			Help:      "Last sequence number seen",
		},
	)

	// Counting
	CountingMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "counting",
			Name:      "messages_total",
			Help:      "Processed counting messages by verdict",
		},
		[]string{"verdict"},
	)

	CountingBaseline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "counting",
			Name:      "baseline",
			Help:      "Last accepted number",
		},
	)

	CountingPersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "counting",
			Name:      "persist_errors_total",
			Help:      "Failed durable writes by operation",
		},
		[]string{"op"},
	)

	// Goals
	GoalProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "goals",
			Name:      "progress_percent",
			Help:      "Last computed progress of the current goal",
		},
	)

	GoalsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "goals",
			Name:      "completed_total",
			Help:      "Goals completed",
		},
	)

	// Achievements
	AchievementsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "achievements",
			Name:      "awarded_total",
			Help:      "Achievements awarded by id",
		},
		[]string{"achievement"},
	)

	// Notifier
	NotifierRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "requests_total",
			Help:      "Discord REST calls by operation and result",
		},
		[]string{"op", "result"},
	)

	NotifierQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "queue_in_flight",
			Help:      "Side effects published but not yet handled",
		},
		[]string{"topic"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Disconnect reporter
	DisconnectsToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "disconnects_today",
			Help:      "Gateway disconnects recorded for the current UTC day",
		},
	)
)
