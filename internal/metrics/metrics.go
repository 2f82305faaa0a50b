package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database connection metrics
	// ============================================
	DBConnectionPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_pool_size",
		Help: "Database connection pool size",
	})

	DBConnectionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_active",
		Help: "Number of active database connections",
	})

	DBConnectionIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_idle",
		Help: "Number of idle database connections",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// Deposit pipeline metrics
	// ============================================
	DepositsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_deposits_detected_total",
			Help: "Total number of deposits detected",
		},
		[]string{"network"},
	)

	DepositsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_deposits_confirmed_total",
			Help: "Total number of deposits that reached required confirmations",
		},
		[]string{"network"},
	)

	WrappedMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_wrapped_minted_total",
			Help: "Total number of wrapped mint operations",
		},
		[]string{"symbol"},
	)

	MonitoredAddresses = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_monitored_addresses",
			Help: "Number of deposit addresses currently monitored",
		},
		[]string{"network"},
	)

	DetectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_detection_errors_total",
			Help: "Total number of address polling errors",
		},
		[]string{"network", "error_type"},
	)

	// ============================================
	// Withdrawal pipeline metrics
	// ============================================
	WithdrawalsRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_withdrawals_requested_total",
			Help: "Total number of withdrawal requests accepted",
		},
		[]string{"network"},
	)

	WithdrawalsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_withdrawals_completed_total",
			Help: "Total number of withdrawals completed",
		},
		[]string{"network"},
	)

	WithdrawalsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_withdrawals_failed_total",
			Help: "Total number of withdrawals failed after burn",
		},
		[]string{"network"},
	)

	WrappedBurned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_wrapped_burned_total",
			Help: "Total number of wrapped burn operations",
		},
		[]string{"symbol"},
	)

	// ============================================
	// Network health metrics
	// ============================================
	NetworkOnline = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_network_online",
			Help: "Network RPC reachability (1=online, 0=offline)",
		},
		[]string{"network"},
	)

	NetworkBlockHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_network_block_height",
			Help: "Latest observed block height per network",
		},
		[]string{"network"},
	)

	// ============================================
	// Consistency metrics
	// ============================================
	ConsistencyIncidents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_consistency_incidents_total",
			Help: "Total number of consistency incidents raised",
		},
		[]string{"kind"},
	)

	// ============================================
	// NATS publish metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_nats_events_published_total",
			Help: "Total number of NATS events published",
		},
		[]string{"subject"},
	)

	NATSPublishFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_nats_publish_failed_total",
			Help: "Total number of NATS publish failures",
		},
		[]string{"subject"},
	)
)
