package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for TokenVault.
type Metrics struct {
	// --- Engine ---
	OpsCompleted        *prometheus.CounterVec
	OpsRejected         *prometheus.CounterVec
	OpDuration          *prometheus.HistogramVec
	EventSequence       prometheus.Gauge
	InvariantViolations prometheus.Counter

	// --- Valuation ---
	CanonicalTotal    prometheus.Gauge
	AvailableCapacity prometheus.Gauge
	SweepDuration     prometheus.Histogram
	RegisteredAssets  prometheus.Gauge

	// --- External collaborators ---
	TransferFailures *prometheus.CounterVec
	OracleQuotes     *prometheus.CounterVec

	// --- Channels & publishing ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PublishDrops       prometheus.Counter
	PublishedEvents    *prometheus.CounterVec
	PublishErrors      prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
	}

	return &Metrics{
		OpsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_ops_completed_total",
			Help: "Completed engine operations",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_ops_rejected_total",
			Help: "Rejected engine operations",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_op_duration_seconds",
			Help:    "End-to-end engine operation duration",
			Buckets: opBuckets,
		}, []string{"op"}),

		EventSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_event_sequence",
			Help: "Last emitted event sequence",
		}),

		InvariantViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_invariant_violations_total",
			Help: "Post-operation aggregate consistency failures",
		}),

		CanonicalTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_canonical_total_value",
			Help: "Total held value in canonical units, as of last sweep",
		}),

		AvailableCapacity: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_available_capacity",
			Help: "Remaining deposit capacity in canonical units, as of last sweep",
		}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_sweep_duration_seconds",
			Help:    "Total-value sweep duration",
			Buckets: opBuckets,
		}),

		RegisteredAssets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_registered_assets",
			Help: "Registered assets, the native one included",
		}),

		TransferFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_transfer_failures_total",
			Help: "External transfer failures",
		}, []string{"direction"}),

		OracleQuotes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_oracle_quotes_total",
			Help: "Price feed updates received",
		}, []string{"feed", "status"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PublishedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_published_events_total",
			Help: "Events published to NATS",
		}, []string{"event_type"}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_errors_total",
			Help: "NATS publish failures",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"method", "route"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
