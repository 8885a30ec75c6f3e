package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the debt engine.
type Metrics struct {
	// --- Engine ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Price ingestion ---
	PriceUpdatesApplied *prometheus.CounterVec
	PriceUpdatesDropped *prometheus.CounterVec
	PriceIngestLatency  *prometheus.HistogramVec

	// --- Operation log persistence ---
	OplogWritten   prometheus.Counter
	OplogBatchSize prometheus.Histogram
	OplogBatchDur  prometheus.Histogram
	OplogErrors    *prometheus.CounterVec
	OplogRetry     prometheus.Counter
	OplogQueueSize prometheus.Gauge

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Engine
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ttc_engine_ops_applied_total",
			Help: "Mutations successfully applied by the engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ttc_engine_ops_rejected_total",
			Help: "Mutations rejected and rolled back",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ttc_engine_op_duration_seconds",
			Help:    "Time to apply a single engine mutation",
			Buckets: opBuckets,
		}, []string{"op"}),

		// Price ingestion
		PriceUpdatesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ttc_price_updates_applied_total",
			Help: "Price updates applied to the feed store",
		}, []string{"feed"}),

		PriceUpdatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ttc_price_updates_dropped_total",
			Help: "Price updates dropped (stale, malformed, invalid)",
		}, []string{"feed", "reason"}),

		PriceIngestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ttc_price_ingest_latency_seconds",
			Help:    "NATS receive to feed store apply",
			Buckets: ingestBuckets,
		}, []string{"feed"}),

		// Operation log persistence
		OplogWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ttc_oplog_written_total",
			Help: "Operations written to Postgres",
		}),

		OplogBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttc_oplog_batch_size",
			Help:    "Operations per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		OplogBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttc_oplog_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		OplogErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ttc_oplog_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		OplogRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ttc_oplog_retry_total",
			Help: "Persistence retries",
		}),

		OplogQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ttc_oplog_queue_size",
			Help: "Operations buffered for persistence",
		}),

		// HTTP API
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ttc_http_requests_total",
			Help: "API requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ttc_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}
