// Package metrics provides Prometheus metrics for the rating engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Engine progress
	gamesProcessed prometheus.Counter
	gamesFailed    prometheus.Counter
	gamesSkipped   prometheus.Counter
	batchesFlushed prometheus.Counter

	// Rating writes
	ratingUpserts prometheus.Counter
	seedBySource  *prometheus.CounterVec

	// Dispatch health
	queueSize   prometheus.Gauge
	workerCount prometheus.Gauge

	// Latency
	gameProcessingLatency prometheus.Histogram
	batchPersistLatency   prometheus.Histogram
	storeQueryLatency     prometheus.Histogram

	// Store quality
	storeErrors *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager()
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitchelo",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.gamesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_processed_total",
		Help:      "Total number of games whose rating updates were persisted",
	})

	m.gamesFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_failed_total",
		Help:      "Total number of games rolled back after a processing error",
	})

	m.gamesSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_skipped_total",
		Help:      "Total number of games skipped as already processed in this run",
	})

	m.batchesFlushed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_flushed_total",
		Help:      "Total number of batches whose checkpoint was flushed",
	})

	m.ratingUpserts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_upserts_total",
		Help:      "Total number of (player, season, rating) rows written",
	})

	m.seedBySource = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "seed_initializations_total",
		Help:      "Cold-start rating initializations by source",
	}, []string{"source"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_queue_size",
		Help:      "Current number of queued game tasks",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of workers in the processing pool",
	})

	m.gameProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "game_processing_milliseconds",
		Help:      "Histogram of per-game reconstruction and rating latency",
		Buckets:   m.histogramBuckets,
	})

	m.batchPersistLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_persist_milliseconds",
		Help:      "Histogram of sequential batch persistence latency",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_milliseconds",
		Help:      "Histogram of store read latency",
		Buckets:   m.histogramBuckets,
	})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Store errors by kind",
	}, []string{"kind"})
}

// Handler returns an HTTP handler serving the manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package-level helpers delegating to the global manager.

func Handler() http.Handler { return globalManager.Handler() }

func RecordGameProcessed() { globalManager.gamesProcessed.Inc() }
func RecordGameFailed()    { globalManager.gamesFailed.Inc() }
func RecordGameSkipped()   { globalManager.gamesSkipped.Inc() }
func RecordBatchFlushed()  { globalManager.batchesFlushed.Inc() }

func RecordRatingUpsert() { globalManager.ratingUpserts.Inc() }

// RecordSeedInitialization tracks a cold-start initialization by source:
// "teammates", "market_value", or "baseline".
func RecordSeedInitialization(source string) {
	globalManager.seedBySource.WithLabelValues(source).Inc()
}

func UpdateQueueSize(n int)   { globalManager.queueSize.Set(float64(n)) }
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

func RecordGameProcessingLatency(ms float64) { globalManager.gameProcessingLatency.Observe(ms) }
func RecordBatchPersistLatency(ms float64)   { globalManager.batchPersistLatency.Observe(ms) }
func RecordStoreQueryLatency(ms float64)     { globalManager.storeQueryLatency.Observe(ms) }

func RecordStoreError(kind string) { globalManager.storeErrors.WithLabelValues(kind).Inc() }
