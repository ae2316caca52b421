package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the warehouse pipeline.
type Metrics struct {
	// Load metrics
	RowsAttempted    *prometheus.CounterVec
	RowsInserted     *prometheus.CounterVec
	RowConflicts     *prometheus.CounterVec
	MalformedRecords prometheus.Counter
	ChunkDuration    *prometheus.HistogramVec
	ChunkRetries     prometheus.Counter
	ChunkFailures    prometheus.Counter

	// Analytics metrics
	QueryDuration *prometheus.HistogramVec
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		RowsAttempted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_rows_attempted_total",
				Help:      "Fact rows offered to the store per table",
			},
			[]string{"table"},
		),
		RowsInserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_rows_inserted_total",
				Help:      "Fact rows actually inserted per table",
			},
			[]string{"table"},
		),
		RowConflicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_row_conflicts_total",
				Help:      "Rows skipped on conflict (attempted minus inserted)",
			},
			[]string{"table"},
		),
		MalformedRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_malformed_records_total",
				Help:      "Input records skipped for missing required fields",
			},
		),
		ChunkDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_chunk_duration_seconds",
				Help:      "Load duration per chunk",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"status"},
		),
		ChunkRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_chunk_retries_total",
				Help:      "Chunk retry attempts",
			},
		),
		ChunkFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_chunk_failures_total",
				Help:      "Chunks that exhausted their retries",
			},
		),
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analytics_query_duration_seconds",
				Help:      "Analytics computation duration",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"kind"},
		),
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analytics_cache_hits_total",
				Help:      "Analytics cache hits",
			},
			[]string{"kind"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analytics_cache_misses_total",
				Help:      "Analytics cache misses",
			},
			[]string{"kind"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLoad records one table's attempted/inserted row accounting.
func (m *Metrics) RecordLoad(table string, attempted, inserted int64) {
	m.RowsAttempted.WithLabelValues(table).Add(float64(attempted))
	m.RowsInserted.WithLabelValues(table).Add(float64(inserted))
	if attempted > inserted {
		m.RowConflicts.WithLabelValues(table).Add(float64(attempted - inserted))
	}
}

// RecordMalformed records a skipped input record.
func (m *Metrics) RecordMalformed() {
	m.MalformedRecords.Inc()
}

// RecordChunk records a chunk load outcome.
func (m *Metrics) RecordChunk(status string, d time.Duration) {
	m.ChunkDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordChunkRetry records a chunk retry attempt.
func (m *Metrics) RecordChunkRetry() {
	m.ChunkRetries.Inc()
}

// RecordChunkFailure records a chunk that exhausted its retries.
func (m *Metrics) RecordChunkFailure() {
	m.ChunkFailures.Inc()
}

// RecordQuery records an analytics computation.
func (m *Metrics) RecordQuery(kind string, d time.Duration) {
	m.QueryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordCache records a cache lookup outcome.
func (m *Metrics) RecordCache(kind string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(kind).Inc()
	} else {
		m.CacheMisses.WithLabelValues(kind).Inc()
	}
}
