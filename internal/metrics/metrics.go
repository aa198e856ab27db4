// Package metrics provides Prometheus metrics for the copier.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the copier.
type Metrics struct {
	// Row metrics
	RowsCopied *prometheus.CounterVec

	// Batch metrics
	BatchesCommitted *prometheus.CounterVec
	BatchFailures    *prometheus.CounterVec

	// Chunk metrics
	ChunksProcessed *prometheus.CounterVec
	ChunkFailures   *prometheus.CounterVec

	// Table metrics
	TablesCopied  *prometheus.CounterVec
	TableDuration *prometheus.HistogramVec

	// Pool metrics
	WorkersActive prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pgcopier"
	}

	m := &Metrics{
		RowsCopied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_copied_total",
				Help:      "Total number of rows committed to the target",
			},
			[]string{"schema", "table"},
		),
		BatchesCommitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_committed_total",
				Help:      "Total number of insert batches committed",
			},
			[]string{"schema", "table"},
		),
		BatchFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_failures_total",
				Help:      "Total number of insert batches that failed",
			},
			[]string{"schema", "table"},
		),
		ChunksProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_processed_total",
				Help:      "Total number of row chunks fully processed",
			},
			[]string{"schema", "table"},
		),
		ChunkFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_failures_total",
				Help:      "Total number of row chunks that failed",
			},
			[]string{"schema", "table"},
		),
		TablesCopied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tables_copied_total",
				Help:      "Total number of table copies by final status",
			},
			[]string{"schema", "status"},
		),
		TableDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "table_copy_duration_seconds",
				Help:      "Wall-clock duration of table copies",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
			},
			[]string{"schema", "table"},
		),
		WorkersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers_active",
				Help:      "Number of copy workers currently running",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Default returns the global metrics, initializing them on first use.
func Default() *Metrics {
	initOnce.Do(func() {
		if defaultMetrics == nil {
			Init("")
		}
	})
	return defaultMetrics
}

// Serve starts the metrics HTTP server if enabled. Blocks; run in a goroutine.
func Serve(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(cfg.Address, mux)
}
