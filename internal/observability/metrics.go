package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "osm_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for shaping
// and auditing runs.
type Metrics struct {
	ElementsRead      prometheus.Counter
	RecordsProduced   prometheus.Counter
	NormalizeErrors   prometheus.Counter
	ElementsSkipped   prometheus.Counter
	UnsafeKeysDropped prometheus.Counter
	AuditElements     prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
	LoadRetries             prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ElementsRead,
		m.RecordsProduced,
		m.NormalizeErrors,
		m.ElementsSkipped,
		m.UnsafeKeysDropped,
		m.AuditElements,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.LoadRetries,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ElementsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_read_total",
			Help:      "Top-level elements read from the source document.",
		}),
		RecordsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      "Normalized records handed to the sink.",
		}),
		NormalizeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_errors_total",
			Help:      "Elements rejected for a missing or invalid required attribute.",
		}),
		ElementsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_skipped_total",
			Help:      "Top-level elements of an unrecognized type.",
		}),
		UnsafeKeysDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsafe_keys_dropped_total",
			Help:      "Tags left out of records because their key has a problem character.",
		}),
		AuditElements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_elements_total",
			Help:      "Top-level elements folded into an audit report.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a document pass is in progress, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of elements per batch read from the document.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100, 250, 500},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-normalize-load cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		LoadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_retries_total",
			Help:      "Sink writes retried after a failure.",
		}),
	}
}
