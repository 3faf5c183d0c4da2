package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the QC
// pipeline.
type Metrics struct {
	ReadingsConsumed  prometheus.Counter
	DecodeErrors      prometheus.Counter
	ReadingsRejected  prometheus.Counter
	DuplicatesDropped prometheus.Counter
	LateReadings      prometheus.Counter

	// Per-check outcomes. Labels: check name.
	CheckFailures *prometheus.CounterVec
	CheckWarnings *prometheus.CounterVec

	AggregatesFinalized prometheus.Counter
	AnomaliesDetected   prometheus.Counter
	DegradedDays        prometheus.Counter

	SinkRetries       prometheus.Counter
	SinkWriteFailures prometheus.Counter

	OpenAccumulators prometheus.Gauge
	PipelineRunning  prometheus.Gauge

	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReadingsConsumed,
		m.DecodeErrors,
		m.ReadingsRejected,
		m.DuplicatesDropped,
		m.LateReadings,
		m.CheckFailures,
		m.CheckWarnings,
		m.AggregatesFinalized,
		m.AnomaliesDetected,
		m.DegradedDays,
		m.SinkRetries,
		m.SinkWriteFailures,
		m.OpenAccumulators,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
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
		ReadingsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "readings_consumed_total",
			Help:      "Total readings read from the source topic.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "decode_errors_total",
			Help:      "Total payloads dropped because they could not be decoded.",
		}),
		ReadingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "readings_rejected_total",
			Help:      "Total readings marked invalid by a hard QC check.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "duplicates_dropped_total",
			Help:      "Total readings dropped as exact device+timestamp duplicates.",
		}),
		LateReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "late_readings_total",
			Help:      "Total readings that arrived behind the device watermark.",
		}),
		CheckFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "check_failures_total",
			Help:      "QC check failures by check name.",
		}, []string{"check"}),
		CheckWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "check_warnings_total",
			Help:      "QC check warnings by check name.",
		}, []string{"check"}),
		AggregatesFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "aggregates_finalized_total",
			Help:      "Total device-days finalized into daily aggregates.",
		}),
		AnomaliesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "anomalies_detected_total",
			Help:      "Total daily aggregates flagged anomalous.",
		}),
		DegradedDays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "degraded_days_total",
			Help:      "Total device-days finalized below the availability threshold.",
		}),
		SinkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "sink_retries_total",
			Help:      "Total retried sink writes.",
		}),
		SinkWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_qc",
			Name:      "sink_write_failures_total",
			Help:      "Total sink writes that exhausted their retry budget.",
		}),
		OpenAccumulators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_qc",
			Name:      "open_accumulators",
			Help:      "Device-days currently accumulating.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_qc",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_qc",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_qc",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-validate-aggregate-persist cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
