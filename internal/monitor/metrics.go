package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the NLQ service.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal         *prometheus.CounterVec
	QueryDuration        *prometheus.HistogramVec
	ValidationRejections *prometheus.CounterVec
	LLMLatency           *prometheus.HistogramVec
	RowsReturned         prometheus.Histogram
	RequestsInFlight     prometheus.Gauge
	QuestionSizeBytes    prometheus.Histogram
	HistoryBufferDrops   prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nlq",
				Name:      "queries_total",
				Help:      "Total number of natural language queries by stage and status.",
			},
			[]string{"stage", "status"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nlq",
				Name:      "query_duration_seconds",
				Help:      "End-to-end duration of query pipeline stages in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),

		ValidationRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nlq",
				Name:      "validation_rejections_total",
				Help:      "Total SQL statements rejected by the validator, by reason.",
			},
			[]string{"reason"},
		),

		LLMLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nlq",
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of LLM API calls by operation.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"operation"},
		),

		RowsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "nlq",
				Name:      "rows_returned",
				Help:      "Number of rows returned by executed queries.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nlq",
				Subsystem: "api",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),

		QuestionSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "nlq",
				Name:      "question_size_bytes",
				Help:      "Size of submitted questions in bytes.",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
			},
		),

		HistoryBufferDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nlq",
				Name:      "history_buffer_drops_total",
				Help:      "Query history records dropped because the write buffer was full.",
			},
		),
	}

	// Register all collectors
	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.ValidationRejections,
		m.LLMLatency,
		m.RowsReturned,
		m.RequestsInFlight,
		m.QuestionSizeBytes,
		m.HistoryBufferDrops,
	)

	return m
}

// RecordQuery records metrics for a completed pipeline stage.
func (m *Metrics) RecordQuery(stage, status string, durationSec float64) {
	m.QueriesTotal.WithLabelValues(stage, status).Inc()
	m.QueryDuration.WithLabelValues(stage).Observe(durationSec)
}

// RecordRejection records a validator rejection by reason.
func (m *Metrics) RecordRejection(reason string) {
	m.ValidationRejections.WithLabelValues(reason).Inc()
}

// RecordLLM records the latency of one LLM call.
func (m *Metrics) RecordLLM(operation string, durationSec float64) {
	m.LLMLatency.WithLabelValues(operation).Observe(durationSec)
}
