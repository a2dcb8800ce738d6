// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "radpad_intake"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Debounce metrics
	DebounceCommits    *prometheus.CounterVec
	DebounceSuperseded *prometheus.CounterVec

	// Capture metrics
	CaptureSessionsTotal  prometheus.Counter
	CaptureSessionsActive prometheus.Gauge
	CaptureRestarts       prometheus.Counter
	CaptureInterim        prometheus.Counter
	CaptureFinal          prometheus.Counter
	CaptureErrors         *prometheus.CounterVec

	// Validation metrics
	ValidationAttempts *prometheus.CounterVec
	ValidationOverride prometheus.Counter
	ValidationLatency  prometheus.Histogram
	WorkflowRejected   *prometheus.CounterVec
	CreditsRemaining   prometheus.Gauge

	// Search metrics
	SearchQueries *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		DebounceCommits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_commits_total",
			Help:      "Total number of debounced commits delivered",
		}, []string{"field", "trigger"}),
		DebounceSuperseded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_superseded_total",
			Help:      "Total number of pending commits superseded or cancelled",
		}, []string{"field"}),

		CaptureSessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_total",
			Help:      "Total number of capture sessions started",
		}),
		CaptureSessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_sessions_active",
			Help:      "Number of capture sessions currently listening",
		}),
		CaptureRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_restarts_total",
			Help:      "Total number of recognizer restarts inside a capture session",
		}),
		CaptureInterim: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_interim_updates_total",
			Help:      "Total number of interim updates published",
		}),
		CaptureFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_final_segments_total",
			Help:      "Total number of final segments appended to dictation buffers",
		}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of capture session errors",
		}, []string{"code"}),

		ValidationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_attempts_total",
			Help:      "Total number of validation attempts by outcome",
		}, []string{"outcome"}),
		ValidationOverride: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_overrides_total",
			Help:      "Total number of override submissions",
		}),
		ValidationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_latency_seconds",
			Help:      "Remote validator round-trip latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		WorkflowRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_rejected_total",
			Help:      "Total number of submissions rejected locally",
		}, []string{"kind"}),
		CreditsRemaining: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credits_remaining",
			Help:      "Validation credits remaining according to the ledger",
		}),

		SearchQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Total number of list-search queries by result",
		}, []string{"list", "result"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"route"}),
	}
}

// RecordDebounceCommit records a commit delivered by a debounced field.
func (m *Metrics) RecordDebounceCommit(field, trigger string) {
	m.DebounceCommits.WithLabelValues(field, trigger).Inc()
}

// RecordDebounceSuperseded records a pending commit that will never fire.
func (m *Metrics) RecordDebounceSuperseded(field string) {
	m.DebounceSuperseded.WithLabelValues(field).Inc()
}

// RecordCaptureStart records a capture session starting.
func (m *Metrics) RecordCaptureStart() {
	m.CaptureSessionsTotal.Inc()
	m.CaptureSessionsActive.Inc()
}

// RecordCaptureEnd records a capture session ending.
func (m *Metrics) RecordCaptureEnd() {
	m.CaptureSessionsActive.Dec()
}

// RecordCaptureRestart records a recognizer restart.
func (m *Metrics) RecordCaptureRestart() {
	m.CaptureRestarts.Inc()
}

// RecordInterimUpdate records an interim update.
func (m *Metrics) RecordInterimUpdate() {
	m.CaptureInterim.Inc()
}

// RecordFinalSegment records a final segment.
func (m *Metrics) RecordFinalSegment() {
	m.CaptureFinal.Inc()
}

// RecordCaptureError records a capture error.
func (m *Metrics) RecordCaptureError(code string) {
	m.CaptureErrors.WithLabelValues(code).Inc()
}

// RecordValidation records a validation round-trip.
func (m *Metrics) RecordValidation(outcome string, override bool, latencySeconds float64) {
	m.ValidationAttempts.WithLabelValues(outcome).Inc()
	m.ValidationLatency.Observe(latencySeconds)
	if override {
		m.ValidationOverride.Inc()
	}
}

// RecordRejected records a submission rejected before reaching the network.
func (m *Metrics) RecordRejected(kind string) {
	m.WorkflowRejected.WithLabelValues(kind).Inc()
}

// SetCreditsRemaining updates the credits gauge.
func (m *Metrics) SetCreditsRemaining(n int) {
	m.CreditsRemaining.Set(float64(n))
}

// RecordSearch records a list-search query result.
func (m *Metrics) RecordSearch(list, result string) {
	m.SearchQueries.WithLabelValues(list, result).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method, status string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(durationSeconds)
}
