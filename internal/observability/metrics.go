package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// Metrics contains the Prometheus metrics for full-text acquisition. They are
// registered with the default registry via promauto, so one namespace may only be
// created once per process.
type Metrics struct {
	// AttemptsTotal counts waterfall attempts by source and outcome.
	AttemptsTotal *prometheus.CounterVec

	// AttemptDuration observes the time spent on one source, in seconds.
	AttemptDuration *prometheus.HistogramVec

	// SessionsTotal counts finished sessions by result (success, exhausted, deadline).
	SessionsTotal *prometheus.CounterVec

	// SessionDuration observes whole-session duration in seconds.
	SessionDuration prometheus.Histogram

	// AcquiredBytes counts bytes of validated content by source.
	AcquiredBytes *prometheus.CounterVec

	// AdapterCrashes counts recovered adapter panics by source.
	AdapterCrashes *prometheus.CounterVec

	// EventsPublished counts outbound events by type and status.
	EventsPublished *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total acquisition attempts by source and outcome",
		}, []string{"source", "outcome"}),
		AttemptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of a single source attempt in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total acquisition sessions by result",
		}, []string{"result"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of acquisition sessions in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		AcquiredBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquired_bytes_total",
			Help:      "Total bytes of validated full text by source",
		}, []string{"source"}),
		AdapterCrashes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_crashes_total",
			Help:      "Total recovered adapter panics by source",
		}, []string{"source"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total events published by type and status",
		}, []string{"type", "status"}),
	}
}

// RecordAttempt records one finished attempt.
func (m *Metrics) RecordAttempt(source domain.SourceName, outcome domain.AttemptOutcome, durationSeconds float64) {
	m.AttemptsTotal.WithLabelValues(string(source), string(outcome)).Inc()
	m.AttemptDuration.WithLabelValues(string(source)).Observe(durationSeconds)
}

// RecordSession records a finished session. result is "success", "exhausted" or "deadline".
func (m *Metrics) RecordSession(result string, durationSeconds float64) {
	m.SessionsTotal.WithLabelValues(result).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordAcquired records validated content from source.
func (m *Metrics) RecordAcquired(source domain.SourceName, bytes int) {
	m.AcquiredBytes.WithLabelValues(string(source)).Add(float64(bytes))
}

// RecordAdapterCrash records a recovered adapter panic.
func (m *Metrics) RecordAdapterCrash(source domain.SourceName) {
	m.AdapterCrashes.WithLabelValues(string(source)).Inc()
}

// RecordEventPublished records an event publish attempt.
func (m *Metrics) RecordEventPublished(eventType string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}
