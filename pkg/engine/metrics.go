package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the admission engine.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	admissions    *prometheus.CounterVec
	blocks        prometheus.Counter
	storeFailures prometheus.Counter
	duration      prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with Prometheus collectors.
// Collectors register on the default registry; create at most one per
// process.
func NewMetrics() *Metrics {
	return &Metrics{
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portcullis_engine_evaluations_total",
				Help: "Total number of admission evaluations by verdict reason",
			},
			[]string{"reason"},
		),

		admissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portcullis_engine_admissions_total",
				Help: "Total number of ledger admissions by tier and result",
			},
			[]string{"tier", "result"},
		),

		blocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "portcullis_engine_abuse_rejections_total",
				Help: "Total number of requests rejected by the abuse detector",
			},
		),

		storeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "portcullis_engine_store_failures_total",
				Help: "Total number of evaluations failed closed due to store errors",
			},
		),

		duration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "portcullis_engine_evaluation_duration_seconds",
				Help:    "Duration of admission evaluations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to 400ms
			},
		),
	}
}

// RecordEvaluation records a completed evaluation.
func (m *Metrics) RecordEvaluation(reason Reason) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(string(reason)).Inc()
}

// RecordAdmission records a ledger admission attempt.
func (m *Metrics) RecordAdmission(tier Tier, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.admissions.WithLabelValues(string(tier), result).Inc()
}

// RecordAbuseRejection records a request rejected by the abuse detector.
func (m *Metrics) RecordAbuseRejection() {
	if m == nil {
		return
	}
	m.blocks.Inc()
}

// RecordStoreFailure records an evaluation that failed closed because the
// store was unavailable.
func (m *Metrics) RecordStoreFailure() {
	if m == nil {
		return
	}
	m.storeFailures.Inc()
}

// RecordDuration records the duration of an evaluation in seconds.
func (m *Metrics) RecordDuration(seconds float64) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
}
