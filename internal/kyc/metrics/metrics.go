// Package metrics provides Prometheus metrics for KYC verification.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the KYC verification metrics.
type Metrics struct {
	VerificationsTotal     *prometheus.CounterVec   // Completed verifications by status
	VerificationErrors     *prometheus.CounterVec   // Verifications that did not complete, by reason
	ComponentFailuresTotal *prometheus.CounterVec   // Failed checks by component
	ScoreDurationSeconds   prometheus.Histogram     // Wall time of a scorer call, simulated latency included
	Confidence             *prometheus.HistogramVec // Overall confidence by status
	InFlight               prometheus.Gauge         // Verifications currently being scored

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// New registers the metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountopen_kyc_verifications_total",
			Help: "Total number of completed KYC verifications by status",
		}, []string{"status"}),

		VerificationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountopen_kyc_verification_errors_total",
			Help: "Total number of KYC verifications abandoned before a result, by reason",
		}, []string{"reason"}),

		ComponentFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountopen_kyc_component_failures_total",
			Help: "Total number of failed KYC checks by component",
		}, []string{"component"}),

		ScoreDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountopen_kyc_score_duration_seconds",
			Help:    "Duration of KYC scoring including simulated provider latency",
			Buckets: []float64{0.01, 0.5, 1, 1.5, 2, 2.5, 3, 5, 10},
		}),

		Confidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accountopen_kyc_confidence",
			Help:    "Overall KYC confidence by status",
			Buckets: []float64{0.1, 0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 1},
		}, []string{"status"}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "accountopen_kyc_verifications_in_flight",
			Help: "Number of KYC verifications currently being scored",
		}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountopen_kyc_cache_hits_total",
			Help: "Total number of verification cache hits",
		}),

		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountopen_kyc_cache_misses_total",
			Help: "Total number of verification cache misses",
		}),
	}
}

// RecordVerification records a completed verification and its failed components.
func (m *Metrics) RecordVerification(status string, confidence float64, failedComponents []string) {
	m.VerificationsTotal.WithLabelValues(status).Inc()
	m.Confidence.WithLabelValues(status).Observe(confidence)
	for _, c := range failedComponents {
		m.ComponentFailuresTotal.WithLabelValues(c).Inc()
	}
}

// RecordError records a verification that ended without a result.
func (m *Metrics) RecordError(reason string) {
	m.VerificationErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveScoreDuration(seconds float64) {
	m.ScoreDurationSeconds.Observe(seconds)
}

func (m *Metrics) IncInFlight() { m.InFlight.Inc() }

func (m *Metrics) DecInFlight() { m.InFlight.Dec() }

func (m *Metrics) RecordCacheHit() { m.CacheHitsTotal.Inc() }

func (m *Metrics) RecordCacheMiss() { m.CacheMissesTotal.Inc() }
