package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit publisher.
type Metrics struct {
	QueueDepth      prometheus.Gauge
	EventsEnqueued  prometheus.Counter
	EventsDropped   prometheus.Counter
	EventsPersisted *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PersistDuration prometheus.Histogram
}

// New registers the audit metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the audit metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "accountopen_audit_queue_depth",
			Help: "Audit events waiting in the async publisher buffer",
		}),
		EventsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountopen_audit_events_enqueued_total",
			Help: "Audit events accepted into the async buffer",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountopen_audit_events_dropped_total",
			Help: "Audit events rejected because the async buffer was full",
		}),
		EventsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountopen_audit_events_persisted_total",
			Help: "Audit events written to the store by category",
		}, []string{"category"}),
		PersistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountopen_audit_persist_failures_total",
			Help: "Audit store writes that failed by category",
		}, []string{"category"}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountopen_audit_persist_duration_seconds",
			Help:    "Time taken to write one audit event to the store",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncQueueDepth() { m.QueueDepth.Inc() }

func (m *Metrics) DecQueueDepth() { m.QueueDepth.Dec() }

func (m *Metrics) IncEventsEnqueued() { m.EventsEnqueued.Inc() }

func (m *Metrics) IncEventsDropped() { m.EventsDropped.Inc() }

// ObservePersist records one store write and its outcome.
func (m *Metrics) ObservePersist(category string, seconds float64, err error) {
	m.PersistDuration.Observe(seconds)
	if err != nil {
		m.PersistFailures.WithLabelValues(category).Inc()
		return
	}
	m.EventsPersisted.WithLabelValues(category).Inc()
}
