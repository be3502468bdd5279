package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	PollDuration    prometheus.Histogram
	PurgedTotal     prometheus.Counter
}

// New registers the outbox metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the outbox metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PendingDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "accountopen_outbox_pending_total",
			Help: "Current number of undelivered outbox entries",
		}),
		PublishedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountopen_outbox_published_total",
			Help: "Outbox entries delivered to Kafka",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountopen_outbox_publish_failures_total",
			Help: "Failed outbox fetches and deliveries",
		}),
		PublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountopen_outbox_publish_duration_seconds",
			Help:    "Time taken to deliver one outbox entry",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountopen_outbox_batch_size",
			Help:    "Entries fetched per poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountopen_outbox_poll_duration_seconds",
			Help:    "Time taken by each non-empty poll cycle",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PurgedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountopen_outbox_purged_total",
			Help: "Delivered outbox entries removed by retention cleanup",
		}),
	}
}

func (m *Metrics) SetPendingDepth(count int64) { m.PendingDepth.Set(float64(count)) }

func (m *Metrics) IncPublished() { m.PublishedTotal.Inc() }

func (m *Metrics) IncPublishFailures() { m.PublishFailures.Inc() }

func (m *Metrics) ObservePublishDuration(seconds float64) { m.PublishDuration.Observe(seconds) }

func (m *Metrics) ObserveBatchSize(size int) { m.BatchSize.Observe(float64(size)) }

func (m *Metrics) ObservePollDuration(seconds float64) { m.PollDuration.Observe(seconds) }

func (m *Metrics) AddPurged(n int64) { m.PurgedTotal.Add(float64(n)) }
