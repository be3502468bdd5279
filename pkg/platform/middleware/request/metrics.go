package request

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP server series, labeled by chi route pattern.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	Responses       *prometheus.CounterVec
	InFlight        prometheus.Gauge
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Buckets reach past the scorer's 3s upper latency bound.
		EndpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accountopen_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		}, []string{"method", "route"}),
		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountopen_http_responses_total",
			Help: "HTTP responses by method, route and status code",
		}, []string{"method", "route", "status"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "accountopen_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

func (m *Metrics) ObserveEndpointLatency(method, route string, seconds float64) {
	m.EndpointLatency.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) IncResponse(method, route, status string) {
	m.Responses.WithLabelValues(method, route, status).Inc()
}
