package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accountopen/pkg/platform/middleware/request"
)

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Metrics        *request.Metrics
	Health         Registrar
	Routes         []Registrar
}

// NewRouter wires all public endpoints with middleware. Probes and /metrics sit
// outside the timeout and body limit so slow verifications never starve them.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		if cfg.RequestTimeout > 0 {
			api.Use(request.Timeout(cfg.RequestTimeout))
		}
		api.Use(request.BodyLimit(request.DefaultMaxBodyBytes))
		api.Use(request.ContentTypeJSON)
		for _, route := range cfg.Routes {
			route.Register(api)
		}
	})

	return r
}
