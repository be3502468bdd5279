package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	kychandler "accountopen/internal/kyc/handler"
	"accountopen/internal/kyc/events"
	"accountopen/internal/kyc/intake"
	kycmetrics "accountopen/internal/kyc/metrics"
	"accountopen/internal/kyc/scorer"
	kycservice "accountopen/internal/kyc/service"
	kycstore "accountopen/internal/kyc/store"
	"accountopen/internal/platform/config"
	"accountopen/internal/platform/database"
	"accountopen/internal/platform/health"
	"accountopen/internal/platform/httpserver"
	"accountopen/internal/platform/kafka/consumer"
	"accountopen/internal/platform/kafka/producer"
	"accountopen/internal/platform/logger"
	outboxmetrics "accountopen/internal/platform/outbox/metrics"
	outboxpostgres "accountopen/internal/platform/outbox/postgres"
	outboxworker "accountopen/internal/platform/outbox/worker"
	platformredis "accountopen/internal/platform/redis"
	"accountopen/internal/platform/tracer"
	httptransport "accountopen/internal/transport/http"
	"accountopen/migrations"
	"accountopen/pkg/platform/audit"
	auditmetrics "accountopen/pkg/platform/audit/metrics"
	auditpublisher "accountopen/pkg/platform/audit/publisher"
	auditmemory "accountopen/pkg/platform/audit/store/memory"
	auditpostgres "accountopen/pkg/platform/audit/store/postgres"
	"accountopen/pkg/platform/circuit"
	"accountopen/pkg/platform/middleware/request"
)

const (
	shutdownTimeout = 15 * time.Second
	auditBufferSize = 1024
	cacheCooldown   = 30 * time.Second
	migrateTimeout  = time.Minute
	// requestGrace is added on top of the verification timeout for the HTTP
	// handler deadline so the service reports its own timeout first.
	requestGrace = 5 * time.Second
)

// infra holds the optional backing services. Nil fields are not configured.
type infra struct {
	pool     *database.Pool
	redis    *platformredis.Client
	producer producer.Client
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/kyc.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	log.Info("initializing accountopen kyc",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"database", cfg.DatabaseURL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.Kafka.Brokers != "",
		"intake", cfg.IntakeEnabled(),
	)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	shutdownTracer, err := tracer.Setup(cfg.TracesExporter)
	if err != nil {
		return err
	}

	deps, err := connectInfra(cfg, log)
	if err != nil {
		return err
	}

	metrics := kycmetrics.New()
	healthHandler := health.New(cfg.Environment)
	registerHealthChecks(healthHandler, deps)

	auditor := auditpublisher.NewPublisher(auditStore(deps),
		auditpublisher.WithAsyncBuffer(auditBufferSize),
		auditpublisher.WithPublisherLogger(log),
		auditpublisher.WithPublisherMetrics(auditmetrics.New()),
	)

	opts := []kycservice.Option{
		kycservice.WithLogger(log),
		kycservice.WithMetrics(metrics),
		kycservice.WithTracer(tracer.NewOTel()),
		kycservice.WithTimeout(cfg.KYC.VerificationTimeout),
		kycservice.WithMaxConcurrency(cfg.KYC.MaxConcurrency),
	}

	// With both Postgres and Kafka available, completed events go through the
	// outbox so a broker outage delays them instead of dropping them.
	var relay *outboxworker.Worker
	if deps.pool != nil && cfg.Kafka.Brokers != "" {
		outboxStore := outboxpostgres.New(deps.pool.DB())
		relay = outboxworker.New(outboxStore, deps.producer, cfg.Kafka.EventsTopic,
			outboxworker.WithMetrics(outboxmetrics.New()),
			outboxworker.WithLogger(log),
		)
		opts = append(opts, kycservice.WithEventPublisher(events.NewOutboxPublisher(outboxStore)))
	} else {
		opts = append(opts, kycservice.WithEventPublisher(events.NewPublisher(deps.producer, cfg.Kafka.EventsTopic)))
	}
	if deps.redis != nil {
		cache := kycstore.NewGuardedCache(
			kycstore.NewRedisCache(deps.redis, cfg.KYC.CacheTTL, metrics),
			circuit.New("kyc-verification-cache", circuit.WithCooldown(cacheCooldown)),
			log,
		)
		opts = append(opts, kycservice.WithCache(cache))
	}

	svc := kycservice.New(
		verificationStore(deps),
		scorer.New(
			scorer.WithLogger(log),
			scorer.WithDelayRange(cfg.KYC.MinDelay, cfg.KYC.MaxDelay),
		),
		auditor,
		opts...,
	)

	var intakeConsumer *consumer.Consumer
	if cfg.IntakeEnabled() {
		intakeConsumer, err = consumer.New(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.IntakeGroupID,
			Topics:  []string{cfg.Kafka.IntakeTopic},
		}, intake.NewHandler(svc, tracer.NewOTel(), log), log)
		if err != nil {
			return fmt.Errorf("create intake consumer: %w", err)
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		RequestTimeout: cfg.KYC.VerificationTimeout + requestGrace,
		Metrics:        request.NewMetrics(),
		Health:         healthHandler,
		Routes:         []httptransport.Registrar{kychandler.New(svc, log)},
	})
	srv := httpserver.New(cfg.Addr, router, cfg.KYC.VerificationTimeout+2*requestGrace)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if relay != nil {
		relay.Start()
		log.Info("outbox relay started", "topic", cfg.Kafka.EventsTopic)
	}
	if intakeConsumer != nil {
		intakeConsumer.Start(bgCtx)
		log.Info("intake consumer started", "topic", cfg.Kafka.IntakeTopic, "group", cfg.Kafka.IntakeGroupID)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		log.Info("shutting down server gracefully")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if intakeConsumer != nil {
		if err := intakeConsumer.Stop(ctx); err != nil {
			log.Error("intake consumer stop failed", "error", err)
		}
	}
	if err := svc.Close(ctx); err != nil {
		log.Error("verification workers did not drain", "error", err)
	}
	if relay != nil {
		if err := relay.Stop(ctx); err != nil {
			log.Error("outbox relay stop failed", "error", err)
		}
	}
	stopBackground()
	auditor.Close()
	deps.close(log)
	if err := shutdownTracer(ctx); err != nil {
		log.Error("tracer shutdown failed", "error", err)
	}
	return runErr
}

// connectInfra opens every configured backing service. Kafka falls back to a
// no-op producer so completed events are simply dropped when it is disabled.
func connectInfra(cfg config.Server, log *slog.Logger) (*infra, error) {
	deps := &infra{producer: producer.NewNoopProducer()}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(context.Background(), dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		deps.pool = pool
		prometheus.MustRegister(pool.Collector())
		log.Info("database connected")
		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
			ran, err := database.Migrate(ctx, pool.DB(), migrations.FS)
			cancel()
			if err != nil {
				deps.close(log)
				return nil, fmt.Errorf("migrate database: %w", err)
			}
			log.Info("database migrations applied", "count", ran)
		}
	}

	redisClient, err := platformredis.New(context.Background(), cfg.Redis)
	if err != nil {
		deps.close(log)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		deps.redis = redisClient
		prometheus.MustRegister(redisClient.Collector())
		log.Info("redis connected")
	}

	if cfg.Kafka.Brokers != "" {
		prod, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			deps.close(log)
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		deps.producer = prod
		log.Info("kafka producer ready", "topic", cfg.Kafka.EventsTopic)
	}
	return deps, nil
}

func (d *infra) close(log *slog.Logger) {
	if err := d.producer.Close(); err != nil {
		log.Error("kafka producer close failed", "error", err)
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Error("redis close failed", "error", err)
		}
	}
	if err := d.pool.Close(); err != nil {
		log.Error("database close failed", "error", err)
	}
}

// registerHealthChecks gates readiness on the database only. The cache is
// behind a circuit breaker and events wait in the outbox, so either being
// down degrades the service without stopping it.
func registerHealthChecks(h *health.Handler, d *infra) {
	if d.pool != nil {
		h.RegisterCheck("database", d.pool.Health)
	}
	if d.redis != nil {
		h.RegisterOptionalCheck("redis", d.redis.Health)
	}
	prod := d.producer
	h.RegisterOptionalCheck("kafka", func(ctx context.Context) error {
		if !prod.Healthy(ctx) {
			return errors.New("kafka unreachable")
		}
		return nil
	})
}

func verificationStore(d *infra) kycservice.Store {
	if d.pool != nil {
		return kycstore.NewPostgres(d.pool.DB())
	}
	return kycstore.NewInMemoryStore()
}

func auditStore(d *infra) audit.Store {
	if d.pool != nil {
		return auditpostgres.New(d.pool.DB())
	}
	return auditmemory.NewInMemoryStore()
}
