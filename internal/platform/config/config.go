package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	TracesExporter string // "none" or "stdout"
	DatabaseURL    string
	AutoMigrate    bool // apply embedded migrations at startup
	Redis          RedisConfig
	Kafka          KafkaConfig
	KYC            KYCConfig
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures event publishing and intake. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers       string
	EventsTopic   string
	IntakeTopic   string
	IntakeGroupID string
}

// KYCConfig tunes the verification pipeline.
type KYCConfig struct {
	VerificationTimeout time.Duration
	CacheTTL            time.Duration
	MaxConcurrency      int
	MinDelay            time.Duration
	MaxDelay            time.Duration
}

// Defaults used when the environment does not override them.
const (
	DefaultAddr                = ":8080"
	DefaultEventsTopic         = "kyc.verification.completed"
	DefaultIntakeTopic         = "account.application.submitted"
	DefaultIntakeGroupID       = "accountopen-kyc"
	DefaultVerificationTimeout = 10 * time.Second
	DefaultCacheTTL            = 5 * time.Minute
	DefaultMaxConcurrency      = 32
	DefaultMinDelay            = 1000 * time.Millisecond
	DefaultMaxDelay            = 3000 * time.Millisecond
)

// FromEnv builds a Server config from environment variables so main stays lean.
// Unparseable values fall back to their defaults.
func FromEnv() Server {
	cfg := Server{
		Addr:           stringEnv("ACCOUNTOPEN_ADDR", DefaultAddr),
		Environment:    stringEnv("ENVIRONMENT", "development"),
		LogLevel:       stringEnv("LOG_LEVEL", "info"),
		TracesExporter: stringEnv("OTEL_TRACES_EXPORTER", "none"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AutoMigrate:    boolEnv("DB_AUTO_MIGRATE", false),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       os.Getenv("KAFKA_BROKERS"),
			EventsTopic:   stringEnv("KYC_EVENTS_TOPIC", DefaultEventsTopic),
			IntakeTopic:   os.Getenv("KYC_INTAKE_TOPIC"),
			IntakeGroupID: stringEnv("KYC_INTAKE_GROUP_ID", DefaultIntakeGroupID),
		},
		KYC: KYCConfig{
			VerificationTimeout: durationEnv("KYC_VERIFICATION_TIMEOUT", DefaultVerificationTimeout),
			CacheTTL:            durationEnv("KYC_CACHE_TTL", DefaultCacheTTL),
			MaxConcurrency:      intEnv("KYC_MAX_CONCURRENCY", DefaultMaxConcurrency),
			MinDelay:            durationEnv("KYC_MIN_DELAY", DefaultMinDelay),
			MaxDelay:            durationEnv("KYC_MAX_DELAY", DefaultMaxDelay),
		},
	}

	if cfg.KYC.MinDelay < 0 || cfg.KYC.MaxDelay < cfg.KYC.MinDelay {
		cfg.KYC.MinDelay, cfg.KYC.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if cfg.KYC.MaxConcurrency <= 0 {
		cfg.KYC.MaxConcurrency = DefaultMaxConcurrency
	}
	return cfg
}

// IntakeEnabled reports whether the Kafka intake consumer should run.
func (s Server) IntakeEnabled() bool {
	return s.Kafka.Brokers != "" && s.Kafka.IntakeTopic != ""
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
