package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
)

// Config tunes the pgx-backed *sql.DB. An empty URL means no database.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// ErrNotConfigured is returned by Health on a nil Pool.
var ErrNotConfigured = errors.New("database not configured")

// Pool owns the verification database handle. A nil *Pool is valid and
// reports ErrNotConfigured from Health.
type Pool struct {
	db  *sql.DB
	cfg Config
}

// New opens the pool and pings it within cfg.ConnectTimeout. It returns
// (nil, nil) when cfg.URL is empty.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{db: db, cfg: cfg}, nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return ErrNotConfigured
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// Collector exposes pool statistics to Prometheus.
func (p *Pool) Collector() prometheus.Collector {
	return &statsCollector{pool: p}
}

var (
	openConnsDesc = prometheus.NewDesc("accountopen_db_open_connections", "Established connections, in use and idle", nil, nil)
	inUseDesc     = prometheus.NewDesc("accountopen_db_in_use_connections", "Connections currently in use", nil, nil)
	idleDesc      = prometheus.NewDesc("accountopen_db_idle_connections", "Idle connections", nil, nil)
	waitCountDesc = prometheus.NewDesc("accountopen_db_wait_count_total", "Total connections waited for", nil, nil)
	waitTimeDesc  = prometheus.NewDesc("accountopen_db_wait_duration_seconds_total", "Total time blocked waiting for a connection", nil, nil)
)

type statsCollector struct {
	pool *Pool
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- openConnsDesc
	ch <- inUseDesc
	ch <- idleDesc
	ch <- waitCountDesc
	ch <- waitTimeDesc
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(openConnsDesc, prometheus.GaugeValue, float64(s.OpenConnections))
	ch <- prometheus.MustNewConstMetric(inUseDesc, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(idleDesc, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(waitCountDesc, prometheus.CounterValue, float64(s.WaitCount))
	ch <- prometheus.MustNewConstMetric(waitTimeDesc, prometheus.CounterValue, s.WaitDuration.Seconds())
}
