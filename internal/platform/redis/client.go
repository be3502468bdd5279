package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"accountopen/internal/platform/config"
)

const pingTimeout = 5 * time.Second

// Client is the shared go-redis client. A nil *Client means Redis is not
// configured.
type Client struct {
	*redis.Client
}

// New parses cfg.URL, applies the pool overrides and pings the server. It
// returns (nil, nil) when no URL is set.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyOverrides(opts, cfg)

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: rdb}, nil
}

// applyOverrides copies the non-zero pool settings over the URL's options.
func applyOverrides(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Collector reads pool statistics on each scrape.
func (c *Client) Collector() prometheus.Collector {
	return &poolCollector{stats: c.PoolStats}
}

var (
	poolHitsDesc     = prometheus.NewDesc("accountopen_redis_pool_hits_total", "Connections found idle in the pool", nil, nil)
	poolMissesDesc   = prometheus.NewDesc("accountopen_redis_pool_misses_total", "Connections that had to be dialed", nil, nil)
	poolTimeoutsDesc = prometheus.NewDesc("accountopen_redis_pool_timeouts_total", "Waits for a pooled connection that timed out", nil, nil)
	poolTotalDesc    = prometheus.NewDesc("accountopen_redis_pool_total_conns", "Connections in the pool", nil, nil)
	poolIdleDesc     = prometheus.NewDesc("accountopen_redis_pool_idle_conns", "Idle connections in the pool", nil, nil)
)

type poolCollector struct {
	stats func() *redis.PoolStats
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolHitsDesc
	ch <- poolMissesDesc
	ch <- poolTimeoutsDesc
	ch <- poolTotalDesc
	ch <- poolIdleDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(poolHitsDesc, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(poolMissesDesc, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(poolTimeoutsDesc, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(poolTotalDesc, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(s.IdleConns))
}
