package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"accountopen/internal/kyc/models"
)

const redisVerificationKeyPrefix = "kyc:verification:"

// CacheMetrics receives cache hit/miss counts. May be nil.
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// RedisCache caches completed verifications with TTL-based eviction. Completed
// records never change, so entries are only ever evicted by their TTL.
type RedisCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	metrics CacheMetrics
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, metrics CacheMetrics) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, metrics: metrics}
}

// Get loads a cached verification. A miss returns ErrNotFound.
func (c *RedisCache) Get(ctx context.Context, id string) (*models.Verification, error) {
	data, err := c.client.Get(ctx, verificationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.recordMiss()
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get verification cache: %w", err)
	}

	var v models.Verification
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode verification cache: %w", err)
	}
	c.recordHit()
	return &v, nil
}

// Set caches a completed verification. Pending records are skipped, since
// they are about to change.
func (c *RedisCache) Set(ctx context.Context, v *models.Verification) error {
	if v == nil {
		return fmt.Errorf("verification is required")
	}
	if !v.IsCompleted() {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode verification cache: %w", err)
	}
	if err := c.client.Set(ctx, verificationKey(v.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("save verification cache: %w", err)
	}
	return nil
}

func (c *RedisCache) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
}

func (c *RedisCache) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
}

func verificationKey(id string) string {
	return redisVerificationKeyPrefix + id
}
