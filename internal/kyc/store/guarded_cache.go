package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"accountopen/internal/kyc/models"
	"accountopen/pkg/platform/circuit"
)

// VerificationCache is the cache surface the service reads and fills.
type VerificationCache interface {
	Get(ctx context.Context, id string) (*models.Verification, error)
	Set(ctx context.Context, v *models.Verification) error
}

// GuardedCache skips a failing cache for a cooldown instead of paying its
// timeout on every lookup. While the circuit is open Get reports a miss and
// Set is a no-op.
type GuardedCache struct {
	cache   VerificationCache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuardedCache(cache VerificationCache, breaker *circuit.Breaker, logger *slog.Logger) *GuardedCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedCache{cache: cache, breaker: breaker, logger: logger}
}

func (g *GuardedCache) Get(ctx context.Context, id string) (*models.Verification, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("cache circuit open: %w", ErrNotFound)
	}
	v, err := g.cache.Get(ctx, id)
	g.record(ctx, err)
	return v, err
}

func (g *GuardedCache) Set(ctx context.Context, v *models.Verification) error {
	if !g.breaker.Allow() {
		return nil
	}
	err := g.cache.Set(ctx, v)
	g.record(ctx, err)
	return err
}

func (g *GuardedCache) record(ctx context.Context, err error) {
	if err == nil || errors.Is(err, ErrNotFound) {
		if g.breaker.RecordSuccess().Closed {
			g.logger.InfoContext(ctx, "verification cache recovered", "breaker", g.breaker.Name())
		}
		return
	}
	if g.breaker.RecordFailure().Opened {
		g.logger.WarnContext(ctx, "verification cache circuit opened",
			"breaker", g.breaker.Name(),
			"error", err,
		)
	}
}
