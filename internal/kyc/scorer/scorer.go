// Package scorer simulates a third-party KYC provider. Each call waits out a
// simulated provider latency, runs five independent randomized checks and
// aggregates them into a single verdict.
package scorer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"accountopen/internal/kyc/domain"
)

const (
	DefaultMinDelay = 1000 * time.Millisecond
	DefaultMaxDelay = 3000 * time.Millisecond
)

// Scorer produces mock verification results. It holds no per-call state and
// is safe for concurrent use as long as its Random is.
type Scorer struct {
	rng      Random
	delayer  Delayer
	newID    func() string
	now      func() time.Time
	minDelay time.Duration
	maxDelay time.Duration
	logger   *slog.Logger
}

type Option func(*Scorer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

func WithRandom(r Random) Option {
	return func(s *Scorer) {
		s.rng = r
	}
}

func WithDelayer(d Delayer) Option {
	return func(s *Scorer) {
		s.delayer = d
	}
}

// WithDelayRange overrides the simulated latency window [min, max).
func WithDelayRange(min, max time.Duration) Option {
	return func(s *Scorer) {
		if min >= 0 && max >= min {
			s.minDelay = min
			s.maxDelay = max
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Scorer) {
		s.newID = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

func New(opts ...Option) *Scorer {
	s := &Scorer{
		rng:      NewRandom(),
		delayer:  NewTimerDelayer(),
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score runs a verification for info. Malformed input is returned as an
// error before any wait. Business failures are reported in the result, and
// the only other error is ctx.Err() when the caller gives up during the wait.
func (s *Scorer) Score(ctx context.Context, info domain.PersonalInfo) (*domain.Result, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	delay := s.nextDelay()
	if err := s.delayer.Wait(ctx, delay); err != nil {
		s.logger.DebugContext(ctx, "verification abandoned during provider wait",
			"simulated_latency_ms", delay.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	results := domain.VerificationResults{
		Identity: s.checkIdentity(info),
		Address:  s.checkAddress(),
		Phone:    s.checkPhone(),
		Email:    s.checkEmail(info),
		Ofac:     s.screenOfac(info),
	}
	status, confidence := domain.Aggregate(results)

	verifiedAt := s.now()
	result := &domain.Result{
		Provider:       domain.ProviderName,
		VerificationID: domain.VerificationIDPrefix + s.newID(),
		Status:         status,
		Confidence:     confidence,
		VerifiedAt:     &verifiedAt,
		Results:        results,
	}

	s.logger.DebugContext(ctx, "verification scored",
		"verification_id", result.VerificationID,
		"status", status,
		"confidence", confidence,
		"simulated_latency_ms", delay.Milliseconds(),
	)
	return result, nil
}

// nextDelay samples the simulated latency. It is the first draw of a call.
func (s *Scorer) nextDelay() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.rng.Float64()*float64(span))
}
