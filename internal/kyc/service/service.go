// Package service runs KYC verifications for account applications. It owns
// the verification record lifecycle: a pending record is saved before the
// scorer runs and completed with the scorer's verdict afterwards.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"accountopen/internal/kyc/domain"
	kycmetrics "accountopen/internal/kyc/metrics"
	"accountopen/internal/kyc/models"
	"accountopen/internal/platform/tracer"
	"accountopen/internal/sentinel"
	dErrors "accountopen/pkg/domain-errors"
	"accountopen/pkg/platform/audit"
	"accountopen/pkg/platform/device"
	"accountopen/pkg/requestcontext"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultMaxConcurrency = 32
)

type Store interface {
	Save(ctx context.Context, v *models.Verification) error
	Update(ctx context.Context, v *models.Verification) error
	FindByID(ctx context.Context, id string) (*models.Verification, error)
	FindLatestByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Verification, error)
}

type Cache interface {
	Get(ctx context.Context, id string) (*models.Verification, error)
	Set(ctx context.Context, v *models.Verification) error
}

type Scorer interface {
	Score(ctx context.Context, info domain.PersonalInfo) (*domain.Result, error)
}

type EventPublisher interface {
	PublishCompleted(ctx context.Context, v *models.Verification) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates scoring, persistence, audit and event fan-out.
type Service struct {
	store   Store
	scorer  Scorer
	auditor AuditPublisher

	cache   Cache
	events  EventPublisher
	metrics *kycmetrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger

	timeout time.Duration
	now     func() time.Time
	newID   func() string

	workers     *errgroup.Group
	workerCtx   context.Context
	stopWorkers context.CancelFunc
	mu          sync.RWMutex
	closed      bool
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithMetrics(m *kycmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTimeout bounds each scorer call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxConcurrency bounds background verifications started by Submit.
func WithMaxConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers.SetLimit(n)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// New creates the service. Panics if a required dependency is nil.
func New(store Store, scorer Scorer, auditor AuditPublisher, opts ...Option) *Service {
	if store == nil {
		panic("service.New: store is required")
	}
	if scorer == nil {
		panic("service.New: scorer is required")
	}
	if auditor == nil {
		panic("service.New: auditor is required for compliance audit trail")
	}

	workerCtx, stop := context.WithCancel(context.Background())
	s := &Service{
		store:       store,
		scorer:      scorer,
		auditor:     auditor,
		tracer:      tracer.NewNoop(),
		logger:      slog.Default(),
		timeout:     DefaultTimeout,
		now:         time.Now,
		newID:       func() string { return domain.VerificationIDPrefix + uuid.NewString() },
		workers:     &errgroup.Group{},
		workerCtx:   workerCtx,
		stopWorkers: stop,
	}
	s.workers.SetLimit(DefaultMaxConcurrency)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify scores an application synchronously and returns the completed
// verification. On timeout or cancellation the record stays pending with a
// failure reason and the error is returned.
func (s *Service) Verify(ctx context.Context, applicationID string, info domain.PersonalInfo) (v *models.Verification, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanKYCVerify,
		tracer.String(tracer.AttrApplicationID, applicationID),
		tracer.Bool(tracer.AttrAsync, false),
	)
	defer func() { span.End(err) }()

	appID, err := parseApplicationID(applicationID)
	if err != nil {
		return nil, err
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrSSNHash, tracer.HashPII(info.SSN)))

	v, err = s.start(ctx, appID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrVerificationID, v.ID))

	if err := s.complete(ctx, v, info); err != nil {
		return nil, err
	}
	return v, nil
}

// Submit saves a pending verification and scores it on the background worker
// pool. The returned record is the pending snapshot.
func (s *Service) Submit(ctx context.Context, applicationID string, info domain.PersonalInfo) (v *models.Verification, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanKYCVerify,
		tracer.String(tracer.AttrApplicationID, applicationID),
		tracer.Bool(tracer.AttrAsync, true),
	)
	defer func() { span.End(err) }()

	appID, err := parseApplicationID(applicationID)
	if err != nil {
		return nil, err
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, dErrors.New(dErrors.CodeUnavailable, "verification service is shutting down")
	}

	v, err = s.start(ctx, appID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrVerificationID, v.ID))

	work := *v
	workCtx := s.detach(ctx)
	started := s.workers.TryGo(func() error {
		defer workCtx.cancel()
		// Failures are recorded on the verification and in logs.
		_ = s.complete(workCtx.ctx, &work, info)
		return nil
	})
	if !started {
		workCtx.cancel()
		s.abandon(ctx, v, "verification capacity exhausted", "capacity")
		return nil, dErrors.New(dErrors.CodeUnavailable, "verification capacity exhausted, retry later")
	}
	return v, nil
}

// Get returns a verification by id, consulting the cache first.
func (s *Service) Get(ctx context.Context, verificationID string) (*models.Verification, error) {
	if verificationID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "verification id is required")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, verificationID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "verification cache lookup failed",
				"verification_id", verificationID,
				"error", err,
			)
		}
	}

	v, err := s.store.FindByID(ctx, verificationID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load verification")
	}
	s.cacheCompleted(ctx, v)
	return v, nil
}

// Latest returns the most recent verification for an application.
func (s *Service) Latest(ctx context.Context, applicationID string) (*models.Verification, error) {
	appID, err := parseApplicationID(applicationID)
	if err != nil {
		return nil, err
	}
	v, err := s.store.FindLatestByApplication(ctx, appID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load verification")
	}
	return v, nil
}

// Close stops accepting background work and waits for running verifications.
// When ctx ends first, in-flight scoring is cancelled and ctx.Err() returned.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.stopWorkers()
		return nil
	case <-ctx.Done():
		s.stopWorkers()
		<-done
		return ctx.Err()
	}
}

func (s *Service) start(ctx context.Context, appID uuid.UUID) (*models.Verification, error) {
	v, err := models.NewPendingVerification(s.newID(), appID, s.now())
	if err != nil {
		return nil, err
	}
	v.RequestID = requestcontext.RequestID(ctx)

	if err := s.store.Save(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "verification already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification")
	}

	s.emitBestEffort(ctx, s.auditEvent(ctx, v, audit.EventKYCVerificationStarted, ""))
	return v, nil
}

// complete runs the scorer and records its verdict on v.
func (s *Service) complete(ctx context.Context, v *models.Verification, info domain.PersonalInfo) error {
	result, err := s.score(ctx, v, info)
	if err != nil {
		reason, label, derr := classifyScoreErr(err)
		s.abandon(ctx, v, reason, label)
		return derr
	}

	if err := v.Complete(result, s.now()); err != nil {
		s.abandon(ctx, v, "invalid provider result", "invalid_result")
		return dErrors.Wrap(err, dErrors.CodeInternal, "provider returned an invalid result")
	}

	if err := s.persist(ctx, v); err != nil {
		return err
	}

	if err := s.auditCompletion(ctx, v); err != nil {
		return err
	}

	s.cacheCompleted(ctx, v)
	s.publish(ctx, v)
	if s.metrics != nil {
		s.metrics.RecordVerification(string(v.Status), v.Confidence, v.Results.FailedComponents())
	}

	s.logger.InfoContext(ctx, "kyc verification completed",
		"verification_id", v.ID,
		"application_id", v.ApplicationID,
		"status", v.Status,
		"confidence", v.Confidence,
		"next_step", v.NextStep,
	)
	return nil
}

func (s *Service) score(ctx context.Context, v *models.Verification, info domain.PersonalInfo) (result *domain.Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, tracer.SpanKYCScore,
		tracer.String(tracer.AttrVerificationID, v.ID),
	)
	start := time.Now()
	if s.metrics != nil {
		s.metrics.IncInFlight()
	}
	defer func() {
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.DecInFlight()
			s.metrics.ObserveScoreDuration(elapsed.Seconds())
		}
		span.SetAttributes(tracer.Duration(tracer.AttrSimulatedLatency, elapsed))
		if result != nil {
			span.SetAttributes(
				tracer.String(tracer.AttrStatus, string(result.Status)),
				tracer.Float64(tracer.AttrConfidence, result.Confidence),
				tracer.Bool(tracer.AttrOfacPassed, result.Results.Ofac.Passed),
			)
		}
		span.End(err)
	}()

	return s.scorer.Score(ctx, info)
}

func (s *Service) persist(ctx context.Context, v *models.Verification) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanKYCPersist,
		tracer.String(tracer.AttrVerificationID, v.ID),
	)
	defer func() { span.End(err) }()

	if err := s.store.Update(ctx, v); err != nil {
		return wrapStoreErr(err, "failed to save verification result")
	}
	return nil
}

// auditCompletion records the outcome. A sanctions hit is fail-closed: the
// result is withheld unless the audit trail is written.
func (s *Service) auditCompletion(ctx context.Context, v *models.Verification) error {
	if v.OfacHit() {
		event := s.auditEvent(ctx, v, audit.EventKYCSanctionsHit, sanctionsReason(v))
		if err := s.auditor.Emit(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "CRITICAL: audit failed for sanctions hit - blocking response",
				"verification_id", v.ID,
				"application_id", v.ApplicationID,
				"error", err,
			)
			return dErrors.New(dErrors.CodeInternal, "verification audit unavailable")
		}
	}
	s.emitBestEffort(ctx, s.auditEvent(ctx, v, audit.EventKYCVerificationCompleted, string(v.NextStep)))
	return nil
}

func (s *Service) publish(ctx context.Context, v *models.Verification) {
	if s.events == nil {
		return
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanKYCPublish,
		tracer.String(tracer.AttrVerificationID, v.ID),
	)
	err := s.events.PublishCompleted(ctx, v)
	span.End(err)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish verification event",
			"verification_id", v.ID,
			"error", err,
		)
	}
}

func (s *Service) cacheCompleted(ctx context.Context, v *models.Verification) {
	if s.cache == nil || !v.IsCompleted() {
		return
	}
	if err := s.cache.Set(ctx, v); err != nil {
		s.logger.WarnContext(ctx, "failed to cache verification",
			"verification_id", v.ID,
			"error", err,
		)
	}
}

// abandon notes a failure reason on a pending record. Persistence runs
// without the caller's cancellation so the reason survives a timeout.
func (s *Service) abandon(ctx context.Context, v *models.Verification, reason, label string) {
	v.Abandon(reason, s.now())
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.Update(persistCtx, v); err != nil {
		s.logger.ErrorContext(ctx, "failed to record verification failure",
			"verification_id", v.ID,
			"error", err,
		)
	}
	s.emitBestEffort(persistCtx, s.auditEvent(ctx, v, audit.EventKYCVerificationFailed, reason))
	if s.metrics != nil {
		s.metrics.RecordError(label)
	}
	s.logger.WarnContext(ctx, "kyc verification did not complete",
		"verification_id", v.ID,
		"application_id", v.ApplicationID,
		"reason", reason,
	)
}

func (s *Service) emitBestEffort(ctx context.Context, event audit.Event) {
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"verification_id", event.VerificationID,
			"error", err,
		)
	}
}

func (s *Service) auditEvent(ctx context.Context, v *models.Verification, action audit.AuditEvent, reason string) audit.Event {
	return audit.Event{
		Category:       action.Category(),
		Timestamp:      s.now(),
		Subject:        v.ApplicationID.String(),
		VerificationID: v.ID,
		Action:         string(action),
		Decision:       string(v.Status),
		Reason:         reason,
		RequestID:      requestcontext.RequestID(ctx),
		Device:         device.Describe(requestcontext.UserAgent(ctx)),
	}
}

type detachedContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// detach keeps request values but drops the request's cancellation, tying
// the background work to the service lifetime instead.
func (s *Service) detach(ctx context.Context) detachedContext {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.workerCtx, cancel)
	return detachedContext{ctx: ctx, cancel: func() {
		stop()
		cancel()
	}}
}

func sanctionsReason(v *models.Verification) string {
	if v.Results == nil || len(v.Results.Ofac.Matches) == 0 {
		return ""
	}
	return v.Results.Ofac.Matches[0].ListType
}

func parseApplicationID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "application id is required")
	}
	appID, err := uuid.Parse(raw)
	if err != nil || appID == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "application id must be a valid UUID")
	}
	return appID, nil
}

// classifyScoreErr maps a scorer error to a stored reason, a metric label
// and the domain error returned to the caller.
func classifyScoreErr(err error) (string, string, error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "verification timed out", "timeout", dErrors.Wrap(err, dErrors.CodeTimeout, "verification timed out")
	case errors.Is(err, context.Canceled):
		return "verification canceled", "canceled", dErrors.Wrap(err, dErrors.CodeCanceled, "verification canceled")
	default:
		var derr *dErrors.Error
		if errors.As(err, &derr) {
			return derr.Error(), "rejected", err
		}
		return "provider error", "provider_error", dErrors.Wrap(err, dErrors.CodeInternal, "verification provider failed")
	}
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "verification not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
