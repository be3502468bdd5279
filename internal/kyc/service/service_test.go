package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Cache,Scorer,EventPublisher,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"accountopen/internal/kyc/domain"
	kycmetrics "accountopen/internal/kyc/metrics"
	"accountopen/internal/kyc/models"
	"accountopen/internal/kyc/scorer"
	"accountopen/internal/kyc/service/mocks"
	"accountopen/internal/kyc/store"
	dErrors "accountopen/pkg/domain-errors"
	"accountopen/pkg/platform/audit"
	auditmemory "accountopen/pkg/platform/audit/store/memory"
	"accountopen/pkg/platform/audit/publisher"
	"accountopen/pkg/requestcontext"
	"accountopen/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	ctx        context.Context
	store      *store.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	auditor    *publisher.Publisher
	scorer     *mocks.MockScorer
	events     *mocks.MockEventPublisher
	cache      *mocks.MockCache
	metrics    *kycmetrics.Metrics
	appID      string
	now        time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = requestcontext.WithRequestID(context.Background(), "req-123")
	s.store = store.NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.auditor = publisher.NewPublisher(s.auditStore)
	s.scorer = mocks.NewMockScorer(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)
	s.cache = mocks.NewMockCache(s.ctrl)
	s.metrics = kycmetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.appID = uuid.NewString()
	s.now = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) newService(auditor AuditPublisher, opts ...Option) *Service {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithEventPublisher(s.events),
		WithCache(s.cache),
		WithClock(func() time.Time { return s.now }),
	}
	return New(s.store, s.scorer, auditor, append(base, opts...)...)
}

func applicant() domain.PersonalInfo {
	return domain.PersonalInfo{
		FirstName: "Jane",
		LastName:  "Doe",
		SSN:       "123-45-6789",
		Email:     "jane@example.com",
	}
}

func (s *ServiceSuite) result(status domain.Status, confidence float64, ofac domain.OfacResult) *domain.Result {
	verifiedAt := s.now
	return &domain.Result{
		Provider:       domain.ProviderName,
		VerificationID: "kyc_provider",
		Status:         status,
		Confidence:     confidence,
		VerifiedAt:     &verifiedAt,
		Results: domain.VerificationResults{
			Identity: domain.IdentityResult{Passed: true, Confidence: 0.95},
			Address:  domain.AddressResult{Passed: true, Confidence: 0.9},
			Phone:    domain.PhoneResult{Passed: true, Confidence: 0.9},
			Email:    domain.EmailResult{Passed: true, Confidence: 0.9},
			Ofac:     ofac,
		},
	}
}

func (s *ServiceSuite) passed() *domain.Result {
	return s.result(domain.StatusPassed, 0.92, domain.OfacResult{Passed: true, Matches: []domain.OfacMatch{}})
}

func (s *ServiceSuite) sanctioned() *domain.Result {
	return s.result(domain.StatusFailed, 0.1, domain.OfacResult{Passed: false, Matches: []domain.OfacMatch{
		{Name: "Jane Doe", Confidence: 0.8, ListType: domain.ListSDN, Details: "match"},
	}})
}

func (s *ServiceSuite) auditActions() []string {
	events, err := s.auditStore.ListBySubject(context.Background(), s.appID)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

type constRandom float64

func (c constRandom) Float64() float64 { return float64(c) }

// blockUntilDone stands in for a slow provider that honors cancellation.
func blockUntilDone(ctx context.Context, _ domain.PersonalInfo) (*domain.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *ServiceSuite) TestVerify() {
	s.Run("completes and fans out a passed verification", func() {
		s.scorer.EXPECT().Score(gomock.Any(), applicant()).Return(s.passed(), nil)
		s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
		s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, v *models.Verification) error {
				s.Equal(domain.StatusPassed, v.Status)
				return nil
			})
		svc := s.newService(s.auditor)

		v, err := svc.Verify(s.ctx, s.appID, applicant())
		s.Require().NoError(err)

		s.Equal(domain.StatusPassed, v.Status)
		s.Equal(models.NextStepAdvance, v.NextStep)
		s.Equal("req-123", v.RequestID)
		s.NotNil(v.VerifiedAt)

		stored, err := s.store.FindByID(s.ctx, v.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusPassed, stored.Status)
		s.Equal("kyc_provider", stored.ProviderVerificationID)

		s.Equal([]string{
			string(audit.EventKYCVerificationStarted),
			string(audit.EventKYCVerificationCompleted),
		}, s.auditActions())
		s.Equal(1.0, promtestutil.ToFloat64(s.metrics.VerificationsTotal.WithLabelValues("passed")))
		s.Equal(0.0, promtestutil.ToFloat64(s.metrics.InFlight))
	})
}

func (s *ServiceSuite) TestVerify_SanctionsHit() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(s.sanctioned(), nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil)
	svc := s.newService(s.auditor)

	v, err := svc.Verify(s.ctx, s.appID, applicant())
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, v.Status)
	s.Equal(models.NextStepBlocked, v.NextStep)
	s.True(v.OfacHit())
	s.Equal([]string{
		string(audit.EventKYCVerificationStarted),
		string(audit.EventKYCSanctionsHit),
		string(audit.EventKYCVerificationCompleted),
	}, s.auditActions())
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.ComponentFailuresTotal.WithLabelValues(domain.ComponentOfac)))
}

func (s *ServiceSuite) TestVerify_SanctionsAuditFailureBlocksResult() {
	auditor := mocks.NewMockAuditPublisher(s.ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			if e.Action == string(audit.EventKYCSanctionsHit) {
				return errors.New("audit store down")
			}
			return nil
		}).AnyTimes()
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(s.sanctioned(), nil)
	svc := s.newService(auditor)

	v, err := svc.Verify(s.ctx, s.appID, applicant())

	s.Nil(v)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestVerify_RoutineAuditFailureIsBestEffort() {
	auditor := mocks.NewMockAuditPublisher(s.ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down")).AnyTimes()
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(s.passed(), nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil)
	svc := s.newService(auditor)

	v, err := svc.Verify(s.ctx, s.appID, applicant())

	s.Require().NoError(err)
	s.Equal(domain.StatusPassed, v.Status)
}

func (s *ServiceSuite) TestVerify_PublishFailureDoesNotFailVerification() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(s.passed(), nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	svc := s.newService(s.auditor)

	_, err := svc.Verify(s.ctx, s.appID, applicant())
	s.NoError(err)
}

func (s *ServiceSuite) TestVerify_Timeout() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).DoAndReturn(blockUntilDone)
	svc := s.newService(s.auditor, WithTimeout(20*time.Millisecond))

	v, err := svc.Verify(s.ctx, s.appID, applicant())

	s.Nil(v)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	stored, err := svc.Latest(s.ctx, s.appID)
	s.Require().NoError(err)
	s.Equal(domain.StatusPending, stored.Status)
	s.Nil(stored.VerifiedAt)
	s.Equal("verification timed out", stored.FailureReason)
	s.Contains(s.auditActions(), string(audit.EventKYCVerificationFailed))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.VerificationErrors.WithLabelValues("timeout")))
}

func (s *ServiceSuite) TestVerify_CallerCancels() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).DoAndReturn(blockUntilDone)
	svc := s.newService(s.auditor)
	ctx, cancel := context.WithCancel(s.ctx)
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := svc.Verify(ctx, s.appID, applicant())

	s.True(dErrors.HasCode(err, dErrors.CodeCanceled))
	stored, err := svc.Latest(s.ctx, s.appID)
	s.Require().NoError(err)
	s.Equal("verification canceled", stored.FailureReason)
}

func (s *ServiceSuite) TestVerify_InvalidInput() {
	svc := s.newService(s.auditor)

	s.Run("bad application id", func() {
		_, err := svc.Verify(s.ctx, "not-a-uuid", applicant())
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing email", func() {
		info := applicant()
		info.Email = ""
		_, err := svc.Verify(s.ctx, s.appID, info)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("no record is created", func() {
		_, err := svc.Latest(s.ctx, s.appID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Empty(s.auditActions())
	})
}

func (s *ServiceSuite) TestVerify_AuditRecordsClientDevice() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(s.passed(), nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil)
	svc := s.newService(s.auditor)
	ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.7",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	_, err := svc.Verify(ctx, s.appID, applicant())
	s.Require().NoError(err)

	events, err := s.auditStore.ListBySubject(context.Background(), s.appID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	for _, e := range events {
		s.Equal("Chrome on Windows 10", e.Device)
	}
}

func (s *ServiceSuite) TestVerify_WithRealScorer() {
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil)
	sc := scorer.New(
		scorer.WithRandom(constRandom(0.5)),
		scorer.WithDelayer(scorer.NewInstantDelayer()),
		scorer.WithIDGenerator(func() string { return "provider-id" }),
	)
	svc := New(s.store, sc, s.auditor,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEventPublisher(s.events),
		WithCache(s.cache),
	)
	info := domain.PersonalInfo{FirstName: "John", LastName: "TESTER", Email: "john@example.com"}

	v, err := svc.Verify(s.ctx, s.appID, info)
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, v.Status)
	s.Equal(0.2, v.Confidence)
	s.Equal(models.NextStepBlocked, v.NextStep)
	s.False(v.Results.Identity.Passed)
	s.Equal("kyc_provider-id", v.ProviderVerificationID)

	stored, err := s.store.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal("kyc_provider-id", stored.ProviderVerificationID)
	s.NotEqual(stored.ID, stored.ProviderVerificationID)
}

func (s *ServiceSuite) TestVerify_ConcurrentApplications() {
	const applications = 25
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	sc := scorer.New(
		scorer.WithRandom(scorer.NewSeededRandom(7)),
		scorer.WithDelayer(scorer.NewInstantDelayer()),
	)
	svc := New(s.store, sc, s.auditor,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEventPublisher(s.events),
		WithCache(s.cache),
	)

	appIDs := make([]string, applications)
	for i := range appIDs {
		appIDs[i] = uuid.NewString()
	}

	result := testutil.RunConcurrent(applications, func(i int) error {
		_, err := svc.Verify(s.ctx, appIDs[i], applicant())
		return err
	})
	s.Equal(applications, result.Successes)

	seen := make(map[string]bool, applications)
	for _, appID := range appIDs {
		v, err := svc.Latest(s.ctx, appID)
		s.Require().NoError(err)
		s.True(v.IsCompleted())
		s.False(seen[v.ID], "verification ids must be unique")
		seen[v.ID] = true
	}
}

func (s *ServiceSuite) TestSubmit() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(s.passed(), nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil)
	svc := s.newService(s.auditor)

	v, err := svc.Submit(s.ctx, s.appID, applicant())
	s.Require().NoError(err)
	s.Equal(domain.StatusPending, v.Status)
	s.Nil(v.VerifiedAt)

	s.Require().NoError(svc.Close(context.Background()))

	stored, err := s.store.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusPassed, stored.Status)
	s.Equal(domain.StatusPending, v.Status, "returned snapshot is not mutated by the worker")

	s.Run("rejected after close", func() {
		_, err := svc.Submit(s.ctx, s.appID, applicant())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestSubmit_SurvivesRequestCancellation() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.PersonalInfo) (*domain.Result, error) {
			time.Sleep(20 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return s.passed(), nil
		})
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil)
	svc := s.newService(s.auditor)

	reqCtx, cancel := context.WithCancel(s.ctx)
	v, err := svc.Submit(reqCtx, s.appID, applicant())
	s.Require().NoError(err)
	cancel()

	s.Require().NoError(svc.Close(context.Background()))
	stored, err := s.store.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusPassed, stored.Status)
}

func (s *ServiceSuite) TestSubmit_CapacityExhausted() {
	release := make(chan struct{})
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.PersonalInfo) (*domain.Result, error) {
			<-release
			return s.passed(), nil
		})
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().PublishCompleted(gomock.Any(), gomock.Any()).Return(nil)
	svc := s.newService(s.auditor, WithMaxConcurrency(1))

	_, err := svc.Submit(s.ctx, s.appID, applicant())
	s.Require().NoError(err)

	_, err = svc.Submit(s.ctx, uuid.NewString(), applicant())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	close(release)
	s.Require().NoError(svc.Close(context.Background()))
}

func (s *ServiceSuite) TestClose_DeadlineCancelsInFlightWork() {
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).DoAndReturn(blockUntilDone)
	svc := s.newService(s.auditor)

	v, err := svc.Submit(s.ctx, s.appID, applicant())
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.ErrorIs(svc.Close(ctx), context.DeadlineExceeded)

	stored, err := s.store.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusPending, stored.Status)
	s.Equal("verification canceled", stored.FailureReason)
}

func (s *ServiceSuite) TestGet() {
	svc := s.newService(s.auditor)
	pending, err := models.NewPendingVerification("kyc_pending", uuid.MustParse(s.appID), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Save(s.ctx, pending))

	s.Run("cache hit skips the store", func() {
		cached := &models.Verification{ID: "kyc_cached", Status: domain.StatusPassed}
		s.cache.EXPECT().Get(gomock.Any(), "kyc_cached").Return(cached, nil)

		got, err := svc.Get(s.ctx, "kyc_cached")
		s.Require().NoError(err)
		s.Same(cached, got)
	})

	s.Run("miss falls back to the store and skips caching pending", func() {
		s.cache.EXPECT().Get(gomock.Any(), "kyc_pending").Return(nil, store.ErrNotFound)

		got, err := svc.Get(s.ctx, "kyc_pending")
		s.Require().NoError(err)
		s.Equal(domain.StatusPending, got.Status)
	})

	s.Run("completed record is backfilled", func() {
		done, _ := models.NewPendingVerification("kyc_done", uuid.MustParse(s.appID), s.now)
		s.Require().NoError(done.Complete(s.passed(), s.now))
		s.Require().NoError(s.store.Save(s.ctx, done))
		s.cache.EXPECT().Get(gomock.Any(), "kyc_done").Return(nil, errors.New("redis down"))
		s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)

		got, err := svc.Get(s.ctx, "kyc_done")
		s.Require().NoError(err)
		s.Equal(domain.StatusPassed, got.Status)
	})

	s.Run("unknown id", func() {
		s.cache.EXPECT().Get(gomock.Any(), "kyc_missing").Return(nil, store.ErrNotFound)

		_, err := svc.Get(s.ctx, "kyc_missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty id", func() {
		_, err := svc.Get(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestNew_PanicsOnMissingDependencies() {
	s.Panics(func() { New(nil, s.scorer, s.auditor) })
	s.Panics(func() { New(s.store, nil, s.auditor) })
	s.Panics(func() { New(s.store, s.scorer, nil) })
}
