package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountopen/internal/kyc/domain"
	"accountopen/internal/kyc/models"
	"accountopen/internal/platform/kafka/producer"
	"accountopen/internal/platform/outbox"
	"accountopen/internal/platform/outbox/worker"
)

type recordingProducer struct {
	messages []*producer.Message
	err      error
}

func (r *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingProducer) Healthy(context.Context) bool { return true }
func (r *recordingProducer) Close() error                 { return nil }

func completedVerification(t *testing.T) *models.Verification {
	t.Helper()
	now := time.Date(2026, 7, 4, 8, 0, 0, 0, time.UTC)
	v, err := models.NewPendingVerification("kyc_abc", uuid.New(), now)
	require.NoError(t, err)
	v.RequestID = "req-42"
	require.NoError(t, v.Complete(&domain.Result{
		Provider:       domain.ProviderName,
		VerificationID: "kyc_scored",
		Status:         domain.StatusFailed,
		Confidence:     0.1,
		VerifiedAt:     &now,
		Results: domain.VerificationResults{
			Identity: domain.IdentityResult{Passed: true, Confidence: 0.9},
			Address:  domain.AddressResult{Passed: true, Confidence: 0.9},
			Phone:    domain.PhoneResult{Passed: true, Confidence: 0.9},
			Email:    domain.EmailResult{Passed: true, Confidence: 0.9},
			Ofac: domain.OfacResult{Passed: false, Matches: []domain.OfacMatch{
				{Name: "Vladimir Ivanov", Confidence: 0.8, ListType: domain.ListSDN},
			}},
		},
	}, now))
	return v
}

func TestPublishCompleted(t *testing.T) {
	rec := &recordingProducer{}
	pub := NewPublisher(rec, "kyc.verification.completed")
	v := completedVerification(t)

	require.NoError(t, pub.PublishCompleted(context.Background(), v))
	require.Len(t, rec.messages, 1)

	msg := rec.messages[0]
	assert.Equal(t, "kyc.verification.completed", msg.Topic)
	assert.Equal(t, v.ApplicationID.String(), string(msg.Key))
	assert.Equal(t, EventTypeCompleted, msg.Headers["event_type"])
	assert.Equal(t, "req-42", msg.Headers["request_id"])

	var evt CompletedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, "kyc_abc", evt.VerificationID)
	assert.Equal(t, "kyc_scored", evt.ProviderVerificationID)
	assert.Equal(t, "failed", evt.Status)
	assert.Equal(t, "blocked", evt.NextStep)
	assert.True(t, evt.OfacHit)
	assert.Equal(t, 0.1, evt.Confidence)
}

func TestPublishCompleted_RejectsPending(t *testing.T) {
	rec := &recordingProducer{}
	pub := NewPublisher(rec, "topic")
	v, err := models.NewPendingVerification("kyc_p", uuid.New(), time.Now())
	require.NoError(t, err)

	assert.Error(t, pub.PublishCompleted(context.Background(), v))
	assert.Empty(t, rec.messages)
}

func TestPublishCompleted_ProducerError(t *testing.T) {
	pub := NewPublisher(&recordingProducer{err: errors.New("broker down")}, "topic")

	err := pub.PublishCompleted(context.Background(), completedVerification(t))
	assert.ErrorContains(t, err, "broker down")
}

func TestNewPublisher_PanicsWithoutProducer(t *testing.T) {
	assert.Panics(t, func() { NewPublisher(nil, "topic") })
}

func TestOutboxPublisher_RelayMatchesDirectPublish(t *testing.T) {
	ctx := context.Background()
	store := outbox.NewInMemoryStore()
	v := completedVerification(t)

	require.NoError(t, NewOutboxPublisher(store).PublishCompleted(ctx, v))

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)

	rec := &recordingProducer{}
	relay := worker.New(store, rec, "kyc.verification.completed")
	require.Equal(t, 1, relay.Poll(ctx))
	require.Len(t, rec.messages, 1)

	msg := rec.messages[0]
	assert.Equal(t, v.ApplicationID.String(), string(msg.Key))
	assert.Equal(t, EventTypeCompleted, msg.Headers["event_type"])
	assert.Equal(t, v.ID, msg.Headers["verification_id"])
	assert.Equal(t, "req-42", msg.Headers["request_id"])
	assert.NotEmpty(t, msg.Headers["outbox_id"])

	var evt CompletedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, v.ID, evt.VerificationID)
}

func TestOutboxPublisher_RejectsPending(t *testing.T) {
	store := outbox.NewInMemoryStore()
	v, err := models.NewPendingVerification("kyc_p", uuid.New(), time.Now())
	require.NoError(t, err)

	assert.Error(t, NewOutboxPublisher(store).PublishCompleted(context.Background(), v))
	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}
