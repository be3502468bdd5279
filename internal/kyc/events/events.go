// Package events publishes KYC verification outcomes to Kafka for downstream
// account-opening steps.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"accountopen/internal/kyc/models"
	"accountopen/internal/platform/kafka/producer"
	"accountopen/internal/platform/outbox"
)

// EventTypeCompleted is carried in the event_type header.
const EventTypeCompleted = "kyc.verification.completed"

// CompletedEvent is the payload produced once a verification has a result.
type CompletedEvent struct {
	EventType              string     `json:"eventType"`
	VerificationID         string     `json:"verificationId"`
	ApplicationID          string     `json:"applicationId"`
	Provider               string     `json:"provider"`
	ProviderVerificationID string     `json:"providerVerificationId"`
	Status                 string     `json:"status"`
	Confidence             float64    `json:"confidence"`
	NextStep               string     `json:"nextStep"`
	OfacHit                bool       `json:"ofacHit"`
	VerifiedAt             *time.Time `json:"verifiedAt,omitempty"`
	OccurredAt             time.Time  `json:"occurredAt"`
}

// NewCompletedEvent builds the event for a completed verification.
func NewCompletedEvent(v *models.Verification, occurredAt time.Time) CompletedEvent {
	return CompletedEvent{
		EventType:              EventTypeCompleted,
		VerificationID:         v.ID,
		ApplicationID:          v.ApplicationID.String(),
		Provider:               v.Provider,
		ProviderVerificationID: v.ProviderVerificationID,
		Status:                 string(v.Status),
		Confidence:             v.Confidence,
		NextStep:               string(v.NextStep),
		OfacHit:                v.OfacHit(),
		VerifiedAt:             v.VerifiedAt,
		OccurredAt:             occurredAt,
	}
}

// Publisher produces verification events to a single topic.
type Publisher struct {
	producer producer.Client
	topic    string
	now      func() time.Time
}

func NewPublisher(p producer.Client, topic string) *Publisher {
	if p == nil {
		panic("events: producer is required")
	}
	return &Publisher{producer: p, topic: topic, now: time.Now}
}

// PublishCompleted produces the completion event keyed by application id, so
// all events for one application land on the same partition in order.
func (p *Publisher) PublishCompleted(ctx context.Context, v *models.Verification) error {
	payload, headers, err := encodeCompleted(v, p.now())
	if err != nil {
		return err
	}
	msg := &producer.Message{
		Topic:   p.topic,
		Key:     []byte(v.ApplicationID.String()),
		Value:   payload,
		Headers: headers,
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("produce completed event: %w", err)
	}
	return nil
}

// OutboxPublisher records completion events in the outbox instead of producing
// them directly. The outbox relay delivers them with the same key and headers.
type OutboxPublisher struct {
	store outbox.Store
	now   func() time.Time
}

func NewOutboxPublisher(store outbox.Store) *OutboxPublisher {
	if store == nil {
		panic("events: outbox store is required")
	}
	return &OutboxPublisher{store: store, now: time.Now}
}

func (p *OutboxPublisher) PublishCompleted(ctx context.Context, v *models.Verification) error {
	now := p.now()
	payload, headers, err := encodeCompleted(v, now)
	if err != nil {
		return err
	}
	entry := outbox.NewEntry(v.ApplicationID.String(), EventTypeCompleted, payload, headers, now)
	if err := p.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append completed event to outbox: %w", err)
	}
	return nil
}

func encodeCompleted(v *models.Verification, now time.Time) ([]byte, map[string]string, error) {
	if !v.IsCompleted() {
		return nil, nil, fmt.Errorf("verification %s is not completed", v.ID)
	}
	payload, err := json.Marshal(NewCompletedEvent(v, now))
	if err != nil {
		return nil, nil, fmt.Errorf("encode completed event: %w", err)
	}
	headers := map[string]string{
		"event_type":      EventTypeCompleted,
		"verification_id": v.ID,
		"status":          string(v.Status),
	}
	if v.RequestID != "" {
		headers["request_id"] = v.RequestID
	}
	return payload, headers, nil
}
