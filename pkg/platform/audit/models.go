package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	// Subject is the application the action concerns.
	Subject        string
	VerificationID string
	Action         string
	Decision       string
	Reason         string
	RequestID      string
	// Device is the client label derived from the User-Agent, empty for
	// events that did not start from an HTTP request.
	Device string
}

type AuditEvent string

const (
	EventKYCVerificationStarted   AuditEvent = "kyc_verification_started"
	EventKYCVerificationCompleted AuditEvent = "kyc_verification_completed"
	EventKYCVerificationFailed    AuditEvent = "kyc_verification_failed"
	EventKYCSanctionsHit          AuditEvent = "kyc_sanctions_hit"
)

type EventCategory string

const (
	CategoryCompliance EventCategory = "compliance"
	CategoryOperations EventCategory = "operations"
)

// Category maps an action to its retention category. Unknown actions fall back
// to operations.
func (e AuditEvent) Category() EventCategory {
	switch e {
	case EventKYCVerificationCompleted, EventKYCSanctionsHit:
		return CategoryCompliance
	default:
		return CategoryOperations
	}
}

// RequiresDurableWrite reports whether the caller must see the store's answer
// before continuing. Publishers never buffer these actions.
func (e AuditEvent) RequiresDurableWrite() bool {
	return e == EventKYCSanctionsHit
}

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
