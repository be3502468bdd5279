// Package outbox stores events next to the data they describe so a relay can
// deliver them to Kafka after the fact. A crashed or unreachable broker delays
// delivery instead of losing the event.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotPending is returned by MarkProcessed for unknown or already processed entries.
var ErrNotPending = errors.New("outbox entry not found or already processed")

// Entry is one event waiting for delivery.
type Entry struct {
	ID uuid.UUID
	// AggregateID becomes the Kafka record key, keeping per-aggregate order.
	AggregateID string
	EventType   string
	Payload     []byte
	Headers     map[string]string
	CreatedAt   time.Time
	ProcessedAt *time.Time // nil while pending
}

// IsPending reports whether the entry still needs to be delivered.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates a pending entry with a generated id.
func NewEntry(aggregateID, eventType string, payload []byte, headers map[string]string, now time.Time) *Entry {
	return &Entry{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Headers:     headers,
		CreatedAt:   now,
	}
}

// Store persists outbox entries. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	// DeleteProcessedBefore removes delivered entries older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
