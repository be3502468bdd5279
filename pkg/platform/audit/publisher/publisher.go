// Package publisher writes audit events to an audit.Store, either inline or
// through a bounded background queue.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "accountopen/pkg/domain-errors"
	audit "accountopen/pkg/platform/audit"
	auditmetrics "accountopen/pkg/platform/audit/metrics"
)

// Publisher is append-only. In async mode, actions that require a durable
// write still go straight to the store so their caller can fail closed.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *auditmetrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex // guards closed against sends on events
	closed bool
	events chan audit.Event
	wg     sync.WaitGroup
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for a background writer.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithPublisherMetrics(m *auditmetrics.Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...PublisherOption) *Publisher {
	if store == nil {
		panic("publisher.NewPublisher: store is required")
	}
	p := &Publisher{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.events != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event, defaulting its timestamp and category. Buffered
// events return once queued; a full queue drops the event with
// CodeUnavailable.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	action := audit.AuditEvent(event.Action)
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = action.Category()
	}
	if p.events == nil || action.RequiresDurableWrite() {
		return p.persist(ctx, event)
	}
	return p.enqueue(ctx, event)
}

func (p *Publisher) enqueue(ctx context.Context, event audit.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return dErrors.New(dErrors.CodeUnavailable, "audit publisher closed")
	}

	select {
	case p.events <- event:
		if p.metrics != nil {
			p.metrics.IncQueueDepth()
			p.metrics.IncEventsEnqueued()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.IncEventsDropped()
		}
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"action", event.Action,
			"verification_id", event.VerificationID,
		)
		return dErrors.New(dErrors.CodeUnavailable, "audit buffer full")
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if p.metrics != nil {
			p.metrics.DecQueueDepth()
		}
		if err := p.persist(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"verification_id", event.VerificationID,
				"error", err,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	if p.metrics != nil {
		p.metrics.ObservePersist(string(event.Category), time.Since(start).Seconds(), err)
	}
	return err
}

// Close stops accepting buffered events and waits for the queue to drain.
// It is safe to call more than once.
func (p *Publisher) Close() {
	if p.events == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}
