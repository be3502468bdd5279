package worker

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"accountopen/internal/platform/kafka/producer"
	"accountopen/internal/platform/outbox"
	"accountopen/internal/platform/outbox/metrics"
)

const (
	DefaultBatchSize       = 100
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultRetention       = 24 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	drainTimeout           = 10 * time.Second
)

// Worker polls the outbox and relays pending entries to Kafka. Delivery is
// at-least-once: an entry published but not marked is sent again next poll.
type Worker struct {
	store           outbox.Store
	producer        producer.Client
	topic           string
	batchSize       int
	pollInterval    time.Duration
	retention       time.Duration
	cleanupInterval time.Duration
	metrics         *metrics.Metrics
	logger          *slog.Logger
	now             func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Worker)

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention sets how long delivered entries are kept. Zero disables cleanup.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.retention = d
	}
}

func WithCleanupInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.cleanupInterval = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// New creates a relay for topic. Panics if store or producer is nil.
func New(store outbox.Store, prod producer.Client, topic string, opts ...Option) *Worker {
	if store == nil {
		panic("outbox worker: store is required")
	}
	if prod == nil {
		panic("outbox worker: producer is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:           store,
		producer:        prod,
		topic:           topic,
		batchSize:       DefaultBatchSize,
		pollInterval:    DefaultPollInterval,
		retention:       DefaultRetention,
		cleanupInterval: DefaultCleanupInterval,
		logger:          slog.Default(),
		now:             time.Now,
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(w.cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-poll.C:
			w.Poll(w.ctx)
		case <-cleanup.C:
			w.Cleanup(w.ctx)
		}
	}
}

// Poll relays one batch and returns how many entries were delivered.
func (w *Worker) Poll(ctx context.Context) int {
	start := time.Now()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("failed to fetch outbox entries", "error", err)
			w.incFailures()
		}
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	if w.metrics != nil {
		w.metrics.ObserveBatchSize(len(entries))
	}

	delivered := w.deliver(ctx, entries)

	if w.metrics != nil {
		w.metrics.ObservePollDuration(time.Since(start).Seconds())
		if pending, err := w.store.CountPending(ctx); err == nil {
			w.metrics.SetPendingDepth(pending)
		}
	}
	return delivered
}

func (w *Worker) deliver(ctx context.Context, entries []*outbox.Entry) int {
	delivered := 0
	for _, entry := range entries {
		if err := w.publishEntry(ctx, entry); err != nil {
			w.logger.Error("failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.incFailures()
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			// Published but unmarked: the next poll sends it again.
			w.logger.Error("failed to mark outbox entry processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}
		delivered++
		if w.metrics != nil {
			w.metrics.IncPublished()
		}
	}
	return delivered
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()

	headers := maps.Clone(entry.Headers)
	if headers == nil {
		headers = make(map[string]string, 2)
	}
	headers["outbox_id"] = entry.ID.String()
	headers["event_type"] = entry.EventType

	err := w.producer.Produce(ctx, &producer.Message{
		Topic:   w.topic,
		Key:     []byte(entry.AggregateID),
		Value:   entry.Payload,
		Headers: headers,
	})
	if err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	}
	return nil
}

// Cleanup deletes delivered entries older than the retention window.
func (w *Worker) Cleanup(ctx context.Context) int64 {
	if w.retention <= 0 {
		return 0
	}
	deleted, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		w.logger.Error("failed to purge delivered outbox entries", "error", err)
		return 0
	}
	if deleted > 0 {
		w.logger.Info("purged delivered outbox entries", "count", deleted)
		if w.metrics != nil {
			w.metrics.AddPurged(deleted)
		}
	}
	return deleted
}

// drain relays what is left on shutdown. It stops at the first batch that
// makes no progress so an unreachable broker cannot hold shutdown hostage.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	w.logger.Info("draining outbox worker")
	for ctx.Err() == nil {
		if w.Poll(ctx) == 0 {
			return
		}
	}
}

// Stop cancels polling, drains pending entries and waits for the loop to exit.
func (w *Worker) Stop(ctx context.Context) error {
	w.once.Do(w.cancel)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) incFailures() {
	if w.metrics != nil {
		w.metrics.IncPublishFailures()
	}
}
