//go:build integration

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"accountopen/internal/platform/kafka/producer"
	"accountopen/internal/platform/outbox"
	outboxpostgres "accountopen/internal/platform/outbox/postgres"
	"accountopen/internal/platform/outbox/worker"
	"accountopen/pkg/testutil/containers"
)

type WorkerIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	store    *outboxpostgres.Store
	producer *producer.Producer
}

func TestWorkerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkerIntegrationSuite))
}

func (s *WorkerIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.store = outboxpostgres.New(s.postgres.DB)

	prod, err := producer.New(producer.DefaultConfig(s.kafka.Brokers), nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *WorkerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *WorkerIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "event_outbox"))
}

// Entries written to the outbox reach Kafka and are marked processed.
func (s *WorkerIntegrationSuite) TestOutboxToKafkaFlow() {
	ctx := context.Background()
	topic := "outbox-flow-" + uuid.NewString()[:8]
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	appID := uuid.NewString()
	entry := outbox.NewEntry(appID, "kyc.verification.completed", []byte(`{"status":"passed"}`),
		map[string]string{"verification_id": "kyc_1"}, time.Now().UTC())
	s.Require().NoError(s.store.Append(ctx, entry))

	pending, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pending)

	w := worker.New(s.store, s.producer, topic,
		worker.WithPollInterval(50*time.Millisecond),
		worker.WithBatchSize(10),
	)
	w.Start()

	s.Eventually(func() bool {
		count, _ := s.store.CountPending(ctx)
		return count == 0
	}, 5*time.Second, 50*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.Require().NoError(w.Stop(stopCtx))

	consumer, err := s.kafka.NewConsumer("outbox-flow-"+uuid.NewString()[:8], topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForRecord(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == appID
	})
	s.Require().NotNil(record, "message should be in Kafka")
	s.JSONEq(`{"status":"passed"}`, string(record.Value))

	headers := make(map[string]string)
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal("kyc.verification.completed", headers["event_type"])
	s.Equal("kyc_1", headers["verification_id"])
	s.Equal(entry.ID.String(), headers["outbox_id"])
}

func (s *WorkerIntegrationSuite) TestStoreLifecycle() {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)
	first := outbox.NewEntry("a", "evt", []byte(`{}`), nil, base)
	second := outbox.NewEntry("b", "evt", []byte(`{}`), nil, base.Add(time.Second))
	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, first))

	entries, err := s.store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(first.ID, entries[0].ID, "oldest entry first")
	s.Empty(entries[0].Headers)

	s.Require().NoError(s.store.MarkProcessed(ctx, first.ID, base))
	s.ErrorIs(s.store.MarkProcessed(ctx, first.ID, base), outbox.ErrNotPending)

	deleted, err := s.store.DeleteProcessedBefore(ctx, base.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	pending, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pending)
}
