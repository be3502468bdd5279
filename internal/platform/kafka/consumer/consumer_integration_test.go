//go:build integration

package consumer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accountopen/internal/platform/kafka/consumer"
	"accountopen/internal/platform/kafka/producer"
	"accountopen/pkg/testutil/containers"
)

type ConsumerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestConsumerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ConsumerIntegrationSuite))
}

func (s *ConsumerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	prod, err := producer.New(producer.DefaultConfig(s.kafka.Brokers), nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ConsumerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

type recordingHandler struct {
	mu   sync.Mutex
	keys []string
	fail string
}

func (h *recordingHandler) Handle(_ context.Context, msg *consumer.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = append(h.keys, string(msg.Key))
	if string(msg.Key) == h.fail {
		return errors.New("poison message")
	}
	return nil
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.keys...)
}

func (s *ConsumerIntegrationSuite) TestConsumesAndSurvivesHandlerErrors() {
	ctx := context.Background()
	topic := "test-consumer-intake"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	handler := &recordingHandler{fail: "bad"}
	c, err := consumer.New(consumer.Config{
		Brokers: s.kafka.Brokers,
		GroupID: "consumer-test-group",
		Topics:  []string{topic},
	}, handler, nil)
	s.Require().NoError(err)
	c.Start(ctx)
	defer func() { _ = c.Stop(context.Background()) }()

	for _, key := range []string{"a", "bad", "b"} {
		s.Require().NoError(s.producer.Produce(ctx, &producer.Message{Topic: topic, Key: []byte(key), Value: []byte("{}")}))
	}

	s.Eventually(func() bool {
		return len(handler.seen()) == 3
	}, 20*time.Second, 100*time.Millisecond)
	s.Equal([]string{"a", "bad", "b"}, handler.seen())
}
