//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"accountopen/internal/platform/kafka/producer"
	"accountopen/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	cfg := producer.DefaultConfig(s.kafka.Brokers)
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *ProducerIntegrationSuite) TestProduceDeliversMessage() {
	ctx := context.Background()
	topic := "test-produce-sync"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic:   topic,
		Key:     []byte("app-123"),
		Value:   []byte(`{"status":"passed"}`),
		Headers: map[string]string{"event_type": "kyc.verification.completed"},
	})
	s.Require().NoError(err)

	consumer, err := s.kafka.NewConsumer("producer-test-group", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForRecord(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "app-123"
	})
	s.Require().NotNil(record)
	s.JSONEq(`{"status":"passed"}`, string(record.Value))
	s.Require().Len(record.Headers, 1)
	s.Equal("kyc.verification.completed", string(record.Headers[0].Value))
}

func (s *ProducerIntegrationSuite) TestHealthy() {
	s.True(s.producer.Healthy(context.Background()))
}
