//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nexuscred/internal/platform/kafka/producer"
	"nexuscred/pkg/testutil/containers"
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

func (s *ProducerIntegrationSuite) TestProduceDeliversWithHeaders() {
	ctx := context.Background()
	topic := "nexuscred-producer-test"
	s.Require().NoError(s.kafka.EnsureTopic(ctx, topic))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("batch-1"),
		Value: []byte(`{"type":"batch_anchored"}`),
		Headers: map[string]string{
			"aggregate_type": "batch",
			"event_type":     "batch_anchored",
		},
	})
	s.Require().NoError(err)

	record, err := s.kafka.Await(ctx, topic, "batch-1", 10*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(record, "message should be consumable")
	s.JSONEq(`{"type":"batch_anchored"}`, string(record.Value))

	headers := containers.Headers(record)
	s.Equal("batch", headers["aggregate_type"])
	s.Equal("batch_anchored", headers["event_type"])
}

func (s *ProducerIntegrationSuite) TestCheck() {
	s.NoError(s.producer.Check(context.Background()))
}

func (s *ProducerIntegrationSuite) TestProduceAfterCloseFails() {
	cfg := producer.DefaultConfig(s.kafka.Brokers)
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.Require().NoError(prod.Close())

	err = prod.Produce(context.Background(), &producer.Message{Topic: "unused", Value: []byte("x")})
	s.ErrorIs(err, producer.ErrClosed)
}
