//go:build integration

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nexuscred/internal/platform/kafka/producer"
	audit "nexuscred/pkg/platform/audit"
	"nexuscred/pkg/platform/audit/outbox"
	outboxpostgres "nexuscred/pkg/platform/audit/outbox/store/postgres"
	"nexuscred/pkg/platform/audit/outbox/worker"
	"nexuscred/pkg/testutil/containers"
)

const relayTopic = "nexuscred-relay-test"

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	producer *producer.Producer
	store    *outboxpostgres.Store
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.Require().NoError(s.kafka.EnsureTopic(context.Background(), relayTopic))

	prod, err := producer.New(producer.DefaultConfig(s.kafka.Brokers), nil)
	s.Require().NoError(err)
	s.producer = prod
	s.store = outboxpostgres.New(s.postgres.DB)
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *RelaySuite) TestPollOnceRelaysAuditEvents() {
	ctx := context.Background()
	sink := outbox.NewAuditStore(s.store)
	s.Require().NoError(sink.Append(ctx, audit.Event{
		Type:        audit.EventBatchAnchored,
		AggregateID: "batch-relay-1",
		Actor:       "mit",
		Attributes:  map[string]string{"credentials_emitted": "2"},
		Timestamp:   time.Now().UTC(),
	}))

	w := worker.New(s.store, s.producer, worker.WithTopic(relayTopic))
	s.Equal(1, w.PollOnce(ctx))

	pending, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)

	record, err := s.kafka.Await(ctx, relayTopic, "batch-relay-1", 10*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Contains(string(record.Value), `"type":"batch_anchored"`)

	headers := containers.Headers(record)
	s.Equal("batch", headers["aggregate_type"])
	s.Equal("batch_anchored", headers["event_type"])
}

func (s *RelaySuite) TestProcessedEntriesArePruned() {
	ctx := context.Background()
	entry := outbox.NewEntry("proof", "proof-1", "proof_verified", []byte(`{}`), time.Now().UTC())
	s.Require().NoError(s.store.Append(ctx, entry))
	s.Require().NoError(s.store.MarkProcessed(ctx, entry.ID, time.Now().Add(-time.Hour)))

	deleted, err := s.store.DeleteProcessedBefore(ctx, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	entries, err := s.store.ListByAggregate(ctx, "proof-1")
	s.Require().NoError(err)
	s.Empty(entries)
}
