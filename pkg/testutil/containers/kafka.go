//go:build integration

package containers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const redpandaImage = "redpandadata/redpanda:v24.2.4"

// KafkaContainer is a single Kafka-compatible broker (Redpanda) for the
// event relay tests.
type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   []string
}

func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()
	ctx := context.Background()

	container, err := kafka.Run(ctx, redpandaImage, kafka.WithClusterID("nexuscred-test"))
	if err != nil {
		t.Fatalf("start kafka container: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("kafka brokers: %v", err)
	}
	return &KafkaContainer{Container: container, Brokers: brokers}
}

// EnsureTopic creates a single-partition topic; an existing topic is fine.
func (k *KafkaContainer) EnsureTopic(ctx context.Context, topic string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers...))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := kadm.NewClient(client).CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return err
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return resp.Err
	}
	return nil
}

// Await reads topic from the beginning until a record with key arrives or
// timeout passes. It returns nil on timeout.
func (k *KafkaContainer) Await(ctx context.Context, topic, key string, timeout time.Duration) (*kgo.Record, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for ctx.Err() == nil {
		fetches := client.PollFetches(ctx)
		var found *kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if found == nil && string(r.Key) == key {
				found = r
			}
		})
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// Headers flattens record headers; later duplicates win.
func Headers(r *kgo.Record) map[string]string {
	out := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
