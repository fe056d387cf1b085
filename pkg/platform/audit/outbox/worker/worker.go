package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nexuscred/internal/platform/kafka/producer"
	"nexuscred/pkg/platform/audit/outbox"
	"nexuscred/pkg/platform/audit/outbox/metrics"
)

// Producer is the subset of the Kafka producer the worker needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox and relays entries to Kafka. Delivery is
// at-least-once: an entry published but not marked is relayed again.
type Worker struct {
	store        outbox.Store
	producer     Producer
	topic        string
	batchSize    int
	pollInterval time.Duration
	drainTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		if topic != "" {
			w.topic = topic
		}
	}
}

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

func New(store outbox.Store, prod Producer, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        "nexuscred.events",
		batchSize:    100,
		pollInterval: 200 * time.Millisecond,
		drainTimeout: 10 * time.Second,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.PollOnce(ctx)
		}
	}
}

// PollOnce relays one batch and returns how many entries were marked processed.
func (w *Worker) PollOnce(ctx context.Context) int {
	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
			w.metrics.IncPublishFailures()
		}
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	w.metrics.ObserveBatchSize(len(entries))

	relayed := 0
	for _, entry := range entries {
		if err := w.publish(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.metrics.IncPublishFailures()
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, time.Now()); err != nil {
			w.logger.ErrorContext(ctx, "failed to mark outbox entry processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}
		w.metrics.IncPublished()
		relayed++
	}
	return relayed
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()
	err := w.producer.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.AggregateID),
		Value: entry.Payload,
		Headers: map[string]string{
			"entry_id":       entry.ID.String(),
			"aggregate_type": entry.AggregateType,
			"event_type":     entry.EventType,
		},
	})
	if err != nil {
		return err
	}
	w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	return nil
}

// drain relays what is left at shutdown, stopping when a pass makes no progress.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		if w.PollOnce(ctx) == 0 {
			return
		}
	}
}

// Stop cancels the loop and waits for the final drain, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})

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

// UpdateMetrics refreshes the pending depth gauge.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	if w.metrics == nil {
		return nil
	}
	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}
	w.metrics.SetPendingDepth(count)
	return nil
}
