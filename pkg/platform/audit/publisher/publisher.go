package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "nexuscred/pkg/domain-errors"
	audit "nexuscred/pkg/platform/audit"
)

// Publisher hands events to a Store, either inline or through a bounded
// buffer drained by one background goroutine.
type Publisher struct {
	store  audit.Store
	events chan audit.Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool

	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async persistence with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
			p.async = true
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"event", string(event.Type),
				"aggregate_id", event.AggregateID,
			)
		}
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	if !p.async {
		return
	}
	p.closeOnce.Do(func() {
		close(p.events)
		p.wg.Wait()
	})
}

// Emit stores event. In async mode a full buffer drops the event and returns an error.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if !p.async {
		return p.store.Append(ctx, event)
	}
	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, event dropped",
				"event", string(event.Type),
				"aggregate_id", event.AggregateID,
			)
		}
		return dErrors.New(dErrors.CodeInternal, "audit buffer full")
	}
}

// List returns the events recorded for one aggregate.
func (p *Publisher) List(ctx context.Context, aggregateID string) ([]audit.Event, error) {
	return p.store.ListByAggregate(ctx, aggregateID)
}
