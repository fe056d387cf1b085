package audit

import (
	"context"
	"log/slog"
	"time"

	"nexuscred/pkg/platform/privacy"
	"nexuscred/pkg/requestcontext"
)

// Logger writes an audit line to the text log and emits the same event.
// Emission failures are logged, never returned: lifecycle events are
// best-effort relative to the operation that produced them.
type Logger struct {
	text    *slog.Logger
	emitter Emitter
	now     func() time.Time
}

// NewLogger creates an audit logger. Either argument may be nil.
func NewLogger(text *slog.Logger, emitter Emitter) *Logger {
	return &Logger{text: text, emitter: emitter, now: time.Now}
}

// Log records event type t for aggregateID.
//
//	l.Log(ctx, audit.EventBatchAnchored, batchID, issuerID, map[string]string{"ledger_tx_ref": ref})
func (l *Logger) Log(ctx context.Context, t EventType, aggregateID, actor string, attrs map[string]string) {
	if l == nil {
		return
	}
	requestID := requestcontext.RequestID(ctx)
	var clientNet string
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		clientNet = privacy.AnonymizeIP(ip)
	}

	if l.text != nil {
		args := []any{"event", string(t), "aggregate_id", aggregateID, "log_type", "audit"}
		if actor != "" {
			args = append(args, "actor", actor)
		}
		if requestID != "" {
			args = append(args, "request_id", requestID)
		}
		if clientNet != "" {
			args = append(args, "client_net", clientNet)
		}
		for k, v := range attrs {
			args = append(args, k, v)
		}
		l.text.InfoContext(ctx, string(t), args...)
	}

	if l.emitter == nil {
		return
	}
	err := l.emitter.Emit(ctx, Event{
		Type:        t,
		AggregateID: aggregateID,
		Actor:       actor,
		Attributes:  attrs,
		RequestID:   requestID,
		ClientNet:   clientNet,
		Timestamp:   l.now(),
	})
	if err != nil && l.text != nil {
		l.text.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", string(t),
			"aggregate_id", aggregateID,
		)
	}
}
