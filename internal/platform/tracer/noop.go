package tracer

import "context"

// NoopTracer does nothing. Used in tests and when tracing is off.
type NoopTracer struct{}

func NewNoop() *NoopTracer {
	return &NoopTracer{}
}

func (t *NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                     {}
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) AddEvent(string, ...Attribute) {}

var (
	_ Tracer = (*NoopTracer)(nil)
	_ Span   = noopSpan{}
)
