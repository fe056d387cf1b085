// Package tracer is a thin tracing abstraction over OpenTelemetry so services
// can open spans without importing otel directly.
//
// NoopTracer is used by tests and when tracing is disabled; OTelTracer wraps
// the global tracer provider.
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanBatchAnchor, tracer.String(tracer.AttrBatchID, id))
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }

func Int(key string, value int) Attribute { return Attribute{Key: key, Value: int64(value)} }

func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }

func Float64(key string, value float64) Attribute { return Attribute{Key: key, Value: value} }

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanBatchCommit     = "issuance.commit"
	SpanBatchAnchor     = "issuance.anchor"
	SpanLedgerCall      = "ledger.anchor.call"
	SpanProofCreate     = "proof.create"
	SpanProofVerify     = "proof.verify"
	SpanVerifierCall    = "proof.verifier.call"
	SpanMinterCall      = "proof.minter.call"
	SpanRequirementHash = "requirement.commit"
)

// Attribute keys.
const (
	AttrBatchID         = "batch_id"
	AttrIssuerID        = "issuer_id"
	AttrCredentialCount = "credential_count"
	AttrFraudScore      = "fraud_score"
	AttrProofID         = "proof_id"
	AttrRequirementHash = "requirement_hash"
	AttrOutcome         = "outcome"
	AttrAlreadyTerminal = "already_terminal"
)

// Event names.
const (
	EventCredentialsEmitted = "credentials.emitted"
	EventTokenMinted        = "token.minted"
)
