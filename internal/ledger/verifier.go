package ledger

import (
	"context"

	"nexuscred/internal/platform/tracer"
	"nexuscred/internal/proof/models"
	proofports "nexuscred/internal/proof/ports"
)

type verifyRequest struct {
	ProofID         string              `json:"proof_id"`
	Proof           models.Groth16Proof `json:"proof"`
	PublicSignals   []string            `json:"public_signals"`
	RequirementHash string              `json:"requirement_hash"`
}

type verifyResponse struct {
	Valid      *bool  `json:"valid"`
	Diagnostic string `json:"diagnostic"`
}

// HTTPVerifier checks proofs through the verifier's POST /verify.
type HTTPVerifier struct {
	client *jsonClient
	tracer tracer.Tracer
}

func NewHTTPVerifier(cfg ClientConfig, t tracer.Tracer) *HTTPVerifier {
	if cfg.Name == "" {
		cfg.Name = "verifier"
	}
	if t == nil {
		t = tracer.NewNoop()
	}
	return &HTTPVerifier{client: newJSONClient(cfg), tracer: t}
}

func (v *HTTPVerifier) Verify(ctx context.Context, req proofports.VerifyRequest) (result *proofports.VerifyResult, err error) {
	ctx, span := v.tracer.Start(ctx, tracer.SpanVerifierCall, tracer.String(tracer.AttrProofID, req.ProofID.String()))
	defer func() { span.End(err) }()

	var resp verifyResponse
	err = v.client.post(ctx, "/verify", verifyRequest{
		ProofID:         req.ProofID.String(),
		Proof:           req.Payload,
		PublicSignals:   req.PublicSignals,
		RequirementHash: "0x" + req.RequirementHash.Hex(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Valid == nil {
		return nil, NewCollaboratorError(CategoryBadData, v.client.name, "response missing valid flag", nil)
	}
	span.SetAttributes(tracer.Bool(tracer.AttrOutcome, *resp.Valid))
	return &proofports.VerifyResult{Valid: *resp.Valid, Diagnostic: resp.Diagnostic}, nil
}
