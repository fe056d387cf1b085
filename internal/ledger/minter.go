package ledger

import (
	"context"
	"strings"

	"nexuscred/internal/platform/tracer"
	proofports "nexuscred/internal/proof/ports"
)

type mintRequest struct {
	ProofID         string `json:"proof_id"`
	StudentID       string `json:"student_id"`
	RequirementHash string `json:"requirement_hash"`
}

type mintResponse struct {
	TokenRef string `json:"token_ref"`
}

// HTTPMinter mints eligibility tokens through the minter's POST /mint.
type HTTPMinter struct {
	client *jsonClient
	tracer tracer.Tracer
}

func NewHTTPMinter(cfg ClientConfig, t tracer.Tracer) *HTTPMinter {
	if cfg.Name == "" {
		cfg.Name = "minter"
	}
	if t == nil {
		t = tracer.NewNoop()
	}
	return &HTTPMinter{client: newJSONClient(cfg), tracer: t}
}

func (m *HTTPMinter) Mint(ctx context.Context, req proofports.MintRequest) (tokenRef string, err error) {
	ctx, span := m.tracer.Start(ctx, tracer.SpanMinterCall, tracer.String(tracer.AttrProofID, req.ProofID.String()))
	defer func() { span.End(err) }()

	var resp mintResponse
	err = m.client.post(ctx, "/mint", mintRequest{
		ProofID:         req.ProofID.String(),
		StudentID:       req.StudentID.String(),
		RequirementHash: "0x" + req.RequirementHash.Hex(),
	}, &resp)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.TokenRef) == "" {
		return "", NewCollaboratorError(CategoryBadData, m.client.name, "response missing token_ref", nil)
	}
	return resp.TokenRef, nil
}
