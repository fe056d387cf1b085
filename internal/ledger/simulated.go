package ledger

import (
	"context"
	"time"

	issuanceports "nexuscred/internal/issuance/ports"
	proofports "nexuscred/internal/proof/ports"
	"nexuscred/pkg/commitment"
)

// SimulatedLedger confirms every anchor immediately with a tx reference
// derived from the batch ID.
type SimulatedLedger struct {
	now func() time.Time
}

func NewSimulatedLedger() *SimulatedLedger {
	return &SimulatedLedger{now: time.Now}
}

func (l *SimulatedLedger) Anchor(ctx context.Context, req issuanceports.AnchorRequest) (*issuanceports.AnchorReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCollaboratorError(CategoryTimeout, "ledger", "anchor cancelled", err)
	}
	ref := commitment.HashField(req.BatchID.String())
	return &issuanceports.AnchorReceipt{TxRef: "0x" + ref.Hex(), ConfirmedAt: l.now()}, nil
}

// SimulatedVerifier accepts any structurally valid proof whose public
// signals reference the requirement hash.
type SimulatedVerifier struct{}

func NewSimulatedVerifier() *SimulatedVerifier {
	return &SimulatedVerifier{}
}

func (SimulatedVerifier) Verify(ctx context.Context, req proofports.VerifyRequest) (*proofports.VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCollaboratorError(CategoryTimeout, "verifier", "verify cancelled", err)
	}
	if err := req.Payload.Validate(); err != nil {
		return &proofports.VerifyResult{Valid: false, Diagnostic: err.Error()}, nil
	}
	for _, s := range req.PublicSignals {
		if d, err := commitment.ParseDigest(s); err == nil && d == req.RequirementHash {
			return &proofports.VerifyResult{Valid: true}, nil
		}
	}
	return &proofports.VerifyResult{Valid: false, Diagnostic: "public signals do not reference requirement"}, nil
}

// SimulatedMinter returns "sbt_" + proof ID.
type SimulatedMinter struct{}

func NewSimulatedMinter() *SimulatedMinter {
	return &SimulatedMinter{}
}

func (SimulatedMinter) Mint(ctx context.Context, req proofports.MintRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewCollaboratorError(CategoryTimeout, "minter", "mint cancelled", err)
	}
	return "sbt_" + req.ProofID.String(), nil
}
