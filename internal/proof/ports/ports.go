// Package ports defines the remote collaborators of the proof gateway.
package ports

import (
	"context"

	"nexuscred/internal/proof/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
)

// VerifyRequest carries what the verifier needs to check one proof.
type VerifyRequest struct {
	ProofID         id.ProofID
	Payload         models.Groth16Proof
	PublicSignals   []string
	RequirementHash commitment.Digest
}

// VerifyResult is the verifier's verdict. Diagnostic explains a false Valid.
type VerifyResult struct {
	Valid      bool
	Diagnostic string
}

// Verifier checks proof validity. It does not mutate gateway state.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// MintRequest identifies the attestation to mint.
type MintRequest struct {
	ProofID         id.ProofID
	StudentID       id.StudentID
	RequirementHash commitment.Digest
}

// TokenMinter mints the non-transferable eligibility token for a verified
// proof and returns its reference. Mint must be idempotent per ProofID:
// repeating a request for an already minted proof returns the existing
// reference without minting again. The proof store records the reference
// only after Mint returns, so a failed commit is followed by a retry.
type TokenMinter interface {
	Mint(ctx context.Context, req MintRequest) (string, error)
}
