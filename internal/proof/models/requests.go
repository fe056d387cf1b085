package models

import (
	"strings"

	"nexuscred/pkg/validation"
)

// SubmitProofRequest carries a holder's proof. The payload shape is checked
// during verification so that a malformed proof ends Rejected rather than
// never existing.
type SubmitProofRequest struct {
	ProofID         string       `json:"proof_id" validate:"omitempty,notblank,max=128"`
	StudentID       string       `json:"student_id" validate:"required,notblank,max=128"`
	RequirementHash string       `json:"requirement_hash" validate:"required,digest"`
	ProofPayload    Groth16Proof `json:"proof_payload"`
	PublicSignals   []string     `json:"public_signals" validate:"max=64"`
}

func (r *SubmitProofRequest) Normalize() {
	r.ProofID = strings.TrimSpace(r.ProofID)
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.RequirementHash = strings.ToLower(strings.TrimSpace(r.RequirementHash))
}

func (r *SubmitProofRequest) Validate() error {
	return validation.Validate(r)
}
