// Package models defines proof submissions and their verification state machine.
package models

import (
	"time"

	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
)

// Status is the submission state. Verified and Rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// RejectionKind classifies why a submission was rejected.
type RejectionKind string

const (
	RejectMalformedPayload        RejectionKind = "malformed_payload"
	RejectCollaboratorRejected    RejectionKind = "collaborator_rejected"
	RejectCollaboratorUnavailable RejectionKind = "collaborator_unavailable"
)

// Rejection records the reason a submission reached Rejected.
type Rejection struct {
	Kind       RejectionKind `json:"kind"`
	Reason     string        `json:"reason"`
	RejectedAt time.Time     `json:"rejected_at"`
}

// ProofSubmission tracks one proof from creation to a terminal verdict.
type ProofSubmission struct {
	ProofID         id.ProofID        `json:"proof_id"`
	StudentID       id.StudentID      `json:"student_id"`
	RequirementHash commitment.Digest `json:"requirement_hash"`
	ProofPayload    Groth16Proof      `json:"proof_payload"`
	PublicSignals   []string          `json:"public_signals"`
	Status          Status            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	VerifiedAt      *time.Time        `json:"verified_at,omitempty"`
	TokenRef        string            `json:"token_ref,omitempty"`
	Rejection       *Rejection        `json:"rejection,omitempty"`
}

// NewSubmission returns a Pending submission.
func NewSubmission(proofID id.ProofID, studentID id.StudentID, requirementHash commitment.Digest,
	payload Groth16Proof, signals []string, now time.Time) *ProofSubmission {
	return &ProofSubmission{
		ProofID:         proofID,
		StudentID:       studentID,
		RequirementHash: requirementHash,
		ProofPayload:    payload,
		PublicSignals:   append([]string(nil), signals...),
		Status:          StatusPending,
		CreatedAt:       now,
	}
}

func (p *ProofSubmission) IsTerminal() bool {
	return p.Status == StatusVerified || p.Status == StatusRejected
}

// MarkVerified moves a Pending submission to Verified with its token.
func (p *ProofSubmission) MarkVerified(tokenRef string, at time.Time) error {
	if p.IsTerminal() {
		return sentinel.ErrInvalidState
	}
	p.Status = StatusVerified
	p.TokenRef = tokenRef
	p.VerifiedAt = &at
	return nil
}

// MarkRejected moves a Pending submission to Rejected. No token is recorded.
func (p *ProofSubmission) MarkRejected(kind RejectionKind, reason string, at time.Time) error {
	if p.IsTerminal() {
		return sentinel.ErrInvalidState
	}
	p.Status = StatusRejected
	p.Rejection = &Rejection{Kind: kind, Reason: reason, RejectedAt: at}
	return nil
}

// SameRequest reports whether other carries the same holder and requirement.
func (p *ProofSubmission) SameRequest(other *ProofSubmission) bool {
	return p.StudentID == other.StudentID && p.RequirementHash == other.RequirementHash
}

// BindsRequirement reports whether any public signal encodes hash.
func (p *ProofSubmission) BindsRequirement(hash commitment.Digest) bool {
	for _, s := range p.PublicSignals {
		if d, err := commitment.ParseDigest(s); err == nil && d == hash {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *ProofSubmission) Clone() *ProofSubmission {
	out := *p
	out.ProofPayload = p.ProofPayload.Clone()
	out.PublicSignals = append([]string(nil), p.PublicSignals...)
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		out.VerifiedAt = &t
	}
	if p.Rejection != nil {
		r := *p.Rejection
		out.Rejection = &r
	}
	return &out
}

// Attestation is a signed statement that a verified proof's holder meets the
// requirement.
type Attestation struct {
	ProofID   id.ProofID `json:"proof_id"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// VerifyOutcome reports the state after a verify call. AlreadyTerminal is
// set when the call found the submission already decided.
type VerifyOutcome struct {
	Submission      *ProofSubmission `json:"submission"`
	AlreadyTerminal bool             `json:"already_terminal"`
}
