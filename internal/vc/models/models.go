// Package models defines verifiable credentials emitted from anchored batches.
package models

import (
	"strings"
	"time"

	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
)

// Credential types derived at emission.
const (
	TypeDegree      = "degree"
	TypeCertificate = "certificate"
)

// CredentialData is the holder-visible body of a credential. Its hashable
// fields, in order, determine the credential's Merkle leaf.
type CredentialData struct {
	StudentName string             `json:"student_name"`
	Fields      []commitment.Field `json:"fields"`
}

// VerifiableCredential is one credential of an anchored batch together with
// the inclusion path proving it belongs to MerkleRoot.
type VerifiableCredential struct {
	StudentID      id.StudentID      `json:"student_id"`
	CredentialType string            `json:"credential_type"`
	CredentialData CredentialData    `json:"credential_data"`
	MerklePath     []commitment.Step `json:"merkle_path"`
	MerkleRoot     commitment.Digest `json:"merkle_root"`
	IssuerID       id.IssuerID       `json:"issuer_id"`
	IssuedAt       time.Time         `json:"issued_at"`
	BatchID        id.BatchID        `json:"batch_id"`
	LeafIndex      int               `json:"leaf_index"`
}

// LeafHash recomputes the credential's leaf from its data.
func (vc *VerifiableCredential) LeafHash() commitment.Digest {
	return commitment.LeafHash(vc.CredentialData.Fields)
}

// VerifyInclusion reports whether the path reproduces MerkleRoot from the
// credential's own data.
func (vc *VerifiableCredential) VerifyInclusion() bool {
	return commitment.VerifyPath(vc.LeafHash(), vc.MerklePath, vc.MerkleRoot)
}

// DeriveType returns TypeDegree when any field name or value mentions
// "degree", TypeCertificate otherwise.
func DeriveType(fields []commitment.Field) string {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), "degree") ||
			strings.Contains(strings.ToLower(f.Value), "degree") {
			return TypeDegree
		}
	}
	return TypeCertificate
}

// HolderSummary aggregates a student's credentials.
type HolderSummary struct {
	StudentID       id.StudentID  `json:"student_id"`
	CredentialCount int           `json:"credential_count"`
	Issuers         []id.IssuerID `json:"issuers"`
}

// Verification is the outcome of checking a presented credential.
type Verification struct {
	Valid   bool       `json:"valid"`
	Reason  string     `json:"reason,omitempty"`
	BatchID id.BatchID `json:"batch_id,omitempty"`
}
