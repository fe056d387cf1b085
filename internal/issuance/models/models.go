// Package models defines issuers, credential batches and their commitments.
package models

import (
	"time"

	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
)

// CredentialField is one named value of a raw credential.
type CredentialField = commitment.Field

// RawCredential is one credential as submitted by an issuer. Never mutated.
type RawCredential struct {
	StudentID   id.StudentID      `json:"student_id"`
	StudentName string            `json:"student_name"`
	Fields      []CredentialField `json:"fields"`
	IssuerID    id.IssuerID       `json:"issuer_id"`
	IssuedAt    time.Time         `json:"issued_at"`
}

// LeafHash is the credential's Merkle leaf.
func (c RawCredential) LeafHash() commitment.Digest {
	return commitment.LeafHash(c.Fields)
}

// CredentialBatch is the ephemeral input of a commit.
type CredentialBatch struct {
	IssuerID    id.IssuerID
	Credentials []RawCredential
}

// Leaves returns the leaf hashes in credential order.
func (b CredentialBatch) Leaves() []commitment.Digest {
	leaves := make([]commitment.Digest, len(b.Credentials))
	for i, c := range b.Credentials {
		leaves[i] = c.LeafHash()
	}
	return leaves
}

// BatchStatus is the anchoring state of a batch commitment.
type BatchStatus string

const (
	BatchCreated  BatchStatus = "created"
	BatchAnchored BatchStatus = "anchored"
)

// BatchCommitment is the persisted commitment for one batch. Credentials
// holds the prepared input so verifiable credentials can be emitted once
// the batch anchors.
type BatchCommitment struct {
	BatchID         id.BatchID        `json:"batch_id"`
	IssuerID        id.IssuerID       `json:"issuer_id"`
	MerkleRoot      commitment.Digest `json:"merkle_root"`
	CredentialCount int               `json:"credential_count"`
	FraudScore      float64           `json:"fraud_score"`
	Status          BatchStatus       `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	AnchoredAt      *time.Time        `json:"anchored_at,omitempty"`
	LedgerTxRef     string            `json:"ledger_tx_ref,omitempty"`
	Credentials     []RawCredential   `json:"-"`
}

func (b *BatchCommitment) IsAnchored() bool {
	return b.Status == BatchAnchored
}

// MarkAnchored records ledger confirmation. A batch anchors exactly once.
func (b *BatchCommitment) MarkAnchored(txRef string, at time.Time) error {
	if b.IsAnchored() {
		return sentinel.ErrInvalidState
	}
	b.Status = BatchAnchored
	b.LedgerTxRef = txRef
	b.AnchoredAt = &at
	return nil
}

// Batch returns the commitment's input batch.
func (b *BatchCommitment) Batch() CredentialBatch {
	return CredentialBatch{IssuerID: b.IssuerID, Credentials: b.Credentials}
}

// IssuerStatus is the registration state of an issuer.
type IssuerStatus string

const IssuerActive IssuerStatus = "active"

// Issuer is a registered credential issuer.
type Issuer struct {
	IssuerID      id.IssuerID  `json:"issuer_id"`
	Name          string       `json:"name"`
	Status        IssuerStatus `json:"status"`
	BatchesIssued int          `json:"batches_issued"`
	RegisteredAt  time.Time    `json:"registered_at"`
}

// AnchorResult reports the outcome of an anchor call.
type AnchorResult struct {
	Batch              *BatchCommitment `json:"batch"`
	AlreadyAnchored    bool             `json:"already_anchored"`
	CredentialsEmitted int              `json:"credentials_emitted"`
}
