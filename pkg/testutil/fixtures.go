package testutil

import (
	"fmt"
	"time"

	issuancemodels "nexuscred/internal/issuance/models"
	proofmodels "nexuscred/internal/proof/models"
	requirementmodels "nexuscred/internal/requirement/models"
	vcmodels "nexuscred/internal/vc/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
)

// TestIDs provides stable identifiers for tests.
var TestIDs = struct {
	IssuerID   id.IssuerID
	StudentID1 id.StudentID
	StudentID2 id.StudentID
	EmployerID id.EmployerID
}{
	IssuerID:   "mit",
	StudentID1: "alice",
	StudentID2: "bob",
	EmployerID: "acme",
}

// FixedTime is the clock used by fixtures.
var FixedTime = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

// ValidGroth16 returns a structurally valid Groth16 payload.
func ValidGroth16() proofmodels.Groth16Proof {
	return proofmodels.Groth16Proof{
		Scheme: proofmodels.SchemeGroth16,
		PiA:    []string{"1", "2", "1"},
		PiB:    [][]string{{"1", "0"}, {"0", "1"}, {"1", "0"}},
		PiC:    []string{"3", "4", "1"},
	}
}

// ReferencePolicy is {"cloud_certified": true, "gpa_min": 3.0}.
func ReferencePolicy() requirementmodels.Policy {
	return requirementmodels.Policy{
		requirementmodels.KeyGPAMin:         requirementmodels.Float(3.0),
		requirementmodels.KeyCloudCertified: requirementmodels.Bool(true),
	}
}

// BatchBuilder builds credential batches with sensible defaults.
type BatchBuilder struct {
	batch issuancemodels.CredentialBatch
}

// NewBatchBuilder starts an empty batch for TestIDs.IssuerID.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{batch: issuancemodels.CredentialBatch{IssuerID: TestIDs.IssuerID}}
}

func (b *BatchBuilder) WithIssuer(issuerID id.IssuerID) *BatchBuilder {
	b.batch.IssuerID = issuerID
	return b
}

// WithCredential appends a credential whose fields alternate name, value.
func (b *BatchBuilder) WithCredential(studentID id.StudentID, nameValues ...string) *BatchBuilder {
	cred := issuancemodels.RawCredential{
		StudentID:   studentID,
		StudentName: string(studentID),
		IssuerID:    b.batch.IssuerID,
		IssuedAt:    FixedTime,
	}
	for i := 0; i+1 < len(nameValues); i += 2 {
		cred.Fields = append(cred.Fields, commitment.Field{Name: nameValues[i], Value: nameValues[i+1], Hashable: true})
	}
	b.batch.Credentials = append(b.batch.Credentials, cred)
	return b
}

// WithGPAs appends one credential per value with a degree and a gpa field.
func (b *BatchBuilder) WithGPAs(gpas ...string) *BatchBuilder {
	for i, gpa := range gpas {
		b.WithCredential(id.StudentID(fmt.Sprintf("student-%d", i)), "degree", "BSc", "gpa", gpa)
	}
	return b
}

func (b *BatchBuilder) Build() issuancemodels.CredentialBatch {
	out := b.batch
	out.Credentials = append([]issuancemodels.RawCredential(nil), b.batch.Credentials...)
	return out
}

// NewPendingSubmission returns a Pending submission bound to hash.
func NewPendingSubmission(proofID id.ProofID, studentID id.StudentID, hash commitment.Digest) *proofmodels.ProofSubmission {
	return proofmodels.NewSubmission(proofID, studentID, hash, ValidGroth16(), []string{hash.Hex()}, FixedTime)
}

// NewCredential returns a single-leaf credential for studentID. Its path is
// empty, so the leaf is its own root.
func NewCredential(studentID id.StudentID, batchID id.BatchID, value string) *vcmodels.VerifiableCredential {
	fields := []commitment.Field{{Name: "degree", Value: value, Hashable: true}}
	return &vcmodels.VerifiableCredential{
		StudentID:      studentID,
		CredentialType: vcmodels.DeriveType(fields),
		CredentialData: vcmodels.CredentialData{StudentName: string(studentID), Fields: fields},
		MerkleRoot:     commitment.LeafHash(fields),
		IssuerID:       TestIDs.IssuerID,
		IssuedAt:       FixedTime,
		BatchID:        batchID,
	}
}
