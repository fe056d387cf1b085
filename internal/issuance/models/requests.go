package models

import (
	"strings"
	"time"

	id "nexuscred/pkg/domain"
	"nexuscred/pkg/validation"
)

// RegisterIssuerRequest registers a new issuer.
type RegisterIssuerRequest struct {
	IssuerID string `json:"issuer_id" validate:"required,notblank,max=128"`
	Name     string `json:"name" validate:"max=256"`
}

func (r *RegisterIssuerRequest) Normalize() {
	r.IssuerID = strings.TrimSpace(r.IssuerID)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *RegisterIssuerRequest) Validate() error {
	return validation.Validate(r)
}

// FieldRequest is one credential field. Hashable defaults to true.
type FieldRequest struct {
	Name     string `json:"name" validate:"notblank,max=128"`
	Value    string `json:"value" validate:"max=4096"`
	Hashable *bool  `json:"hashable,omitempty"`
}

// CredentialRequest is one credential in a batch submission.
type CredentialRequest struct {
	StudentID   string         `json:"student_id" validate:"required,notblank,max=128"`
	StudentName string         `json:"student_name" validate:"max=256"`
	Fields      []FieldRequest `json:"fields" validate:"dive"`
	IssuedAt    *time.Time     `json:"issued_at,omitempty"`
}

// CommitBatchRequest submits a batch for commitment. An empty credential
// list is accepted here and rejected by the service as an empty batch.
type CommitBatchRequest struct {
	IssuerID    string              `json:"issuer_id" validate:"required,notblank,max=128"`
	Credentials []CredentialRequest `json:"credentials" validate:"max=10000,dive"`
}

func (r *CommitBatchRequest) Normalize() {
	r.IssuerID = strings.TrimSpace(r.IssuerID)
	for i := range r.Credentials {
		r.Credentials[i].StudentID = strings.TrimSpace(r.Credentials[i].StudentID)
		for j := range r.Credentials[i].Fields {
			r.Credentials[i].Fields[j].Name = strings.TrimSpace(r.Credentials[i].Fields[j].Name)
		}
	}
}

func (r *CommitBatchRequest) Validate() error {
	return validation.Validate(r)
}

// ToBatch converts the request into a credential batch.
func (r *CommitBatchRequest) ToBatch() CredentialBatch {
	batch := CredentialBatch{IssuerID: id.IssuerID(r.IssuerID), Credentials: make([]RawCredential, 0, len(r.Credentials))}
	for _, c := range r.Credentials {
		cred := RawCredential{
			StudentID:   id.StudentID(c.StudentID),
			StudentName: c.StudentName,
			Fields:      make([]CredentialField, 0, len(c.Fields)),
		}
		if c.IssuedAt != nil {
			cred.IssuedAt = c.IssuedAt.UTC()
		}
		for _, f := range c.Fields {
			hashable := f.Hashable == nil || *f.Hashable
			cred.Fields = append(cred.Fields, CredentialField{Name: f.Name, Value: f.Value, Hashable: hashable})
		}
		batch.Credentials = append(batch.Credentials, cred)
	}
	return batch
}
