package models

import (
	"strings"
	"time"

	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/validation"
)

// RequirementCommitment is the published record of a blind requirement. The
// policy itself is never stored; only descriptive metadata and the hash.
type RequirementCommitment struct {
	EmployerID     id.EmployerID     `json:"employer_id"`
	CommitmentHash commitment.Digest `json:"commitment_hash"`
	Title          string            `json:"title,omitempty"`
	Description    string            `json:"description,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// CommitRequest asks for a policy to be committed. ApplyJobDefaults fills
// the standard job keys the policy omits before hashing.
type CommitRequest struct {
	EmployerID       string `json:"employer_id" validate:"required,notblank,max=128"`
	Title            string `json:"title" validate:"max=256"`
	Description      string `json:"description" validate:"max=4096"`
	Policy           Policy `json:"policy" validate:"required,min=1,max=64"`
	ApplyJobDefaults bool   `json:"apply_job_defaults"`
}

func (r *CommitRequest) Normalize() {
	r.EmployerID = strings.TrimSpace(r.EmployerID)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CommitRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if err := r.Policy.Validate(); err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return nil
}

// CommitResult is returned to the employer after committing.
type CommitResult struct {
	CommitmentHash commitment.Digest      `json:"commitment_hash"`
	Requirement    *RequirementCommitment `json:"requirement"`
	Created        bool                   `json:"created"`
}
