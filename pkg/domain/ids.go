// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "nexuscred/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a StudentID where an IssuerID is expected.
//
// Issuer, student and employer identifiers are opaque strings supplied by
// callers. Batch and proof identifiers are minted here with a stable prefix.
type (
	IssuerID   string
	StudentID  string
	EmployerID string
	BatchID    string
	ProofID    string
)

const (
	batchIDPrefix = "bat_"
	proofIDPrefix = "prf_"

	maxIDLength = 128
)

// NewBatchID mints a fresh batch identifier.
func NewBatchID() BatchID {
	return BatchID(batchIDPrefix + uuid.NewString())
}

// NewProofID mints a fresh proof identifier.
func NewProofID() ProofID {
	return ProofID(proofIDPrefix + uuid.NewString())
}

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseIssuerID(s string) (IssuerID, error) {
	v, err := parseOpaque(s, "issuer ID")
	return IssuerID(v), err
}

func ParseStudentID(s string) (StudentID, error) {
	v, err := parseOpaque(s, "student ID")
	return StudentID(v), err
}

func ParseEmployerID(s string) (EmployerID, error) {
	v, err := parseOpaque(s, "employer ID")
	return EmployerID(v), err
}

func ParseBatchID(s string) (BatchID, error) {
	v, err := parseOpaque(s, "batch ID")
	return BatchID(v), err
}

// ParseProofID accepts both minted and client-supplied proof identifiers.
func ParseProofID(s string) (ProofID, error) {
	v, err := parseOpaque(s, "proof ID")
	return ProofID(v), err
}

// String methods - for logging and debugging.

func (id IssuerID) String() string   { return string(id) }
func (id StudentID) String() string  { return string(id) }
func (id EmployerID) String() string { return string(id) }
func (id BatchID) String() string    { return string(id) }
func (id ProofID) String() string    { return string(id) }

// IsNil checks - used for service-layer validation.

func (id IssuerID) IsNil() bool   { return id == "" }
func (id StudentID) IsNil() bool  { return id == "" }
func (id EmployerID) IsNil() bool { return id == "" }
func (id BatchID) IsNil() bool    { return id == "" }
func (id ProofID) IsNil() bool    { return id == "" }

// parseOpaque is the shared validation logic: non-blank, bounded, no control
// characters. Surrounding whitespace is trimmed.
func parseOpaque(s, label string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if len(s) > maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" is too long")
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
		}
	}
	return s, nil
}
