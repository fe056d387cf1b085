// Package ledger implements the remote collaborators of the pipeline: the
// anchoring ledger, the proof verifier and the token minter. Each comes as an
// HTTP client and as a deterministic simulated implementation for development.
package ledger

import (
	"context"
	"errors"
	"fmt"

	dErrors "nexuscred/pkg/domain-errors"
)

// Category is the normalized failure taxonomy for collaborator calls.
type Category string

const (
	CategoryTimeout        Category = "timeout"
	CategoryOutage         Category = "outage"
	CategoryRateLimited    Category = "rate_limited"
	CategoryCircuitOpen    Category = "circuit_open"
	CategoryRejected       Category = "rejected"
	CategoryBadData        Category = "bad_data"
	CategoryAuthentication Category = "authentication"
	CategoryInternal       Category = "internal"
)

// CollaboratorError wraps a collaborator failure with its category.
type CollaboratorError struct {
	Category     Category
	Collaborator string
	Message      string
	Underlying   error
	Retryable    bool
}

func (e *CollaboratorError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Collaborator, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Collaborator, e.Category, e.Message)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Underlying
}

// NewCollaboratorError classifies Retryable from the category: timeouts,
// outages, rate limits and open circuits are transient.
func NewCollaboratorError(category Category, collaborator, message string, underlying error) *CollaboratorError {
	retryable := category == CategoryTimeout ||
		category == CategoryOutage ||
		category == CategoryRateLimited ||
		category == CategoryCircuitOpen
	return &CollaboratorError{
		Category:     category,
		Collaborator: collaborator,
		Message:      message,
		Underlying:   underlying,
		Retryable:    retryable,
	}
}

// CategoryOf extracts the category. Context errors count as timeouts and
// anything unclassified is internal.
func CategoryOf(err error) Category {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Category
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTimeout
	}
	return CategoryInternal
}

// IsRetryable reports whether err is a transient collaborator failure.
func IsRetryable(err error) bool {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return CategoryOf(err) == CategoryTimeout
}

// ToDomainError maps a collaborator failure onto the pipeline's error kinds:
// an explicit refusal is CodeCollaboratorRejected, everything else is
// CodeCollaboratorUnavailable.
func ToDomainError(err error, msg string) error {
	if err == nil {
		return nil
	}
	switch CategoryOf(err) {
	case CategoryRejected, CategoryBadData, CategoryAuthentication:
		return &dErrors.Error{Code: dErrors.CodeCollaboratorRejected, Message: msg, Err: err}
	default:
		return &dErrors.Error{Code: dErrors.CodeCollaboratorUnavailable, Message: msg, Err: err}
	}
}
