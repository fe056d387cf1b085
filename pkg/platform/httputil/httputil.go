package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "nexuscred/pkg/domain-errors"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Status is already sent; an encode failure can only truncate the body.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates transport-agnostic domain errors into HTTP responses.
// Errors without a domain code are reported as internal without leaking detail.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), ErrorResponse{
			Error:       DomainCodeToHTTPCode(domainErr.Code),
			Description: domainErr.Message,
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound,
		dErrors.CodeUnknownBatch,
		dErrors.CodeUnknownStudent,
		dErrors.CodeUnknownProof,
		dErrors.CodeUnknownIssuer:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeEmptyBatch, dErrors.CodeNoCredentials, dErrors.CodeUnknownRequirement, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeConflict, dErrors.CodeDoubleRegistration:
		return http.StatusConflict
	case dErrors.CodeCollaboratorRejected:
		return http.StatusBadGateway
	case dErrors.CodeCollaboratorUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the "error" field of the response.
// Pipeline failure kinds are surfaced verbatim so clients can branch on them.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeEmptyBatch,
		dErrors.CodeUnknownBatch,
		dErrors.CodeUnknownStudent,
		dErrors.CodeUnknownProof,
		dErrors.CodeUnknownRequirement,
		dErrors.CodeUnknownIssuer,
		dErrors.CodeNoCredentials,
		dErrors.CodeDoubleRegistration,
		dErrors.CodeCollaboratorUnavailable,
		dErrors.CodeCollaboratorRejected,
		dErrors.CodeInvariantViolation,
		dErrors.CodeRateLimited:
		return string(code)
	default:
		return "internal_error"
	}
}
