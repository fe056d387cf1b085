package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/requestcontext"
)

// DecodeJSON decodes a single JSON document from the request body.
// On failure it writes a bad_request response and returns nil, false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	var req T
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		msg := "invalid request body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body too large"
		} else if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}
	return &req, true
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes then validates a request when it supports either.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare decodes the JSON body then runs PrepareRequest.
// Domain errors from Validate keep their code; anything else becomes validation_failed.
//
//	req, ok := httputil.DecodeAndPrepare[models.CommitBatchRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}

	if err := PrepareRequest(req); err != nil {
		ctx := r.Context()
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		}
		return nil, false
	}

	return req, true
}
