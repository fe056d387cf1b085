package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nexuscred/internal/vc/models"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/httputil"
	"nexuscred/pkg/requestcontext"
	"nexuscred/pkg/validation"
)

// Service defines the credential read operations exposed over HTTP.
type Service interface {
	List(ctx context.Context, studentID id.StudentID) ([]*models.VerifiableCredential, error)
	HolderSummary(ctx context.Context, studentID id.StudentID) (*models.HolderSummary, error)
	VerifyCredential(ctx context.Context, vc *models.VerifiableCredential) (*models.Verification, error)
}

// Handler serves holder credential endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/students/{studentID}", h.handleSummary)
	r.Get("/api/students/{studentID}/credentials", h.handleList)
	r.Post("/api/credentials/verify", h.handleVerify)
}

// CredentialList is the listing response.
type CredentialList struct {
	StudentID   id.StudentID                   `json:"student_id"`
	Count       int                            `json:"count"`
	Credentials []*models.VerifiableCredential `json:"credentials"`
}

// VerifyRequest wraps a presented credential.
type VerifyRequest struct {
	Credential *models.VerifiableCredential `json:"credential" validate:"required"`
}

func (r *VerifyRequest) Validate() error {
	return validation.Validate(r)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	vcs, err := h.service.List(ctx, studentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list credentials",
			"request_id", requestcontext.RequestID(ctx),
			"student_id", studentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CredentialList{StudentID: studentID, Count: len(vcs), Credentials: vcs})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.service.HolderSummary(ctx, studentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.VerifyCredential(ctx, req.Credential)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to verify credential",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
