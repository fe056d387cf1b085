package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nexuscred/internal/requirement/models"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/httputil"
	"nexuscred/pkg/requestcontext"
)

// Service defines the requirement operations exposed over HTTP.
type Service interface {
	Commit(ctx context.Context, req *models.CommitRequest) (*models.CommitResult, error)
	ListRequirements(ctx context.Context, employerID id.EmployerID) ([]*models.RequirementCommitment, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/requirements", h.handleCommit)
	r.Get("/api/employers/{employerID}/requirements", h.handleList)
}

// RequirementList is the employer listing response.
type RequirementList struct {
	EmployerID   id.EmployerID                   `json:"employer_id"`
	Requirements []*models.RequirementCommitment `json:"requirements"`
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CommitRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Commit(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to commit requirement",
			"request_id", requestcontext.RequestID(ctx),
			"employer_id", req.EmployerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employerID, err := id.ParseEmployerID(chi.URLParam(r, "employerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListRequirements(ctx, employerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RequirementList{EmployerID: employerID, Requirements: list})
}
