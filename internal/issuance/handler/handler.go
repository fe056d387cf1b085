package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nexuscred/internal/issuance/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/platform/httputil"
	"nexuscred/pkg/requestcontext"
)

// Service defines the issuance operations exposed over HTTP.
type Service interface {
	RegisterIssuer(ctx context.Context, issuerID id.IssuerID, name string) (*models.Issuer, error)
	GetIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	CommitBatch(ctx context.Context, batch models.CredentialBatch) (*models.BatchCommitment, error)
	GetBatch(ctx context.Context, batchID id.BatchID) (*models.BatchCommitment, error)
	ListBatches(ctx context.Context, issuerID id.IssuerID) ([]*models.BatchCommitment, error)
	Anchor(ctx context.Context, batchID id.BatchID) (*models.AnchorResult, error)
	PathFor(ctx context.Context, batchID id.BatchID, index int) ([]commitment.Step, error)
}

// Handler serves issuer and batch endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/issuers", h.handleRegisterIssuer)
	r.Get("/api/issuers/{issuerID}", h.handleGetIssuer)
	r.Get("/api/issuers/{issuerID}/batches", h.handleListBatches)
	r.Post("/api/batches", h.handleCommitBatch)
	r.Get("/api/batches/{batchID}", h.handleGetBatch)
	r.Post("/api/batches/{batchID}/anchor", h.handleAnchor)
	r.Get("/api/batches/{batchID}/paths/{index}", h.handlePath)
}

// BatchList is the batch listing response.
type BatchList struct {
	IssuerID id.IssuerID               `json:"issuer_id"`
	Batches  []*models.BatchCommitment `json:"batches"`
}

// PathResponse carries one credential's inclusion path.
type PathResponse struct {
	BatchID    id.BatchID        `json:"batch_id"`
	LeafIndex  int               `json:"leaf_index"`
	MerklePath []commitment.Step `json:"merkle_path"`
}

func (h *Handler) handleRegisterIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterIssuerRequest](w, r, h.logger)
	if !ok {
		return
	}
	issuerID, err := id.ParseIssuerID(req.IssuerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	issuer, err := h.service.RegisterIssuer(ctx, issuerID, req.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to register issuer",
			"request_id", requestcontext.RequestID(ctx),
			"issuer_id", issuerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issuer)
}

func (h *Handler) handleGetIssuer(w http.ResponseWriter, r *http.Request) {
	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.service.GetIssuer(r.Context(), issuerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, issuer)
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	batches, err := h.service.ListBatches(ctx, issuerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list batches",
			"request_id", requestcontext.RequestID(ctx),
			"issuer_id", issuerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BatchList{IssuerID: issuerID, Batches: batches})
}

func (h *Handler) handleCommitBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CommitBatchRequest](w, r, h.logger)
	if !ok {
		return
	}

	commit, err := h.service.CommitBatch(ctx, req.ToBatch())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to commit batch",
			"request_id", requestcontext.RequestID(ctx),
			"issuer_id", req.IssuerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, commit)
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	batch, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batch)
}

func (h *Handler) handleAnchor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Anchor(ctx, batchID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to anchor batch",
			"request_id", requestcontext.RequestID(ctx),
			"batch_id", batchID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePath(w http.ResponseWriter, r *http.Request) {
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "index must be a non-negative integer"))
		return
	}

	path, err := h.service.PathFor(r.Context(), batchID, index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PathResponse{BatchID: batchID, LeafIndex: index, MerklePath: path})
}
