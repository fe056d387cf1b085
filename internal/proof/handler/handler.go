package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nexuscred/internal/proof/models"
	"nexuscred/internal/proof/service"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/platform/httputil"
	"nexuscred/pkg/requestcontext"
)

// Service defines the proof gateway operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand) (*models.ProofSubmission, error)
	Verify(ctx context.Context, proofID id.ProofID) (*models.VerifyOutcome, error)
	Submit(ctx context.Context, cmd service.CreateCommand) (*models.VerifyOutcome, error)
	Get(ctx context.Context, proofID id.ProofID) (*models.ProofSubmission, error)
	ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.ProofSubmission, error)
	Attestation(ctx context.Context, proofID id.ProofID) (*models.Attestation, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/proofs", h.handleCreate)
	r.Post("/api/proofs/verify", h.handleSubmit)
	r.Post("/api/proofs/{proofID}/verify", h.handleVerify)
	r.Get("/api/proofs/{proofID}", h.handleGet)
	r.Get("/api/proofs/{proofID}/attestation", h.handleAttestation)
	r.Get("/api/students/{studentID}/proofs", h.handleList)
}

// ProofList is the per-student listing response.
type ProofList struct {
	StudentID id.StudentID              `json:"student_id"`
	Proofs    []*models.ProofSubmission `json:"proofs"`
}

func toCommand(req *models.SubmitProofRequest) (service.CreateCommand, error) {
	studentID, err := id.ParseStudentID(req.StudentID)
	if err != nil {
		return service.CreateCommand{}, err
	}
	hash, err := commitment.ParseDigest(req.RequirementHash)
	if err != nil {
		return service.CreateCommand{}, dErrors.New(dErrors.CodeValidation, "requirement_hash must be a 64 character hex digest")
	}
	return service.CreateCommand{
		ProofID:         id.ProofID(req.ProofID),
		StudentID:       studentID,
		RequirementHash: hash,
		Payload:         req.ProofPayload,
		PublicSignals:   req.PublicSignals,
	}, nil
}

func (h *Handler) decodeCommand(w http.ResponseWriter, r *http.Request) (service.CreateCommand, bool) {
	req, ok := httputil.DecodeAndPrepare[models.SubmitProofRequest](w, r, h.logger)
	if !ok {
		return service.CreateCommand{}, false
	}
	cmd, err := toCommand(req)
	if err != nil {
		httputil.WriteError(w, err)
		return service.CreateCommand{}, false
	}
	return cmd, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cmd, ok := h.decodeCommand(w, r)
	if !ok {
		return
	}
	p, err := h.service.Create(ctx, cmd)
	if err != nil {
		h.logWarn(ctx, "failed to create proof submission", cmd.StudentID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cmd, ok := h.decodeCommand(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.Submit(ctx, cmd)
	if err != nil {
		h.logWarn(ctx, "failed to submit proof", cmd.StudentID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proofID, err := id.ParseProofID(chi.URLParam(r, "proofID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	outcome, err := h.service.Verify(ctx, proofID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to verify proof",
			"request_id", requestcontext.RequestID(ctx),
			"proof_id", proofID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	proofID, err := id.ParseProofID(chi.URLParam(r, "proofID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), proofID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAttestation(w http.ResponseWriter, r *http.Request) {
	proofID, err := id.ParseProofID(chi.URLParam(r, "proofID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	att, err := h.service.Attestation(r.Context(), proofID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, att)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListByStudent(r.Context(), studentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ProofList{StudentID: studentID, Proofs: list})
}

func (h *Handler) logWarn(ctx context.Context, msg string, studentID id.StudentID, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"student_id", studentID,
		"error", err,
	)
}
