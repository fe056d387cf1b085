package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nexuscred/internal/attestation"
	"nexuscred/pkg/platform/httputil"
	"nexuscred/pkg/requestcontext"
)

// Verifier checks presented attestation tokens.
type Verifier interface {
	Verify(token string) (*attestation.Claims, error)
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func New(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/attestations/verify", h.handleVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[attestation.VerifyRequest](w, r, h.logger)
	if !ok {
		return
	}
	claims, err := h.verifier.Verify(req.Token)
	if err != nil {
		h.logger.InfoContext(ctx, "attestation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claims.View())
}
