package ledger

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	issuanceports "nexuscred/internal/issuance/ports"
	proofports "nexuscred/internal/proof/ports"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/platform/httputil"
)

// UnavailableID is the issuer or student ID for which the gateway answers
// 503, letting end-to-end runs exercise the collaborator failure paths.
const UnavailableID = "unavailable"

// GatewayConfig configures the simulated collaborator gateway.
type GatewayConfig struct {
	// APIKey, when set, must match the X-API-Key header.
	APIKey  string
	Latency time.Duration
	Ledger  issuanceports.Ledger
	Verify  proofports.Verifier
	Mint    proofports.TokenMinter
	Logger  *slog.Logger
}

// Gateway serves POST /anchor, /verify and /mint in the wire format the
// HTTP clients in this package speak. Nil backends default to the
// simulated ones.
type Gateway struct {
	cfg GatewayConfig
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.Ledger == nil {
		cfg.Ledger = NewSimulatedLedger()
	}
	if cfg.Verify == nil {
		cfg.Verify = NewSimulatedVerifier()
	}
	if cfg.Mint == nil {
		cfg.Mint = NewSimulatedMinter()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{cfg: cfg}
}

// Handler returns the gateway routes.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "collaborator-gateway"})
	})
	r.Group(func(r chi.Router) {
		r.Use(g.authenticate, g.delay)
		r.Post("/anchor", g.handleAnchor)
		r.Post("/verify", g.handleVerify)
		r.Post("/mint", g.handleMint)
	})
	return r
}

func (g *Gateway) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.APIKey != "" &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(g.cfg.APIKey)) != 1 {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.Latency > 0 {
			select {
			case <-time.After(g.cfg.Latency):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) handleAnchor(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[anchorRequest](w, r, g.cfg.Logger)
	if !ok {
		return
	}
	if req.IssuerID == UnavailableID {
		writeUnavailable(w)
		return
	}
	root, err := commitment.ParseDigest(req.MerkleRoot)
	if err != nil || strings.TrimSpace(req.BatchID) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "batch_id and a 32 byte merkle_root are required"))
		return
	}
	receipt, err := g.cfg.Ledger.Anchor(r.Context(), issuanceports.AnchorRequest{
		BatchID:    id.BatchID(req.BatchID),
		IssuerID:   id.IssuerID(req.IssuerID),
		MerkleRoot: root,
	})
	if err != nil {
		g.fail(w, r, "anchor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, anchorResponse{TxRef: receipt.TxRef, ConfirmedAt: receipt.ConfirmedAt.UTC()})
}

func (g *Gateway) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[verifyRequest](w, r, g.cfg.Logger)
	if !ok {
		return
	}
	hash, err := commitment.ParseDigest(req.RequirementHash)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "requirement_hash must be a 32 byte digest"))
		return
	}
	result, err := g.cfg.Verify.Verify(r.Context(), proofports.VerifyRequest{
		ProofID:         id.ProofID(req.ProofID),
		Payload:         req.Proof,
		PublicSignals:   req.PublicSignals,
		RequirementHash: hash,
	})
	if err != nil {
		g.fail(w, r, "verify", err)
		return
	}
	valid := result.Valid
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{Valid: &valid, Diagnostic: result.Diagnostic})
}

func (g *Gateway) handleMint(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[mintRequest](w, r, g.cfg.Logger)
	if !ok {
		return
	}
	if req.StudentID == UnavailableID {
		writeUnavailable(w)
		return
	}
	hash, err := commitment.ParseDigest(req.RequirementHash)
	if err != nil || strings.TrimSpace(req.ProofID) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "proof_id and a 32 byte requirement_hash are required"))
		return
	}
	ref, err := g.cfg.Mint.Mint(r.Context(), proofports.MintRequest{
		ProofID:         id.ProofID(req.ProofID),
		StudentID:       id.StudentID(req.StudentID),
		RequirementHash: hash,
	})
	if err != nil {
		g.fail(w, r, "mint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mintResponse{TokenRef: ref})
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	g.cfg.Logger.WarnContext(r.Context(), "collaborator backend failed", "operation", op, "error", err)
	writeUnavailable(w)
}

func writeUnavailable(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{
		Error:       string(dErrors.CodeCollaboratorUnavailable),
		Description: "collaborator temporarily unavailable",
	})
}
