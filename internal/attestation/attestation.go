// Package attestation signs and checks eligibility attestations for verified
// proof submissions.
package attestation

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	proofmodels "nexuscred/internal/proof/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/validation"
)

// Claims binds the attestation to the holder, the requirement commitment and
// the minted token. Subject is the student and ID is the proof.
type Claims struct {
	RequirementHash string `json:"req"`
	TokenRef        string `json:"tok"`
	jwt.RegisteredClaims
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// Issuer signs HS256 attestations.
type Issuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

func New(signingKey, issuer string, ttl time.Duration, opts ...Option) *Issuer {
	i := &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Attest signs an attestation for a Verified submission.
func (i *Issuer) Attest(p *proofmodels.ProofSubmission) (*proofmodels.Attestation, error) {
	if p == nil || p.Status != proofmodels.StatusVerified {
		return nil, dErrors.New(dErrors.CodeConflict, "proof is not verified")
	}
	now := i.now()
	expiresAt := now.Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RequirementHash: p.RequirementHash.Hex(),
		TokenRef:        p.TokenRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.StudentID.String(),
			ID:        p.ProofID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign attestation")
	}
	return &proofmodels.Attestation{
		ProofID:   p.ProofID,
		Token:     signed,
		ExpiresAt: jwt.NewNumericDate(expiresAt).UTC(),
	}, nil
}

// Verify checks signature, algorithm, issuer and expiry.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return i.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "attestation expired")
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid attestation")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid attestation claims")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid attestation claims")
	}
	if _, err := commitment.ParseDigest(claims.RequirementHash); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid attestation claims")
	}
	return claims, nil
}

// VerifyRequest carries a token presented by a relying party.
type VerifyRequest struct {
	Token string `json:"token" validate:"required,notblank"`
}

func (r *VerifyRequest) Normalize() {
	r.Token = strings.TrimSpace(r.Token)
}

func (r *VerifyRequest) Validate() error {
	return validation.Validate(r)
}

// VerifiedAttestation is the decoded view of a valid token.
type VerifiedAttestation struct {
	ProofID         id.ProofID   `json:"proof_id"`
	StudentID       id.StudentID `json:"student_id"`
	RequirementHash string       `json:"requirement_hash"`
	TokenRef        string       `json:"token_ref"`
	IssuedAt        time.Time    `json:"issued_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// View flattens claims for responses.
func (c *Claims) View() VerifiedAttestation {
	out := VerifiedAttestation{
		ProofID:         id.ProofID(c.ID),
		StudentID:       id.StudentID(c.Subject),
		RequirementHash: c.RequirementHash,
		TokenRef:        c.TokenRef,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.UTC()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.UTC()
	}
	return out
}
