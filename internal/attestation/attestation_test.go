package attestation

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proofmodels "nexuscred/internal/proof/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
)

var issuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func verifiedSubmission() *proofmodels.ProofSubmission {
	p := proofmodels.NewSubmission("prf_a", "alice", commitment.HashField("req"),
		proofmodels.Groth16Proof{}, nil, issuedAt)
	_ = p.MarkVerified("sbt_prf_a", issuedAt)
	return p
}

func TestAttestAndVerify(t *testing.T) {
	issuer := New("test-key", "nexuscred", time.Hour, WithClock(fixedClock(issuedAt)))
	p := verifiedSubmission()

	att, err := issuer.Attest(p)
	require.NoError(t, err)
	assert.Equal(t, id.ProofID("prf_a"), att.ProofID)
	assert.Equal(t, issuedAt.Add(time.Hour), att.ExpiresAt)

	claims, err := issuer.Verify(att.Token)
	require.NoError(t, err)
	view := claims.View()
	assert.Equal(t, id.StudentID("alice"), view.StudentID)
	assert.Equal(t, id.ProofID("prf_a"), view.ProofID)
	assert.Equal(t, p.RequirementHash.Hex(), view.RequirementHash)
	assert.Equal(t, "sbt_prf_a", view.TokenRef)
	assert.Equal(t, issuedAt, view.IssuedAt)
	assert.Equal(t, issuedAt.Add(time.Hour), view.ExpiresAt)
	assert.Equal(t, time.UTC, view.IssuedAt.Location())
}

func TestAttest_RequiresVerified(t *testing.T) {
	issuer := New("test-key", "nexuscred", time.Hour)
	p := proofmodels.NewSubmission("prf_b", "bob", commitment.HashField("req"),
		proofmodels.Groth16Proof{}, nil, issuedAt)

	_, err := issuer.Attest(p)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestVerify_Rejections(t *testing.T) {
	issuer := New("test-key", "nexuscred", time.Hour, WithClock(fixedClock(issuedAt)))
	att, err := issuer.Attest(verifiedSubmission())
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := New("test-key", "nexuscred", time.Hour, WithClock(fixedClock(issuedAt.Add(2*time.Hour))))
		_, err := later.Verify(att.Token)
		require.ErrorContains(t, err, "attestation expired")
	})

	t.Run("wrong key", func(t *testing.T) {
		other := New("other-key", "nexuscred", time.Hour, WithClock(fixedClock(issuedAt)))
		_, err := other.Verify(att.Token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := New("test-key", "someone-else", time.Hour, WithClock(fixedClock(issuedAt)))
		_, err := other.Verify(att.Token)
		require.ErrorContains(t, err, "invalid attestation")
	})

	t.Run("tampered payload", func(t *testing.T) {
		other := verifiedSubmission()
		other.StudentID = "mallory"
		forged, err := issuer.Attest(other)
		require.NoError(t, err)

		parts := strings.Split(att.Token, ".")
		require.Len(t, parts, 3)
		parts[1] = strings.Split(forged.Token, ".")[1]
		_, err = issuer.Verify(strings.Join(parts, "."))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("algorithm none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RequirementHash: commitment.HashField("req").Hex(),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ID:        "prf_a",
				Issuer:    "nexuscred",
				ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
			},
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Verify(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not-a-token")
		require.ErrorContains(t, err, "invalid attestation")
	})
}
