package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	issuanceports "nexuscred/internal/issuance/ports"
	proofports "nexuscred/internal/proof/ports"
	"nexuscred/pkg/commitment"
	"nexuscred/pkg/testutil"
)

func newGatewayServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewGateway(GatewayConfig{APIKey: apiKey}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway_RoundTripsHTTPClients(t *testing.T) {
	srv := newGatewayServer(t, "k")
	cfg := ClientConfig{BaseURL: srv.URL, APIKey: "k"}
	ctx := context.Background()
	hash := commitment.HashField("requirement")

	receipt, err := NewHTTPLedger(cfg, nil).Anchor(ctx, issuanceports.AnchorRequest{
		BatchID: "bat_1", IssuerID: testutil.TestIDs.IssuerID, MerkleRoot: commitment.HashField("root"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0x"+commitment.HashField("bat_1").Hex(), receipt.TxRef)

	verdict, err := NewHTTPVerifier(cfg, nil).Verify(ctx, proofports.VerifyRequest{
		ProofID: "prf_1", Payload: testutil.ValidGroth16(), PublicSignals: []string{hash.Hex()}, RequirementHash: hash,
	})
	require.NoError(t, err)
	assert.True(t, verdict.Valid)

	verdict, err = NewHTTPVerifier(cfg, nil).Verify(ctx, proofports.VerifyRequest{
		ProofID: "prf_2", Payload: testutil.ValidGroth16(), PublicSignals: []string{"1"}, RequirementHash: hash,
	})
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.NotEmpty(t, verdict.Diagnostic)

	mint := proofports.MintRequest{
		ProofID: "prf_1", StudentID: testutil.TestIDs.StudentID1, RequirementHash: hash,
	}
	ref, err := NewHTTPMinter(cfg, nil).Mint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, "sbt_prf_1", ref)

	again, err := NewHTTPMinter(cfg, nil).Mint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
}

func TestGateway_RejectsWrongAPIKey(t *testing.T) {
	srv := newGatewayServer(t, "k")
	_, err := NewHTTPLedger(ClientConfig{BaseURL: srv.URL, APIKey: "wrong"}, nil).Anchor(context.Background(),
		issuanceports.AnchorRequest{BatchID: "bat_1", IssuerID: "mit", MerkleRoot: commitment.HashField("root")})
	require.Error(t, err)
	assert.Equal(t, CategoryAuthentication, CategoryOf(err))
}

func TestGateway_UnavailableIDSimulatesOutage(t *testing.T) {
	srv := newGatewayServer(t, "")
	cfg := ClientConfig{BaseURL: srv.URL}

	_, err := NewHTTPLedger(cfg, nil).Anchor(context.Background(),
		issuanceports.AnchorRequest{BatchID: "bat_1", IssuerID: UnavailableID, MerkleRoot: commitment.HashField("root")})
	require.Error(t, err)
	assert.Equal(t, CategoryOutage, CategoryOf(err))
	assert.True(t, IsRetryable(err))

	_, err = NewHTTPMinter(cfg, nil).Mint(context.Background(),
		proofports.MintRequest{ProofID: "prf_1", StudentID: UnavailableID, RequirementHash: commitment.HashField("r")})
	assert.Equal(t, CategoryOutage, CategoryOf(err))
}

func TestGateway_BadRequestAndHealth(t *testing.T) {
	srv := newGatewayServer(t, "")

	resp, err := http.Post(srv.URL+"/anchor", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
