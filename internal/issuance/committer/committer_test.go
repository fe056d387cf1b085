package committer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuscred/internal/issuance/models"
	"nexuscred/pkg/commitment"
	dErrors "nexuscred/pkg/domain-errors"
)

func batchOf(n int) models.CredentialBatch {
	b := models.CredentialBatch{IssuerID: "mit"}
	for i := 0; i < n; i++ {
		b.Credentials = append(b.Credentials, models.RawCredential{
			StudentID: "s",
			Fields: []models.CredentialField{
				{Name: "gpa", Value: fmt.Sprintf("%d.0", i%10), Hashable: true},
				{Name: "id", Value: fmt.Sprint(i), Hashable: true},
				{Name: "notes", Value: "free text", Hashable: false},
			},
		})
	}
	return b
}

func TestBuild_RootPathConsistency(t *testing.T) {
	for n := 1; n <= 21; n++ {
		batch := batchOf(n)
		c, err := Build(batch)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			path, err := c.PathFor(i)
			require.NoError(t, err)
			leaf := batch.Credentials[i].LeafHash()
			assert.True(t, commitment.VerifyPath(leaf, path, c.Root()), "n=%d i=%d", n, i)
		}
	}
}

func TestBuild_EmptyBatch(t *testing.T) {
	_, err := Build(models.CredentialBatch{IssuerID: "mit"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEmptyBatch))
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(batchOf(7))
	require.NoError(t, err)
	b, err := Build(batchOf(7))
	require.NoError(t, err)
	assert.Equal(t, a.Root(), b.Root())
}

func TestBuild_SingleCredentialRootIsLeaf(t *testing.T) {
	batch := batchOf(1)
	c, err := Build(batch)
	require.NoError(t, err)
	assert.Equal(t, batch.Credentials[0].LeafHash(), c.Root())

	path, err := c.PathFor(0)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestPathFor_OutOfRange(t *testing.T) {
	_, err := PathFor(3, batchOf(3))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = PathFor(0, models.CredentialBatch{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEmptyBatch))
}
