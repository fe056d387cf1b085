package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuscred/pkg/commitment"
)

func TestVerifyInclusion(t *testing.T) {
	alice := []commitment.Field{{Name: "gpa", Value: "3.8", Hashable: true}, {Name: "cert", Value: "aws", Hashable: true}}
	bob := []commitment.Field{{Name: "gpa", Value: "3.5", Hashable: true}, {Name: "cert", Value: "none", Hashable: true}}

	tree, err := commitment.NewTree([]commitment.Digest{commitment.LeafHash(alice), commitment.LeafHash(bob)})
	require.NoError(t, err)
	path, err := tree.Path(0)
	require.NoError(t, err)

	vc := &VerifiableCredential{
		StudentID:      "alice",
		CredentialData: CredentialData{StudentName: "Alice", Fields: alice},
		MerklePath:     path,
		MerkleRoot:     tree.Root(),
	}
	assert.True(t, vc.VerifyInclusion())

	vc.CredentialData.Fields = bob
	assert.False(t, vc.VerifyInclusion(), "data from another leaf must not verify on this path")
}

func TestDeriveType(t *testing.T) {
	assert.Equal(t, TypeDegree, DeriveType([]commitment.Field{{Name: "Degree", Value: "BSc"}}))
	assert.Equal(t, TypeDegree, DeriveType([]commitment.Field{{Name: "award", Value: "Bachelor degree in CS"}}))
	assert.Equal(t, TypeCertificate, DeriveType([]commitment.Field{{Name: "cert", Value: "aws"}}))
	assert.Equal(t, TypeCertificate, DeriveType(nil))
}
