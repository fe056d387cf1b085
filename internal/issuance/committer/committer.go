// Package committer builds the Merkle commitment over a credential batch and
// derives per-credential inclusion paths.
package committer

import (
	"errors"
	"fmt"

	"nexuscred/internal/issuance/models"
	"nexuscred/pkg/commitment"
	dErrors "nexuscred/pkg/domain-errors"
)

// Commitment is a built tree over one batch.
type Commitment struct {
	tree   *commitment.Tree
	leaves []commitment.Digest
}

// Build hashes every credential into a leaf and builds the tree. A batch with
// no credentials fails with CodeEmptyBatch.
func Build(batch models.CredentialBatch) (*Commitment, error) {
	if len(batch.Credentials) == 0 {
		return nil, dErrors.New(dErrors.CodeEmptyBatch, "batch has no credentials")
	}
	leaves := batch.Leaves()
	tree, err := commitment.NewTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("build merkle tree: %w", err)
	}
	return &Commitment{tree: tree, leaves: leaves}, nil
}

// Root is the batch's merkle_root.
func (c *Commitment) Root() commitment.Digest {
	return c.tree.Root()
}

// Leaf returns the leaf hash of credential i.
func (c *Commitment) Leaf(i int) (commitment.Digest, error) {
	return c.tree.Leaf(i)
}

// PathFor returns the sibling path from credential i to the root.
func (c *Commitment) PathFor(i int) ([]commitment.Step, error) {
	path, err := c.tree.Path(i)
	if errors.Is(err, commitment.ErrLeafIndex) {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("credential index %d out of range [0,%d)", i, len(c.leaves)))
	}
	return path, err
}

// PathFor builds the batch's tree and returns the path for credential index.
func PathFor(index int, batch models.CredentialBatch) ([]commitment.Step, error) {
	c, err := Build(batch)
	if err != nil {
		return nil, err
	}
	return c.PathFor(index)
}
