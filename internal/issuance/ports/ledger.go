// Package ports defines the collaborators the issuance service depends on.
package ports

import (
	"context"
	"time"

	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
)

// AnchorRequest is what the ledger needs to anchor one batch commitment.
type AnchorRequest struct {
	BatchID    id.BatchID
	IssuerID   id.IssuerID
	MerkleRoot commitment.Digest
}

// AnchorReceipt is the ledger's confirmation.
type AnchorReceipt struct {
	TxRef       string
	ConfirmedAt time.Time
}

// Ledger anchors batch commitments. Implementations are remote and fallible;
// they must honor ctx cancellation and return a *ledger.CollaboratorError
// (or a wrapped sentinel error) on failure.
type Ledger interface {
	Anchor(ctx context.Context, req AnchorRequest) (*AnchorReceipt, error)
}
