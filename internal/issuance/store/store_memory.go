// Package store persists issuers and batch commitments.
//
// Error contract:
//   - Find* return sentinel.ErrNotFound when the entity does not exist
//   - Create* return sentinel.ErrConflict when the key is taken
package store

import (
	"context"
	"sync"

	"nexuscred/internal/issuance/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
)

// InMemoryStore keeps issuers and batches in maps. Returned values are copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	issuers  map[id.IssuerID]*models.Issuer
	batches  map[id.BatchID]*models.BatchCommitment
	byIssuer map[id.IssuerID][]id.BatchID
	byRoot   map[commitment.Digest][]id.BatchID
}

func New() *InMemoryStore {
	return &InMemoryStore{
		issuers:  make(map[id.IssuerID]*models.Issuer),
		batches:  make(map[id.BatchID]*models.BatchCommitment),
		byIssuer: make(map[id.IssuerID][]id.BatchID),
		byRoot:   make(map[commitment.Digest][]id.BatchID),
	}
}

func (s *InMemoryStore) CreateIssuer(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[issuer.IssuerID]; ok {
		return sentinel.ErrConflict
	}
	c := *issuer
	s.issuers[issuer.IssuerID] = &c
	return nil
}

func (s *InMemoryStore) FindIssuer(_ context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issuer, ok := s.issuers[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *issuer
	return &c, nil
}

func (s *InMemoryStore) IncrementBatchesIssued(_ context.Context, issuerID id.IssuerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issuer, ok := s.issuers[issuerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	issuer.BatchesIssued++
	return nil
}

func (s *InMemoryStore) CreateBatch(_ context.Context, batch *models.BatchCommitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.BatchID]; ok {
		return sentinel.ErrConflict
	}
	s.batches[batch.BatchID] = cloneBatch(batch)
	s.byIssuer[batch.IssuerID] = append(s.byIssuer[batch.IssuerID], batch.BatchID)
	s.byRoot[batch.MerkleRoot] = append(s.byRoot[batch.MerkleRoot], batch.BatchID)
	return nil
}

func (s *InMemoryStore) FindBatch(_ context.Context, batchID id.BatchID) (*models.BatchCommitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneBatch(batch), nil
}

// FindBatchForUpdate is FindBatch; callers serialize per batch via the
// sharded anchor transaction.
func (s *InMemoryStore) FindBatchForUpdate(ctx context.Context, batchID id.BatchID) (*models.BatchCommitment, error) {
	return s.FindBatch(ctx, batchID)
}

func (s *InMemoryStore) FindAnchoredByRoot(_ context.Context, root commitment.Digest) (*models.BatchCommitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, batchID := range s.byRoot[root] {
		if b := s.batches[batchID]; b.IsAnchored() {
			return cloneBatch(b), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListBatchesByIssuer(_ context.Context, issuerID id.IssuerID) ([]*models.BatchCommitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byIssuer[issuerID]
	out := make([]*models.BatchCommitment, 0, len(ids))
	for _, batchID := range ids {
		out = append(out, cloneBatch(s.batches[batchID]))
	}
	return out, nil
}

// SaveAnchoring persists the anchoring metadata of batch. It refuses to
// overwrite an already anchored batch.
func (s *InMemoryStore) SaveAnchoring(_ context.Context, batch *models.BatchCommitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.batches[batch.BatchID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.IsAnchored() {
		return sentinel.ErrInvalidState
	}
	stored.Status = batch.Status
	stored.LedgerTxRef = batch.LedgerTxRef
	if batch.AnchoredAt != nil {
		at := *batch.AnchoredAt
		stored.AnchoredAt = &at
	}
	return nil
}

func cloneBatch(b *models.BatchCommitment) *models.BatchCommitment {
	c := *b
	if b.AnchoredAt != nil {
		at := *b.AnchoredAt
		c.AnchoredAt = &at
	}
	c.Credentials = make([]models.RawCredential, len(b.Credentials))
	for i, cred := range b.Credentials {
		cred.Fields = append([]models.CredentialField(nil), cred.Fields...)
		c.Credentials[i] = cred
	}
	return &c
}
