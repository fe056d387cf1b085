// Package store persists proof submissions.
//
// Error contract:
//   - Find and Execute return sentinel.ErrNotFound for unknown proofs
//   - Create returns sentinel.ErrConflict when the proof_id is taken
package store

import (
	"context"
	"sync"

	"nexuscred/internal/proof/models"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
	platformsync "nexuscred/pkg/platform/sync"
)

// MutateFunc changes a submission in place and reports whether it must be
// persisted.
type MutateFunc func(p *models.ProofSubmission) (bool, error)

// InMemoryStore keeps submissions in a map. Execute serializes per proof_id.
type InMemoryStore struct {
	mu        sync.RWMutex
	keys      *platformsync.ShardedMutex
	proofs    map[id.ProofID]*models.ProofSubmission
	byStudent map[id.StudentID][]id.ProofID
}

func New() *InMemoryStore {
	return &InMemoryStore{
		keys:      platformsync.NewShardedMutex(),
		proofs:    make(map[id.ProofID]*models.ProofSubmission),
		byStudent: make(map[id.StudentID][]id.ProofID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *models.ProofSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proofs[p.ProofID]; ok {
		return sentinel.ErrConflict
	}
	s.proofs[p.ProofID] = p.Clone()
	s.byStudent[p.StudentID] = append(s.byStudent[p.StudentID], p.ProofID)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, proofID id.ProofID) (*models.ProofSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proofs[proofID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// ListByStudent returns the student's submissions in creation order.
func (s *InMemoryStore) ListByStudent(_ context.Context, studentID id.StudentID) ([]*models.ProofSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byStudent[studentID]
	out := make([]*models.ProofSubmission, 0, len(ids))
	for _, pid := range ids {
		out = append(out, s.proofs[pid].Clone())
	}
	return out, nil
}

// Execute runs fn on a copy of the submission while holding the proof's
// lock, storing the copy when fn reports a change. It returns the
// submission as it stands after fn.
func (s *InMemoryStore) Execute(ctx context.Context, proofID id.ProofID, fn MutateFunc) (*models.ProofSubmission, error) {
	key := proofID.String()
	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	current, err := s.Find(ctx, proofID)
	if err != nil {
		return nil, err
	}
	dirty, err := fn(current)
	if err != nil {
		return nil, err
	}
	if !dirty {
		return current, nil
	}

	s.mu.Lock()
	s.proofs[proofID] = current.Clone()
	s.mu.Unlock()
	return current, nil
}
