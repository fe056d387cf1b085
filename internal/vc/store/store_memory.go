package store

import (
	"context"
	"sync"

	"nexuscred/internal/vc/models"
	id "nexuscred/pkg/domain"
)

// InMemoryStore keeps each student's credentials in insertion order.
type InMemoryStore struct {
	mu        sync.RWMutex
	byStudent map[id.StudentID][]models.VerifiableCredential
	emitted   map[id.BatchID]int
}

// New constructs an empty in-memory credential store.
func New() *InMemoryStore {
	return &InMemoryStore{
		byStudent: make(map[id.StudentID][]models.VerifiableCredential),
		emitted:   make(map[id.BatchID]int),
	}
}

func (s *InMemoryStore) Append(ctx context.Context, vc *models.VerifiableCredential) error {
	return s.AppendAll(ctx, []*models.VerifiableCredential{vc})
}

// AppendAll appends every credential or none.
func (s *InMemoryStore) AppendAll(_ context.Context, vcs []*models.VerifiableCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vc := range vcs {
		if vc == nil || vc.StudentID.IsNil() {
			return ErrInvalidCredential
		}
	}
	for _, vc := range vcs {
		s.byStudent[vc.StudentID] = append(s.byStudent[vc.StudentID], cloneCredential(vc))
		s.emitted[vc.BatchID]++
	}
	return nil
}

func (s *InMemoryStore) ListByStudent(_ context.Context, studentID id.StudentID) ([]*models.VerifiableCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byStudent[studentID]
	out := make([]*models.VerifiableCredential, 0, len(stored))
	for i := range stored {
		vc := cloneCredential(&stored[i])
		out = append(out, &vc)
	}
	return out, nil
}

func (s *InMemoryStore) CountByStudent(_ context.Context, studentID id.StudentID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byStudent[studentID]), nil
}

func (s *InMemoryStore) CountByBatch(_ context.Context, batchID id.BatchID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emitted[batchID], nil
}

func cloneCredential(vc *models.VerifiableCredential) models.VerifiableCredential {
	out := *vc
	out.CredentialData.Fields = append(out.CredentialData.Fields[:0:0], vc.CredentialData.Fields...)
	out.MerklePath = append(out.MerklePath[:0:0], vc.MerklePath...)
	return out
}
