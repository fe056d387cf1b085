package store

import (
	"context"
	"sync"

	"nexuscred/internal/requirement/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
)

type key struct {
	employer id.EmployerID
	hash     commitment.Digest
}

// InMemoryStore keeps requirement commitments keyed by (employer, hash).
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[key]*models.RequirementCommitment
	byEmployer map[id.EmployerID][]commitment.Digest
	published  map[commitment.Digest]int
}

func New() *InMemoryStore {
	return &InMemoryStore{
		records:    make(map[key]*models.RequirementCommitment),
		byEmployer: make(map[id.EmployerID][]commitment.Digest),
		published:  make(map[commitment.Digest]int),
	}
}

// Save inserts rc unless (employer, hash) already exists. It reports whether
// a record was created; an existing record is left untouched.
func (s *InMemoryStore) Save(_ context.Context, rc *models.RequirementCommitment) (bool, error) {
	k := key{employer: rc.EmployerID, hash: rc.CommitmentHash}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[k]; ok {
		return false, nil
	}
	c := *rc
	s.records[k] = &c
	s.byEmployer[rc.EmployerID] = append(s.byEmployer[rc.EmployerID], rc.CommitmentHash)
	s.published[rc.CommitmentHash]++
	return true, nil
}

func (s *InMemoryStore) Find(_ context.Context, employerID id.EmployerID, hash commitment.Digest) (*models.RequirementCommitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.records[key{employer: employerID, hash: hash}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *rc
	return &c, nil
}

// ListByEmployer returns the employer's commitments in publication order.
func (s *InMemoryStore) ListByEmployer(_ context.Context, employerID id.EmployerID) ([]*models.RequirementCommitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := s.byEmployer[employerID]
	out := make([]*models.RequirementCommitment, 0, len(hashes))
	for _, h := range hashes {
		c := *s.records[key{employer: employerID, hash: h}]
		out = append(out, &c)
	}
	return out, nil
}

// IsPublished reports whether any employer has published hash.
func (s *InMemoryStore) IsPublished(_ context.Context, hash commitment.Digest) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published[hash] > 0, nil
}
