// Package store persists KYC verifications in memory or PostgreSQL and caches
// completed ones in Redis.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"accountopen/internal/kyc/models"
	"accountopen/internal/sentinel"
)

var (
	ErrNotFound      = sentinel.ErrNotFound
	ErrAlreadyExists = sentinel.ErrAlreadyUsed
)

// InMemoryStore keeps verifications in process memory for tests and
// database-less runs.
type InMemoryStore struct {
	mu            sync.RWMutex
	verifications map[string]*models.Verification
	byApplication map[uuid.UUID][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		verifications: make(map[string]*models.Verification),
		byApplication: make(map[uuid.UUID][]string),
	}
}

func (s *InMemoryStore) Save(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.verifications[v.ID]; exists {
		return fmt.Errorf("verification %s: %w", v.ID, ErrAlreadyExists)
	}
	s.verifications[v.ID] = clone(v)
	s.byApplication[v.ApplicationID] = append(s.byApplication[v.ApplicationID], v.ID)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.verifications[v.ID]; !exists {
		return ErrNotFound
	}
	s.verifications[v.ID] = clone(v)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.verifications[id]; ok {
		return clone(v), nil
	}
	return nil, ErrNotFound
}

// FindLatestByApplication returns the most recently created verification.
// Ties on CreatedAt go to the later UpdatedAt, then the greater id.
func (s *InMemoryStore) FindLatestByApplication(_ context.Context, applicationID uuid.UUID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Verification
	for _, id := range s.byApplication[applicationID] {
		v := s.verifications[id]
		if latest == nil || newer(v, latest) {
			latest = v
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return clone(latest), nil
}

func newer(a, b *models.Verification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}

// clone copies the record so callers cannot mutate stored state. Result
// blocks are never mutated after scoring, so their slices are shared.
func clone(v *models.Verification) *models.Verification {
	c := *v
	if v.Results != nil {
		results := *v.Results
		c.Results = &results
	}
	if v.VerifiedAt != nil {
		at := *v.VerifiedAt
		c.VerifiedAt = &at
	}
	return &c
}
