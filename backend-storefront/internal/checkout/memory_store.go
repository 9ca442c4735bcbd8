package checkout

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-instance runs
type MemoryStore struct {
	mu          sync.RWMutex
	attempts    map[string]*Attempt
	transitions map[string][]Transition
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts:    make(map[string]*Attempt),
		transitions: make(map[string][]Transition),
	}
}

// SaveAttempt persists a new attempt
func (s *MemoryStore) SaveAttempt(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attempts[a.ID]; exists {
		return fmt.Errorf("attempt %s already exists", a.ID)
	}
	s.attempts[a.ID] = copyAttempt(a)
	return nil
}

// GetAttempt retrieves an attempt by ID
func (s *MemoryStore) GetAttempt(_ context.Context, id string) (*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.attempts[id]
	if !exists {
		return nil, ErrAttemptNotFound
	}
	return copyAttempt(a), nil
}

// UpdateAttempt updates an existing attempt
func (s *MemoryStore) UpdateAttempt(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attempts[a.ID]; !exists {
		return ErrAttemptNotFound
	}
	s.attempts[a.ID] = copyAttempt(a)
	return nil
}

// SaveTransition persists a state transition
func (s *MemoryStore) SaveTransition(_ context.Context, t *Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions[t.AttemptID] = append(s.transitions[t.AttemptID], *t)
	return nil
}

// GetTransitions retrieves all transitions for an attempt
func (s *MemoryStore) GetTransitions(_ context.Context, attemptID string) ([]Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transitions := s.transitions[attemptID]
	result := make([]Transition, len(transitions))
	copy(result, transitions)
	return result, nil
}

// GetStaleAttempts retrieves attempts in state updated before cutoff, oldest first
func (s *MemoryStore) GetStaleAttempts(_ context.Context, state State, cutoff time.Time, limit int) ([]*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Attempt
	for _, a := range s.attempts {
		if a.State == state && a.UpdatedAt.Before(cutoff) {
			result = append(result, copyAttempt(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of stored attempts
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// copyAttempt deep-copies an attempt. Transitions are kept separately and
// are not part of the stored copy.
func copyAttempt(a *Attempt) *Attempt {
	if a == nil {
		return nil
	}
	copied := *a
	copied.Transitions = nil
	copied.Draft.Lines = append([]DraftLine(nil), a.Draft.Lines...)
	if a.Failure != nil {
		f := *a.Failure
		copied.Failure = &f
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
