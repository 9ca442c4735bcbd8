package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/pkg/database"
)

// ErrNotFound is returned when a session has no stored selection for an entity
var ErrNotFound = errors.New("selection not found")

// Store persists selections per session and entity
type Store interface {
	Load(ctx context.Context, sessionID string, entity domain.Entity, entityID domain.ID) (*State, error)
	Save(ctx context.Context, sessionID string, st *State) error
	Delete(ctx context.Context, sessionID string, entity domain.Entity, entityID domain.ID) error
}

func storeKey(sessionID string, entity domain.Entity, entityID domain.ID) string {
	return fmt.Sprintf("storefront:selection:%s:%s:%s", sessionID, entity, entityID)
}

// RedisStore keeps selections in Redis as JSON with a sliding TTL
type RedisStore struct {
	client *database.RedisClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *database.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string, entity domain.Entity, entityID domain.ID) (*State, error) {
	var st State
	if err := s.client.GetJSON(ctx, storeKey(sessionID, entity, entityID), &st); err != nil {
		if errors.Is(err, database.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load selection: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, st *State) error {
	if err := s.client.SetJSON(ctx, storeKey(sessionID, st.Entity, st.EntityID), st, s.ttl); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string, entity domain.Entity, entityID domain.ID) error {
	if err := s.client.Delete(ctx, storeKey(sessionID, entity, entityID)); err != nil {
		return fmt.Errorf("failed to delete selection: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and single-instance runs
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string, entity domain.Entity, entityID domain.ID) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[storeKey(sessionID, entity, entityID)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyState(st), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[storeKey(sessionID, st.Entity, st.EntityID)] = *copyState(*st)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, entity domain.Entity, entityID domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, storeKey(sessionID, entity, entityID))
	return nil
}

func copyState(st State) *State {
	st.Dates = append([]domain.BookableDate(nil), st.Dates...)
	st.TicketTypes = append([]domain.TicketType(nil), st.TicketTypes...)
	st.Items = append([]Item(nil), st.Items...)
	return &st
}
