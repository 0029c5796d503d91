// Package memory provides in-memory store implementations backing unit tests
// and the --use-memory engine mode.
package memory

import (
	"context"
	"sync"
	"time"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// AgentStore is an in-memory implementation of storage.AgentStore.
type AgentStore struct {
	mu        sync.RWMutex
	byID      map[string]*domain.Agent
	byOnChain map[int64]string // on-chain id -> row id
}

// NewAgentStore creates a new in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		byID:      make(map[string]*domain.Agent),
		byOnChain: make(map[int64]string),
	}
}

// Upsert inserts or updates an agent keyed by on-chain id.
func (s *AgentStore) Upsert(_ context.Context, a *domain.Agent) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.OnChainID > 0 {
		if existingID, ok := s.byOnChain[a.OnChainID]; ok {
			existing := s.byID[existingID]
			updated := *a
			updated.ID = existing.ID
			updated.CreatedAt = existing.CreatedAt
			updated.UpdatedAt = time.Now().UnixMilli()
			s.byID[existingID] = &updated
			return nil
		}
		s.byOnChain[a.OnChainID] = a.ID
	}

	copy := *a
	s.byID[a.ID] = &copy
	return nil
}

// GetByID retrieves an agent by row id.
func (s *AgentStore) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

// GetByOnChainID retrieves an agent by on-chain id.
func (s *AgentStore) GetByOnChainID(_ context.Context, onChainID int64) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOnChain[onChainID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *s.byID[id]
	return &copy, nil
}

var _ storage.AgentStore = (*AgentStore)(nil)
