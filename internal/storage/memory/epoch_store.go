package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// EpochStore is an in-memory implementation of storage.EpochStore.
type EpochStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Epoch    // keyed by arenaID|onChainEpochID
	regs map[string]*domain.EpochRegistration // keyed by epochID|agentID
}

// NewEpochStore creates a new in-memory epoch store.
func NewEpochStore() *EpochStore {
	return &EpochStore{
		data: make(map[string]*domain.Epoch),
		regs: make(map[string]*domain.EpochRegistration),
	}
}

func epochKey(arenaID string, onChainEpochID int64) string {
	return fmt.Sprintf("%s|%d", arenaID, onChainEpochID)
}

// Upsert inserts or updates an epoch keyed by (arena, on-chain epoch id).
func (s *EpochStore) Upsert(_ context.Context, e *domain.Epoch) error {
	if e == nil || e.ArenaID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := epochKey(e.ArenaID, e.OnChainEpochID)
	if existing, ok := s.data[key]; ok {
		updated := *e
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		s.data[key] = &updated
		return nil
	}

	copy := *e
	if copy.ID == "" {
		copy.ID = uuid.NewString()
	}
	s.data[key] = &copy
	return nil
}

// GetByArenaEpoch retrieves an epoch.
func (s *EpochStore) GetByArenaEpoch(_ context.Context, arenaID string, onChainEpochID int64) (*domain.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[epochKey(arenaID, onChainEpochID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *e
	return &copy, nil
}

// UpsertRegistration records an agent's renewal into an epoch, idempotently.
func (s *EpochStore) UpsertRegistration(_ context.Context, epochID, agentID string) error {
	if epochID == "" || agentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := epochID + "|" + agentID
	if _, ok := s.regs[key]; ok {
		return nil
	}
	s.regs[key] = &domain.EpochRegistration{
		EpochID:   epochID,
		AgentID:   agentID,
		CreatedAt: time.Now().UnixMilli(),
	}
	return nil
}

// RegistrationCount returns the number of epoch registrations, for tests.
func (s *EpochStore) RegistrationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regs)
}

var _ storage.EpochStore = (*EpochStore)(nil)
