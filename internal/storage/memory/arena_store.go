package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// ArenaStore is an in-memory implementation of storage.ArenaStore.
// It also owns registrations so ListWithActiveRegistrations stays consistent.
type ArenaStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Arena
	byToken map[string]string // lowercased token address -> row id

	regs *RegistrationStore
}

// NewArenaStore creates a new in-memory arena store backed by the given
// registration store.
func NewArenaStore(regs *RegistrationStore) *ArenaStore {
	return &ArenaStore{
		byID:    make(map[string]*domain.Arena),
		byToken: make(map[string]string),
		regs:    regs,
	}
}

// Upsert inserts or updates an arena keyed by lowercased token address.
func (s *ArenaStore) Upsert(_ context.Context, a *domain.Arena) error {
	if a == nil || a.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	token := strings.ToLower(a.TokenAddress)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byToken[token]; ok {
		existing := s.byID[existingID]
		updated := *a
		updated.ID = existing.ID
		updated.TokenAddress = token
		updated.CreatedAt = existing.CreatedAt
		s.byID[existingID] = &updated
		return nil
	}

	copy := *a
	copy.TokenAddress = token
	if copy.ID == "" {
		copy.ID = uuid.NewString()
	}
	s.byID[copy.ID] = &copy
	s.byToken[token] = copy.ID
	return nil
}

// GetByID retrieves an arena by row id.
func (s *ArenaStore) GetByID(_ context.Context, id string) (*domain.Arena, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

// GetByOnChainID retrieves an arena by on-chain id.
func (s *ArenaStore) GetByOnChainID(_ context.Context, onChainID int64) (*domain.Arena, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.byID {
		if a.OnChainID == onChainID {
			copy := *a
			return &copy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListWithActiveRegistrations retrieves arenas with at least one active registration.
func (s *ArenaStore) ListWithActiveRegistrations(ctx context.Context) ([]*domain.Arena, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Arena
	for _, a := range s.byID {
		regs, err := s.regs.ListActiveByArena(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if len(regs) > 0 {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

var _ storage.ArenaStore = (*ArenaStore)(nil)

// RegistrationStore is an in-memory implementation of storage.RegistrationStore.
type RegistrationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ArenaRegistration // keyed by agentID|arenaID
}

// NewRegistrationStore creates a new in-memory registration store.
func NewRegistrationStore() *RegistrationStore {
	return &RegistrationStore{data: make(map[string]*domain.ArenaRegistration)}
}

func regKey(agentID, arenaID string) string {
	return agentID + "|" + arenaID
}

// Upsert creates or reactivates/deactivates the single (agent, arena) row.
func (s *RegistrationStore) Upsert(_ context.Context, agentID, arenaID string, active bool) error {
	if agentID == "" || arenaID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	key := regKey(agentID, arenaID)
	if existing, ok := s.data[key]; ok {
		existing.IsActive = active
		existing.UpdatedAt = now
		return nil
	}

	s.data[key] = &domain.ArenaRegistration{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		ArenaID:   arenaID,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// Get retrieves the registration for a pair.
func (s *RegistrationStore) Get(_ context.Context, agentID, arenaID string) (*domain.ArenaRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[regKey(agentID, arenaID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// ListActiveByArena retrieves active registrations for an arena, ordered by creation.
func (s *RegistrationStore) ListActiveByArena(_ context.Context, arenaID string) ([]*domain.ArenaRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ArenaRegistration
	for _, r := range s.data {
		if r.ArenaID == arenaID && r.IsActive {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

// ListActiveByAgent retrieves an agent's active registrations.
func (s *RegistrationStore) ListActiveByAgent(_ context.Context, agentID string) ([]*domain.ArenaRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ArenaRegistration
	for _, r := range s.data {
		if r.AgentID == agentID && r.IsActive {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

var _ storage.RegistrationStore = (*RegistrationStore)(nil)
