package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Portfolio // keyed by agentID|arenaID
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{data: make(map[string]*domain.Portfolio)}
}

func portfolioKey(agentID, arenaID string) string {
	return agentID + "|" + arenaID
}

// Create adds a new portfolio. Returns ErrDuplicateKey if the pair already has one.
func (s *PortfolioStore) Create(_ context.Context, p *domain.Portfolio) error {
	if p == nil || p.AgentID == "" || p.ArenaID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := portfolioKey(p.AgentID, p.ArenaID)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = p.Clone()
	return nil
}

// Get retrieves the portfolio for a pair.
func (s *PortfolioStore) Get(_ context.Context, agentID, arenaID string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[portfolioKey(agentID, arenaID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// Update overwrites the portfolio row.
func (s *PortfolioStore) Update(_ context.Context, p *domain.Portfolio) error {
	if p == nil || p.AgentID == "" || p.ArenaID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := portfolioKey(p.AgentID, p.ArenaID)
	if _, ok := s.data[key]; !ok {
		return storage.ErrNotFound
	}

	updated := p.Clone()
	updated.UpdatedAt = time.Now().UnixMilli()
	s.data[key] = updated
	return nil
}

// ListByAgent retrieves all of an agent's portfolios.
func (s *PortfolioStore) ListByAgent(_ context.Context, agentID string) ([]*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Portfolio
	for _, p := range s.data {
		if p.AgentID == agentID {
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

// ListByArena retrieves all portfolios in an arena.
func (s *PortfolioStore) ListByArena(_ context.Context, arenaID string) ([]*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Portfolio
	for _, p := range s.data {
		if p.ArenaID == arenaID {
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

var _ storage.PortfolioStore = (*PortfolioStore)(nil)
