package memory

import (
	"context"
	"sort"
	"sync"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by tx hash
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{data: make(map[string]*domain.Trade)}
}

// Insert adds a trade. Returns ErrDuplicateKey if tx_hash exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TxHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TxHash]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TxHash] = &copy
	return nil
}

// ListByPair retrieves trades for (agent, arena), ordered by tick ASC.
func (s *TradeStore) ListByPair(_ context.Context, agentID, arenaID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.AgentID == agentID && t.ArenaID == arenaID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Tick != result[j].Tick {
			return result[i].Tick < result[j].Tick
		}
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result, nil
}

// StatsByArena aggregates volume and trade count per agent for an arena.
func (s *TradeStore) StatsByArena(_ context.Context, arenaID string) (map[string]storage.TradeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]storage.TradeStats)
	for _, t := range s.data {
		if t.ArenaID != arenaID {
			continue
		}
		stats := result[t.AgentID]
		stats.Volume += t.Notional
		stats.TradeCount++
		result[t.AgentID] = stats
	}
	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)

// ChainTradeStore is an in-memory implementation of storage.ChainTradeStore.
type ChainTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ChainTrade // keyed by tx hash
}

// NewChainTradeStore creates a new in-memory chain trade store.
func NewChainTradeStore() *ChainTradeStore {
	return &ChainTradeStore{data: make(map[string]*domain.ChainTrade)}
}

// Insert adds a chain trade. Returns ErrDuplicateKey if tx_hash exists.
func (s *ChainTradeStore) Insert(_ context.Context, t *domain.ChainTrade) error {
	if t == nil || t.TxHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TxHash]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TxHash] = &copy
	return nil
}

// ListByAgentArena retrieves chain trades for an on-chain (agent, arena) pair.
func (s *ChainTradeStore) ListByAgentArena(_ context.Context, agentOnChainID, arenaOnChainID int64) ([]*domain.ChainTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ChainTrade
	for _, t := range s.data {
		if t.AgentOnChainID == agentOnChainID && t.ArenaOnChainID == arenaOnChainID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BlockTime < result[j].BlockTime })
	return result, nil
}

var _ storage.ChainTradeStore = (*ChainTradeStore)(nil)
