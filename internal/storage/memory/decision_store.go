package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu     sync.RWMutex
	byID   map[string]*domain.AgentDecision
	byTick map[string]string // agentID|arenaID|tick -> row id
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		byID:   make(map[string]*domain.AgentDecision),
		byTick: make(map[string]string),
	}
}

func decisionKey(agentID, arenaID string, tick int64) string {
	return fmt.Sprintf("%s|%s|%d", agentID, arenaID, tick)
}

// Insert adds a decision. Returns ErrDuplicateKey if (agent, arena, tick) exists.
func (s *DecisionStore) Insert(_ context.Context, d *domain.AgentDecision) error {
	if d == nil || d.ID == "" || d.AgentID == "" || d.ArenaID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := decisionKey(d.AgentID, d.ArenaID, d.Tick)
	if _, exists := s.byTick[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *d
	s.byID[d.ID] = &copy
	s.byTick[key] = d.ID
	return nil
}

// UpdateStatus moves a decision to a terminal status, recording the tx hash.
func (s *DecisionStore) UpdateStatus(_ context.Context, id, status, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}

	d.Status = status
	if txHash != "" {
		d.TxHash = txHash
	}
	d.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// ListPending retrieves non-terminal decisions created before the cutoff (ms).
func (s *DecisionStore) ListPending(_ context.Context, cutoffMs int64) ([]*domain.AgentDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AgentDecision
	for _, d := range s.byID {
		if d.Status == domain.DecisionPending && d.CreatedAt < cutoffMs {
			copy := *d
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

// ListByPair retrieves decisions for (agent, arena), ordered by tick ASC.
func (s *DecisionStore) ListByPair(_ context.Context, agentID, arenaID string) ([]*domain.AgentDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AgentDecision
	for _, d := range s.byID {
		if d.AgentID == agentID && d.ArenaID == arenaID {
			copy := *d
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Tick < result[j].Tick })
	return result, nil
}

var _ storage.DecisionStore = (*DecisionStore)(nil)
