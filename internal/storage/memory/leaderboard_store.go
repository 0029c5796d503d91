package memory

import (
	"context"
	"fmt"
	"sync"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// LeaderboardStore is an in-memory implementation of storage.LeaderboardStore.
type LeaderboardStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.LeaderboardSnapshot // keyed by arenaID|tick
	latest map[string]*domain.LeaderboardSnapshot // keyed by arenaID
}

// NewLeaderboardStore creates a new in-memory leaderboard store.
func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		data:   make(map[string]*domain.LeaderboardSnapshot),
		latest: make(map[string]*domain.LeaderboardSnapshot),
	}
}

func snapshotKey(arenaID string, tick int64) string {
	return fmt.Sprintf("%s|%d", arenaID, tick)
}

// Insert adds a snapshot. Returns ErrDuplicateKey if (arena, tick) exists.
func (s *LeaderboardStore) Insert(_ context.Context, snap *domain.LeaderboardSnapshot) error {
	if snap == nil || snap.ArenaID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := snapshotKey(snap.ArenaID, snap.Tick)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *snap
	copy.Entries = append([]domain.LeaderboardEntry(nil), snap.Entries...)
	s.data[key] = &copy

	if cur, ok := s.latest[snap.ArenaID]; !ok || snap.Tick > cur.Tick {
		s.latest[snap.ArenaID] = &copy
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for an arena.
func (s *LeaderboardStore) GetLatest(_ context.Context, arenaID string) (*domain.LeaderboardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.latest[arenaID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *snap
	copy.Entries = append([]domain.LeaderboardEntry(nil), snap.Entries...)
	return &copy, nil
}

var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)
