package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// LeaderboardStore implements storage.LeaderboardStore using PostgreSQL.
// Snapshot entries are stored as a JSONB document; snapshots are immutable
// and read back whole, so there is nothing to gain from a row per entry.
type LeaderboardStore struct {
	pool *Pool
}

// NewLeaderboardStore creates a new LeaderboardStore.
func NewLeaderboardStore(pool *Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)

// Insert adds a snapshot. Returns ErrDuplicateKey if (arena, tick) exists.
func (s *LeaderboardStore) Insert(ctx context.Context, snap *domain.LeaderboardSnapshot) error {
	entries, err := json.Marshal(snap.Entries)
	if err != nil {
		return fmt.Errorf("marshal leaderboard entries: %w", err)
	}

	query := `
		INSERT INTO leaderboard_snapshots (id, arena_id, tick, entries, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query, snap.ID, snap.ArenaID, snap.Tick, entries, snap.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert leaderboard snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for an arena.
func (s *LeaderboardStore) GetLatest(ctx context.Context, arenaID string) (*domain.LeaderboardSnapshot, error) {
	query := `
		SELECT id, arena_id, tick, entries, created_at
		FROM leaderboard_snapshots
		WHERE arena_id = $1
		ORDER BY tick DESC
		LIMIT 1
	`

	var snap domain.LeaderboardSnapshot
	var entries []byte
	err := s.pool.QueryRow(ctx, query, arenaID).Scan(
		&snap.ID, &snap.ArenaID, &snap.Tick, &entries, &snap.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest leaderboard snapshot: %w", err)
	}

	if err := json.Unmarshal(entries, &snap.Entries); err != nil {
		return nil, fmt.Errorf("unmarshal leaderboard entries: %w", err)
	}
	return &snap, nil
}
