package postgres

import (
	"context"
	"fmt"
	"time"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// EpochStore implements storage.EpochStore using PostgreSQL.
type EpochStore struct {
	pool *Pool
}

// NewEpochStore creates a new EpochStore.
func NewEpochStore(pool *Pool) *EpochStore {
	return &EpochStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EpochStore = (*EpochStore)(nil)

// Upsert inserts or updates an epoch, keyed by (arena, on-chain epoch id).
func (s *EpochStore) Upsert(ctx context.Context, e *domain.Epoch) error {
	query := `
		INSERT INTO epochs (id, arena_id, on_chain_epoch_id, start_time, end_time, ended, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (arena_id, on_chain_epoch_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			ended = EXCLUDED.ended
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.ArenaID, e.OnChainEpochID, e.StartTime, e.EndTime, e.Ended, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert epoch: %w", err)
	}
	return nil
}

// GetByArenaEpoch retrieves an epoch. Returns ErrNotFound if not exists.
func (s *EpochStore) GetByArenaEpoch(ctx context.Context, arenaID string, onChainEpochID int64) (*domain.Epoch, error) {
	query := `
		SELECT id, arena_id, on_chain_epoch_id, start_time, end_time, ended, created_at
		FROM epochs
		WHERE arena_id = $1 AND on_chain_epoch_id = $2
	`

	var e domain.Epoch
	err := s.pool.QueryRow(ctx, query, arenaID, onChainEpochID).Scan(
		&e.ID, &e.ArenaID, &e.OnChainEpochID, &e.StartTime, &e.EndTime, &e.Ended, &e.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get epoch: %w", err)
	}
	return &e, nil
}

// UpsertRegistration records an agent's renewal into an epoch, idempotently.
func (s *EpochStore) UpsertRegistration(ctx context.Context, epochID, agentID string) error {
	query := `
		INSERT INTO epoch_registrations (epoch_id, agent_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (epoch_id, agent_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query, epochID, agentID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert epoch registration: %w", err)
	}
	return nil
}
