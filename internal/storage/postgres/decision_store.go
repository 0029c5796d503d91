package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// DecisionStore implements storage.DecisionStore using PostgreSQL.
type DecisionStore struct {
	pool *Pool
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(pool *Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

// Insert adds a decision. Returns ErrDuplicateKey if (agent, arena, tick) exists.
func (s *DecisionStore) Insert(ctx context.Context, d *domain.AgentDecision) error {
	query := `
		INSERT INTO agent_decisions (
			id, agent_id, arena_id, tick, action, size_pct, price,
			confidence, reason, status, tx_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.AgentID, d.ArenaID, d.Tick, d.Action, d.SizePct, d.Price,
		d.Confidence, d.Reason, d.Status, d.TxHash, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// UpdateStatus moves a decision to a terminal status, recording the tx hash.
func (s *DecisionStore) UpdateStatus(ctx context.Context, id, status, txHash string) error {
	query := `
		UPDATE agent_decisions
		SET status = $2, tx_hash = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, status, txHash, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update decision status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPending retrieves pending decisions created before the cutoff (ms), oldest first.
func (s *DecisionStore) ListPending(ctx context.Context, cutoffMs int64) ([]*domain.AgentDecision, error) {
	query := selectDecision + `
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, cutoffMs)
	if err != nil {
		return nil, fmt.Errorf("list pending decisions: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// ListByPair retrieves decisions for (agent, arena), ordered by tick ASC.
func (s *DecisionStore) ListByPair(ctx context.Context, agentID, arenaID string) ([]*domain.AgentDecision, error) {
	query := selectDecision + `
		WHERE agent_id = $1 AND arena_id = $2
		ORDER BY tick ASC
	`

	rows, err := s.pool.Query(ctx, query, agentID, arenaID)
	if err != nil {
		return nil, fmt.Errorf("list decisions by pair: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

const selectDecision = `
	SELECT id, agent_id, arena_id, tick, action, size_pct, price,
	       confidence, reason, status, tx_hash, created_at, updated_at
	FROM agent_decisions`

func scanDecisions(rows pgx.Rows) ([]*domain.AgentDecision, error) {
	var decisions []*domain.AgentDecision
	for rows.Next() {
		var d domain.AgentDecision
		err := rows.Scan(
			&d.ID, &d.AgentID, &d.ArenaID, &d.Tick, &d.Action, &d.SizePct, &d.Price,
			&d.Confidence, &d.Reason, &d.Status, &d.TxHash, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		decisions = append(decisions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}
	return decisions, nil
}
