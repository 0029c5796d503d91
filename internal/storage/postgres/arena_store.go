package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// ArenaStore implements storage.ArenaStore using PostgreSQL.
type ArenaStore struct {
	pool *Pool
}

// NewArenaStore creates a new ArenaStore.
func NewArenaStore(pool *Pool) *ArenaStore {
	return &ArenaStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ArenaStore = (*ArenaStore)(nil)

// Upsert inserts or updates an arena, keyed by lowercased token address.
func (s *ArenaStore) Upsert(ctx context.Context, a *domain.Arena) error {
	query := `
		INSERT INTO arenas (id, on_chain_id, token_address, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_address) DO UPDATE SET
			on_chain_id = EXCLUDED.on_chain_id,
			name = EXCLUDED.name
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.OnChainID,
		strings.ToLower(a.TokenAddress),
		a.Name,
		a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("upsert arena: %w", err)
	}
	return nil
}

// GetByID retrieves an arena by row id. Returns ErrNotFound if not exists.
func (s *ArenaStore) GetByID(ctx context.Context, id string) (*domain.Arena, error) {
	return s.getBy(ctx, "id = $1", id)
}

// GetByOnChainID retrieves an arena by on-chain id. Returns ErrNotFound if not exists.
func (s *ArenaStore) GetByOnChainID(ctx context.Context, onChainID int64) (*domain.Arena, error) {
	return s.getBy(ctx, "on_chain_id = $1", onChainID)
}

func (s *ArenaStore) getBy(ctx context.Context, where string, arg any) (*domain.Arena, error) {
	query := `
		SELECT id, on_chain_id, token_address, name, created_at
		FROM arenas
		WHERE ` + where

	var a domain.Arena
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.OnChainID,
		&a.TokenAddress,
		&a.Name,
		&a.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get arena: %w", err)
	}
	return &a, nil
}

// ListWithActiveRegistrations retrieves arenas with at least one active
// registration, ordered by creation.
func (s *ArenaStore) ListWithActiveRegistrations(ctx context.Context) ([]*domain.Arena, error) {
	query := `
		SELECT DISTINCT a.id, a.on_chain_id, a.token_address, a.name, a.created_at
		FROM arenas a
		JOIN arena_registrations r ON r.arena_id = a.id AND r.is_active
		ORDER BY a.created_at ASC, a.id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list arenas with active registrations: %w", err)
	}
	defer rows.Close()

	var arenas []*domain.Arena
	for rows.Next() {
		var a domain.Arena
		if err := rows.Scan(&a.ID, &a.OnChainID, &a.TokenAddress, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan arena row: %w", err)
		}
		arenas = append(arenas, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate arena rows: %w", err)
	}
	return arenas, nil
}

// RegistrationStore implements storage.RegistrationStore using PostgreSQL.
type RegistrationStore struct {
	pool *Pool
}

// NewRegistrationStore creates a new RegistrationStore.
func NewRegistrationStore(pool *Pool) *RegistrationStore {
	return &RegistrationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RegistrationStore = (*RegistrationStore)(nil)

// Upsert creates or flips the single (agent, arena) registration row.
func (s *RegistrationStore) Upsert(ctx context.Context, agentID, arenaID string, active bool) error {
	now := time.Now().UnixMilli()
	query := `
		INSERT INTO arena_registrations (id, agent_id, arena_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (agent_id, arena_id) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, uuid.NewString(), agentID, arenaID, active, now)
	if err != nil {
		return fmt.Errorf("upsert registration: %w", err)
	}
	return nil
}

// Get retrieves the registration for a pair. Returns ErrNotFound if not exists.
func (s *RegistrationStore) Get(ctx context.Context, agentID, arenaID string) (*domain.ArenaRegistration, error) {
	query := `
		SELECT id, agent_id, arena_id, is_active, created_at, updated_at
		FROM arena_registrations
		WHERE agent_id = $1 AND arena_id = $2
	`

	var r domain.ArenaRegistration
	err := s.pool.QueryRow(ctx, query, agentID, arenaID).Scan(
		&r.ID, &r.AgentID, &r.ArenaID, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &r, nil
}

// ListActiveByArena retrieves active registrations for an arena, ordered by creation.
func (s *RegistrationStore) ListActiveByArena(ctx context.Context, arenaID string) ([]*domain.ArenaRegistration, error) {
	return s.listActive(ctx, "arena_id = $1", arenaID)
}

// ListActiveByAgent retrieves an agent's active registrations.
func (s *RegistrationStore) ListActiveByAgent(ctx context.Context, agentID string) ([]*domain.ArenaRegistration, error) {
	return s.listActive(ctx, "agent_id = $1", agentID)
}

func (s *RegistrationStore) listActive(ctx context.Context, where string, arg any) ([]*domain.ArenaRegistration, error) {
	query := `
		SELECT id, agent_id, arena_id, is_active, created_at, updated_at
		FROM arena_registrations
		WHERE is_active AND ` + where + `
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

func scanRegistrations(rows pgx.Rows) ([]*domain.ArenaRegistration, error) {
	var regs []*domain.ArenaRegistration
	for rows.Next() {
		var r domain.ArenaRegistration
		err := rows.Scan(&r.ID, &r.AgentID, &r.ArenaID, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan registration row: %w", err)
		}
		regs = append(regs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration rows: %w", err)
	}
	return regs, nil
}
