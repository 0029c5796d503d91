package postgres

import (
	"context"
	"fmt"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// AgentStore implements storage.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *Pool
}

// NewAgentStore creates a new AgentStore.
func NewAgentStore(pool *Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AgentStore = (*AgentStore)(nil)

// Upsert inserts or updates an agent, keyed by id. Locally managed fields
// (signer ciphertext, funded balance, profile) follow the given struct.
func (s *AgentStore) Upsert(ctx context.Context, a *domain.Agent) error {
	query := `
		INSERT INTO agents (
			id, on_chain_id, name, wallet_address, signer_ciphertext,
			funded_balance, profile_config, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			on_chain_id = EXCLUDED.on_chain_id,
			name = EXCLUDED.name,
			wallet_address = EXCLUDED.wallet_address,
			signer_ciphertext = EXCLUDED.signer_ciphertext,
			funded_balance = EXCLUDED.funded_balance,
			profile_config = EXCLUDED.profile_config,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.OnChainID,
		a.Name,
		a.WalletAddress,
		a.SignerCiphertext,
		a.FundedBalance,
		a.ProfileConfig,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

// GetByID retrieves an agent by row id. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return s.getBy(ctx, "id = $1", id)
}

// GetByOnChainID retrieves an agent by on-chain id. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByOnChainID(ctx context.Context, onChainID int64) (*domain.Agent, error) {
	return s.getBy(ctx, "on_chain_id = $1", onChainID)
}

func (s *AgentStore) getBy(ctx context.Context, where string, arg any) (*domain.Agent, error) {
	query := `
		SELECT id, on_chain_id, name, wallet_address, signer_ciphertext,
		       funded_balance, profile_config, created_at, updated_at
		FROM agents
		WHERE ` + where

	var a domain.Agent
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.OnChainID,
		&a.Name,
		&a.WalletAddress,
		&a.SignerCiphertext,
		&a.FundedBalance,
		&a.ProfileConfig,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}
