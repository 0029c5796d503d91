package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *Pool
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(pool *Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

// Create adds a new portfolio. Returns ErrDuplicateKey if the pair already has one.
func (s *PortfolioStore) Create(ctx context.Context, p *domain.Portfolio) error {
	query := `
		INSERT INTO portfolios (
			id, agent_id, arena_id, cash, token_units, avg_entry_price,
			initial_capital, trades_this_window, last_trade_tick, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		p.ID,
		p.AgentID,
		p.ArenaID,
		p.Cash,
		p.TokenUnits,
		p.AvgEntryPrice,
		p.InitialCapital,
		p.TradesThisWindow,
		p.LastTradeTick,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("create portfolio: %w", err)
	}
	return nil
}

// Get retrieves the portfolio for a pair. Returns ErrNotFound if not exists.
func (s *PortfolioStore) Get(ctx context.Context, agentID, arenaID string) (*domain.Portfolio, error) {
	query := selectPortfolio + ` WHERE agent_id = $1 AND arena_id = $2`

	var p domain.Portfolio
	err := s.pool.QueryRow(ctx, query, agentID, arenaID).Scan(portfolioFields(&p)...)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return &p, nil
}

// Update overwrites the portfolio row. Returns ErrNotFound if not exists.
func (s *PortfolioStore) Update(ctx context.Context, p *domain.Portfolio) error {
	query := `
		UPDATE portfolios SET
			cash = $2,
			token_units = $3,
			avg_entry_price = $4,
			initial_capital = $5,
			trades_this_window = $6,
			last_trade_tick = $7,
			updated_at = $8
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.ID,
		p.Cash,
		p.TokenUnits,
		p.AvgEntryPrice,
		p.InitialCapital,
		p.TradesThisWindow,
		p.LastTradeTick,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByAgent retrieves all of an agent's portfolios.
func (s *PortfolioStore) ListByAgent(ctx context.Context, agentID string) ([]*domain.Portfolio, error) {
	return s.list(ctx, "agent_id = $1", agentID)
}

// ListByArena retrieves all portfolios in an arena.
func (s *PortfolioStore) ListByArena(ctx context.Context, arenaID string) ([]*domain.Portfolio, error) {
	return s.list(ctx, "arena_id = $1", arenaID)
}

func (s *PortfolioStore) list(ctx context.Context, where string, arg any) ([]*domain.Portfolio, error) {
	query := selectPortfolio + ` WHERE ` + where + ` ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	return scanPortfolios(rows)
}

const selectPortfolio = `
	SELECT id, agent_id, arena_id, cash, token_units, avg_entry_price,
	       initial_capital, trades_this_window, last_trade_tick, created_at, updated_at
	FROM portfolios`

func portfolioFields(p *domain.Portfolio) []any {
	return []any{
		&p.ID,
		&p.AgentID,
		&p.ArenaID,
		&p.Cash,
		&p.TokenUnits,
		&p.AvgEntryPrice,
		&p.InitialCapital,
		&p.TradesThisWindow,
		&p.LastTradeTick,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func scanPortfolios(rows pgx.Rows) ([]*domain.Portfolio, error) {
	var portfolios []*domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(portfolioFields(&p)...); err != nil {
			return nil, fmt.Errorf("scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio rows: %w", err)
	}
	return portfolios, nil
}
