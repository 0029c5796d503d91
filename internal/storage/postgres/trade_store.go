package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		id, agent_id, arena_id, tick, action, size_pct, price,
		notional, cash_after, token_after, reason, tx_hash, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// Insert adds a trade. Returns ErrDuplicateKey if tx_hash exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// ListByPair retrieves trades for (agent, arena), ordered by tick ASC.
func (s *TradeStore) ListByPair(ctx context.Context, agentID, arenaID string) ([]*domain.Trade, error) {
	query := `
		SELECT id, agent_id, arena_id, tick, action, size_pct, price,
		       notional, cash_after, token_after, reason, tx_hash, created_at
		FROM trades
		WHERE agent_id = $1 AND arena_id = $2
		ORDER BY tick ASC, created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, agentID, arenaID)
	if err != nil {
		return nil, fmt.Errorf("list trades by pair: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// StatsByArena aggregates notional volume and trade count per agent.
func (s *TradeStore) StatsByArena(ctx context.Context, arenaID string) (map[string]storage.TradeStats, error) {
	query := `
		SELECT agent_id, COALESCE(SUM(notional), 0), COUNT(*)
		FROM trades
		WHERE arena_id = $1
		GROUP BY agent_id
	`

	rows, err := s.pool.Query(ctx, query, arenaID)
	if err != nil {
		return nil, fmt.Errorf("trade stats by arena: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]storage.TradeStats)
	for rows.Next() {
		var agentID string
		var st storage.TradeStats
		if err := rows.Scan(&agentID, &st.Volume, &st.TradeCount); err != nil {
			return nil, fmt.Errorf("scan trade stats row: %w", err)
		}
		stats[agentID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade stats rows: %w", err)
	}
	return stats, nil
}

func tradeArgs(t *domain.Trade) []any {
	return []any{
		t.ID, t.AgentID, t.ArenaID, t.Tick, t.Action, t.SizePct, t.Price,
		t.Notional, t.CashAfter, t.TokenAfter, t.Reason, t.TxHash, t.CreatedAt,
	}
}

func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		err := rows.Scan(
			&t.ID, &t.AgentID, &t.ArenaID, &t.Tick, &t.Action, &t.SizePct, &t.Price,
			&t.Notional, &t.CashAfter, &t.TokenAfter, &t.Reason, &t.TxHash, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// ChainTradeStore implements storage.ChainTradeStore using PostgreSQL.
type ChainTradeStore struct {
	pool *Pool
}

// NewChainTradeStore creates a new ChainTradeStore.
func NewChainTradeStore(pool *Pool) *ChainTradeStore {
	return &ChainTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ChainTradeStore = (*ChainTradeStore)(nil)

// Insert adds a chain trade. Returns ErrDuplicateKey if tx_hash exists.
func (s *ChainTradeStore) Insert(ctx context.Context, t *domain.ChainTrade) error {
	query := `
		INSERT INTO chain_trades (
			tx_hash, agent_on_chain_id, arena_on_chain_id, action,
			amount, block_number, block_time, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TxHash,
		t.AgentOnChainID,
		t.ArenaOnChainID,
		t.Action,
		t.Amount,
		t.BlockNumber,
		t.BlockTime,
		t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert chain trade: %w", err)
	}
	return nil
}

// ListByAgentArena retrieves chain trades for an on-chain pair, ordered by block time ASC.
func (s *ChainTradeStore) ListByAgentArena(ctx context.Context, agentOnChainID, arenaOnChainID int64) ([]*domain.ChainTrade, error) {
	query := `
		SELECT tx_hash, agent_on_chain_id, arena_on_chain_id, action,
		       amount, block_number, block_time, created_at
		FROM chain_trades
		WHERE agent_on_chain_id = $1 AND arena_on_chain_id = $2
		ORDER BY block_time ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, agentOnChainID, arenaOnChainID)
	if err != nil {
		return nil, fmt.Errorf("list chain trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.ChainTrade
	for rows.Next() {
		var t domain.ChainTrade
		err := rows.Scan(
			&t.TxHash, &t.AgentOnChainID, &t.ArenaOnChainID, &t.Action,
			&t.Amount, &t.BlockNumber, &t.BlockTime, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chain trade row: %w", err)
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain trade rows: %w", err)
	}
	return trades, nil
}
