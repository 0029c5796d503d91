package postgres

import (
	"context"
	"fmt"
	"time"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// Committer implements storage.TradeCommitter using a PostgreSQL transaction.
// The portfolio update, trade insert and decision status write commit
// together or not at all.
type Committer struct {
	pool *Pool
}

// NewCommitter creates a new Committer.
func NewCommitter(pool *Pool) *Committer {
	return &Committer{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeCommitter = (*Committer)(nil)

// CommitTradeResult applies one successful pipeline run atomically.
// Returns ErrDuplicateKey if the trade's tx_hash was already committed.
func (c *Committer) CommitTradeResult(ctx context.Context, res *domain.TradeResult) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p := res.Portfolio
	tag, err := tx.Exec(ctx, `
		UPDATE portfolios SET
			cash = $2,
			token_units = $3,
			avg_entry_price = $4,
			initial_capital = $5,
			trades_this_window = $6,
			last_trade_tick = $7,
			updated_at = $8
		WHERE id = $1
	`, p.ID, p.Cash, p.TokenUnits, p.AvgEntryPrice, p.InitialCapital,
		p.TradesThisWindow, p.LastTradeTick, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("commit portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commit portfolio %s: %w", p.ID, storage.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(res.Trade)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("commit trade: %w", err)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE agent_decisions
		SET status = $2, tx_hash = $3, updated_at = $4
		WHERE id = $1
	`, res.DecisionID, domain.DecisionSuccess, res.TxHash, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("commit decision status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commit decision %s: %w", res.DecisionID, storage.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
