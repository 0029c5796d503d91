package memory

import (
	"context"
	"fmt"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// Committer applies the portfolio+trade+decision triple against the in-memory
// stores. It validates every leg before mutating anything so a failed commit
// leaves no partial state, mirroring the postgres transaction.
type Committer struct {
	portfolios *PortfolioStore
	trades     *TradeStore
	decisions  *DecisionStore
}

// NewCommitter creates a committer over the given stores.
func NewCommitter(portfolios *PortfolioStore, trades *TradeStore, decisions *DecisionStore) *Committer {
	return &Committer{portfolios: portfolios, trades: trades, decisions: decisions}
}

// CommitTradeResult applies one successful pipeline result atomically.
func (c *Committer) CommitTradeResult(ctx context.Context, res *domain.TradeResult) error {
	if res == nil || res.Portfolio == nil || res.Trade == nil || res.DecisionID == "" {
		return storage.ErrInvalidInput
	}

	// Validate all legs first.
	if _, err := c.portfolios.Get(ctx, res.Portfolio.AgentID, res.Portfolio.ArenaID); err != nil {
		return fmt.Errorf("commit: load portfolio: %w", err)
	}
	c.trades.mu.RLock()
	_, tradeExists := c.trades.data[res.Trade.TxHash]
	c.trades.mu.RUnlock()
	if tradeExists {
		return storage.ErrDuplicateKey
	}
	c.decisions.mu.RLock()
	_, decisionExists := c.decisions.byID[res.DecisionID]
	c.decisions.mu.RUnlock()
	if !decisionExists {
		return fmt.Errorf("commit: load decision: %w", storage.ErrNotFound)
	}

	// Apply.
	if err := c.portfolios.Update(ctx, res.Portfolio); err != nil {
		return fmt.Errorf("commit: update portfolio: %w", err)
	}
	if err := c.trades.Insert(ctx, res.Trade); err != nil {
		return fmt.Errorf("commit: insert trade: %w", err)
	}
	if err := c.decisions.UpdateStatus(ctx, res.DecisionID, domain.DecisionSuccess, res.TxHash); err != nil {
		return fmt.Errorf("commit: update decision: %w", err)
	}
	return nil
}

var _ storage.TradeCommitter = (*Committer)(nil)
