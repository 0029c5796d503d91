package postgres

import "agent-arena/internal/storage"

// NewStores builds a complete PostgreSQL store bundle over one pool.
func NewStores(pool *Pool) *storage.Stores {
	return &storage.Stores{
		Agents:        NewAgentStore(pool),
		Arenas:        NewArenaStore(pool),
		Registrations: NewRegistrationStore(pool),
		Portfolios:    NewPortfolioStore(pool),
		Trades:        NewTradeStore(pool),
		Decisions:     NewDecisionStore(pool),
		Epochs:        NewEpochStore(pool),
		Leaderboards:  NewLeaderboardStore(pool),
		ChainTrades:   NewChainTradeStore(pool),
		Committer:     NewCommitter(pool),
	}
}
