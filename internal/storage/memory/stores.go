package memory

import "agent-arena/internal/storage"

// NewStores builds a complete in-memory store bundle.
func NewStores() *storage.Stores {
	regs := NewRegistrationStore()
	portfolios := NewPortfolioStore()
	trades := NewTradeStore()
	decisions := NewDecisionStore()

	return &storage.Stores{
		Agents:        NewAgentStore(),
		Arenas:        NewArenaStore(regs),
		Registrations: regs,
		Portfolios:    portfolios,
		Trades:        trades,
		Decisions:     decisions,
		Epochs:        NewEpochStore(),
		Leaderboards:  NewLeaderboardStore(),
		ChainTrades:   NewChainTradeStore(),
		Committer:     NewCommitter(portfolios, trades, decisions),
	}
}
