package storage

import (
	"context"

	"agent-arena/internal/domain"
)

// AgentStore provides access to agents.
type AgentStore interface {
	// Upsert inserts or updates an agent keyed by on-chain id.
	// Safe under redelivery of AgentCreated events.
	Upsert(ctx context.Context, a *domain.Agent) error

	// GetByID retrieves an agent by row id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Agent, error)

	// GetByOnChainID retrieves an agent by on-chain id. Returns ErrNotFound if not exists.
	GetByOnChainID(ctx context.Context, onChainID int64) (*domain.Agent, error)
}

// ArenaStore provides access to arenas.
type ArenaStore interface {
	// Upsert inserts or updates an arena keyed by lowercased token address.
	Upsert(ctx context.Context, a *domain.Arena) error

	// GetByID retrieves an arena by row id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Arena, error)

	// GetByOnChainID retrieves an arena by on-chain id. Returns ErrNotFound if not exists.
	GetByOnChainID(ctx context.Context, onChainID int64) (*domain.Arena, error)

	// ListWithActiveRegistrations retrieves arenas with at least one active registration.
	ListWithActiveRegistrations(ctx context.Context) ([]*domain.Arena, error)
}

// RegistrationStore provides access to arena registrations.
type RegistrationStore interface {
	// Upsert creates or reactivates/deactivates the single (agent, arena) row.
	Upsert(ctx context.Context, agentID, arenaID string, active bool) error

	// Get retrieves the registration for a pair. Returns ErrNotFound if not exists.
	Get(ctx context.Context, agentID, arenaID string) (*domain.ArenaRegistration, error)

	// ListActiveByArena retrieves active registrations for an arena, ordered by creation.
	ListActiveByArena(ctx context.Context, arenaID string) ([]*domain.ArenaRegistration, error)

	// ListActiveByAgent retrieves an agent's active registrations.
	ListActiveByAgent(ctx context.Context, agentID string) ([]*domain.ArenaRegistration, error)
}

// PortfolioStore provides access to portfolios.
// One current-state row per (agent, arena); history lives in the trade ledger.
type PortfolioStore interface {
	// Create adds a new portfolio. Returns ErrDuplicateKey if the pair already has one.
	Create(ctx context.Context, p *domain.Portfolio) error

	// Get retrieves the portfolio for a pair. Returns ErrNotFound if not exists.
	Get(ctx context.Context, agentID, arenaID string) (*domain.Portfolio, error)

	// Update overwrites the portfolio row. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Portfolio) error

	// ListByAgent retrieves all of an agent's portfolios.
	ListByAgent(ctx context.Context, agentID string) ([]*domain.Portfolio, error)

	// ListByArena retrieves all portfolios in an arena.
	ListByArena(ctx context.Context, arenaID string) ([]*domain.Portfolio, error)
}

// TradeStats aggregates an agent's trade ledger within one arena.
type TradeStats struct {
	Volume     float64
	TradeCount int
}

// TradeStore provides access to the append-only trade ledger.
type TradeStore interface {
	// Insert adds a trade. Returns ErrDuplicateKey if tx_hash exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// ListByPair retrieves trades for (agent, arena), ordered by tick ASC.
	ListByPair(ctx context.Context, agentID, arenaID string) ([]*domain.Trade, error)

	// StatsByArena aggregates volume and trade count per agent for an arena.
	StatsByArena(ctx context.Context, arenaID string) (map[string]TradeStats, error)
}

// DecisionStore provides access to the agent decision ledger.
type DecisionStore interface {
	// Insert adds a decision. Returns ErrDuplicateKey if (agent, arena, tick) exists.
	Insert(ctx context.Context, d *domain.AgentDecision) error

	// UpdateStatus moves a decision to a terminal status, recording the tx hash.
	UpdateStatus(ctx context.Context, id, status, txHash string) error

	// ListPending retrieves non-terminal decisions created before the cutoff (ms).
	ListPending(ctx context.Context, cutoffMs int64) ([]*domain.AgentDecision, error)

	// ListByPair retrieves decisions for (agent, arena), ordered by tick ASC.
	ListByPair(ctx context.Context, agentID, arenaID string) ([]*domain.AgentDecision, error)
}

// EpochStore provides access to epoch mirrors and epoch registrations.
type EpochStore interface {
	// Upsert inserts or updates an epoch keyed by (arena, on-chain epoch id).
	Upsert(ctx context.Context, e *domain.Epoch) error

	// GetByArenaEpoch retrieves an epoch. Returns ErrNotFound if not exists.
	GetByArenaEpoch(ctx context.Context, arenaID string, onChainEpochID int64) (*domain.Epoch, error)

	// UpsertRegistration records an agent's renewal into an epoch, idempotently.
	UpsertRegistration(ctx context.Context, epochID, agentID string) error
}

// LeaderboardStore provides access to leaderboard snapshots.
type LeaderboardStore interface {
	// Insert adds a snapshot. Returns ErrDuplicateKey if (arena, tick) exists.
	Insert(ctx context.Context, s *domain.LeaderboardSnapshot) error

	// GetLatest retrieves the most recent snapshot for an arena.
	// Returns ErrNotFound if the arena has none.
	GetLatest(ctx context.Context, arenaID string) (*domain.LeaderboardSnapshot, error)
}

// ChainTradeStore provides access to the audit-only chain trade mirror.
type ChainTradeStore interface {
	// Insert adds a chain trade. Returns ErrDuplicateKey if tx_hash exists.
	Insert(ctx context.Context, t *domain.ChainTrade) error

	// ListByAgentArena retrieves chain trades for an on-chain (agent, arena) pair.
	ListByAgentArena(ctx context.Context, agentOnChainID, arenaOnChainID int64) ([]*domain.ChainTrade, error)
}

// TradeCommitter applies the portfolio update, trade insert and decision
// status transition of one successful pipeline run as a single transaction.
// All or nothing: a failed commit leaves no partial state.
type TradeCommitter interface {
	CommitTradeResult(ctx context.Context, res *domain.TradeResult) error
}

// Stores bundles every store the engine wires together.
type Stores struct {
	Agents        AgentStore
	Arenas        ArenaStore
	Registrations RegistrationStore
	Portfolios    PortfolioStore
	Trades        TradeStore
	Decisions     DecisionStore
	Epochs        EpochStore
	Leaderboards  LeaderboardStore
	ChainTrades   ChainTradeStore
	Committer     TradeCommitter
}
