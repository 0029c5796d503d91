package domain

// Arena is a trading venue keyed by one tradable token.
// One row per token address.
type Arena struct {
	ID           string // UUID
	OnChainID    int64
	TokenAddress string // lowercased hex; unique
	Name         string
	CreatedAt    int64 // Unix timestamp in milliseconds
}

// ArenaRegistration links an agent to an arena.
// At most one row per (agent, arena) pair; reactivated in place.
type ArenaRegistration struct {
	ID        string // UUID
	AgentID   string
	ArenaID   string
	IsActive  bool
	CreatedAt int64
	UpdatedAt int64
}
