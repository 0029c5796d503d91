// Package oracle defines the decision oracle the pipeline consults each tick.
package oracle

import (
	"context"

	"agent-arena/internal/domain"
	"agent-arena/internal/profile"
)

// DecisionContext is everything the oracle sees for one agent/arena/tick.
type DecisionContext struct {
	AgentID   string                 `json:"agentId"`
	ArenaID   string                 `json:"arenaId"`
	Tick      int64                  `json:"tick"`
	Profile   *profile.Profile       `json:"profile"`
	Snapshot  *domain.MarketSnapshot `json:"market"`
	Portfolio *domain.Portfolio      `json:"portfolio"`
	Memory    string                 `json:"memory,omitempty"`
}

// Oracle maps a decision context to a trade suggestion.
// The oracle's internal reasoning is opaque to this system.
type Oracle interface {
	Decide(ctx context.Context, dc *DecisionContext) (*domain.Suggestion, error)
}
