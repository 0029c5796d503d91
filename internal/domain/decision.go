package domain

// Decision status constants.
const (
	DecisionPending      = "pending"
	DecisionSuccess      = "success"
	DecisionFailed       = "failed"
	DecisionSkippedNoGas = "skipped_no_gas"
)

// AgentDecision records one pipeline attempt for an agent/arena/tick.
// Exactly one row per attempt, unique by (agent, arena, tick); written once
// at pipeline start and updated once to a terminal status.
type AgentDecision struct {
	ID         string // UUID
	AgentID    string
	ArenaID    string
	Tick       int64
	Action     string
	SizePct    float64
	Price      float64 // snapshot price at decision time; lets the reconciler replay execution
	Confidence float64
	Reason     string
	Status     string
	TxHash     string
	CreatedAt  int64
	UpdatedAt  int64
}

// Terminal reports whether the decision has reached a terminal status.
func (d *AgentDecision) Terminal() bool {
	return d.Status != DecisionPending
}
