package domain

// Trade action constants.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Trade is one executed paper trade. Append-only; unique by TxHash.
// Created only inside the atomic post-chain-success commit.
type Trade struct {
	ID         string // UUID
	AgentID    string
	ArenaID    string
	Tick       int64
	Action     string // BUY | SELL
	SizePct    float64
	Price      float64
	Notional   float64 // trade value in native currency
	CashAfter  float64
	TokenAfter float64
	Reason     string
	TxHash     string
	CreatedAt  int64
}

// TradeResult bundles the outputs of one agent's successful pipeline run.
// The three writes commit as a single transaction.
type TradeResult struct {
	Portfolio  *Portfolio
	Trade      *Trade
	DecisionID string
	TxHash     string
}

// ChainTrade is an audit-only mirror of a TradePlaced chain event.
// It never feeds Portfolio or Trade mutation; the reconciler reads it to
// match stuck pending decisions to known transaction hashes.
type ChainTrade struct {
	TxHash         string // unique
	AgentOnChainID int64
	ArenaOnChainID int64
	Action         string
	Amount         float64 // native units
	BlockNumber    int64
	BlockTime      int64 // Unix seconds
	CreatedAt      int64
}
