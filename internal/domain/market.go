package domain

// MarketSnapshot is the current price/feature view for one token.
type MarketSnapshot struct {
	TokenAddress string
	Price        float64
	Volume1h     float64 // native-denominated traded volume, trailing hour
	Events1h     int     // swap event count, trailing hour
	Liquidity    float64
	TimestampMs  int64
}

// Suggestion is a raw oracle trade suggestion, before guardrails.
type Suggestion struct {
	Action     string  // BUY | SELL | HOLD
	SizePct    float64 // fraction of cash (BUY) or tokens (SELL), [0,1]
	Confidence float64
	Reason     string
}
