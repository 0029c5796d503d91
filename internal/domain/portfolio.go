package domain

// Portfolio is an agent's simulated balance sheet for one arena.
// Invariants: AvgEntryPrice is nil iff TokenUnits == 0; Cash and TokenUnits >= 0.
// Mutated only by committed trades, or by capital rebalancing while unopened.
type Portfolio struct {
	ID               string // UUID
	AgentID          string
	ArenaID          string
	Cash             float64
	TokenUnits       float64
	AvgEntryPrice    *float64
	InitialCapital   float64
	TradesThisWindow int
	LastTradeTick    *int64 // nil if the portfolio has never traded
	CreatedAt        int64
	UpdatedAt        int64
}

// Opened reports whether the portfolio holds a position.
// Opened portfolios are frozen against capital rebalancing.
func (p *Portfolio) Opened() bool {
	return p.TokenUnits > 0
}

// Equity returns total portfolio value at the given token price.
func (p *Portfolio) Equity(price float64) float64 {
	return p.Cash + p.TokenUnits*price
}

// PositionFraction returns tokenValue/(cash+tokenValue), or 0 for an empty portfolio.
func (p *Portfolio) PositionFraction(price float64) float64 {
	equity := p.Equity(price)
	if equity <= 0 {
		return 0
	}
	return p.TokenUnits * price / equity
}

// Clone returns a deep copy.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	if p.AvgEntryPrice != nil {
		v := *p.AvgEntryPrice
		c.AvgEntryPrice = &v
	}
	if p.LastTradeTick != nil {
		v := *p.LastTradeTick
		c.LastTradeTick = &v
	}
	return &c
}
