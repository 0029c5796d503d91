// Package paper implements the direct-model paper execution engine.
//
// Accounting model: BUY moves cash into tokens at the snapshot price and
// SELL liquidates tokens back into cash at the snapshot price. No fees.
// The average entry price is a cost-weighted running average on BUY and is
// cleared to nil whenever the position returns to zero tokens.
package paper

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"agent-arena/internal/domain"
)

// zeroTokens is the threshold below which a position counts as closed.
const zeroTokens = 1e-12

// Execute applies a final (post-guardrail) decision to a portfolio.
// Pure with respect to its inputs: the given portfolio is never mutated.
// HOLD or a non-positive size is the identity and produces no trade record.
func Execute(snap *domain.MarketSnapshot, pf *domain.Portfolio, decision domain.Suggestion, tick int64) (*domain.Portfolio, *domain.Trade, error) {
	if decision.Action == domain.ActionHold || decision.SizePct <= 0 {
		return pf.Clone(), nil, nil
	}
	if snap.Price <= 0 {
		return nil, nil, fmt.Errorf("non-positive snapshot price %f", snap.Price)
	}

	next := pf.Clone()
	var notional float64

	switch decision.Action {
	case domain.ActionBuy:
		spend := pf.Cash * decision.SizePct
		if spend <= 0 {
			return pf.Clone(), nil, nil
		}
		minted := spend / snap.Price

		// Cost-weighted running average entry price.
		prevCost := 0.0
		if next.AvgEntryPrice != nil {
			prevCost = next.TokenUnits * *next.AvgEntryPrice
		}
		avg := (prevCost + spend) / (next.TokenUnits + minted)

		next.Cash -= spend
		next.TokenUnits += minted
		next.AvgEntryPrice = &avg
		notional = spend

	case domain.ActionSell:
		if pf.TokenUnits <= zeroTokens {
			return pf.Clone(), nil, nil
		}
		sold := pf.TokenUnits * decision.SizePct
		proceeds := sold * snap.Price

		next.Cash += proceeds
		next.TokenUnits -= sold
		if next.TokenUnits <= zeroTokens {
			next.TokenUnits = 0
			next.AvgEntryPrice = nil
		}
		notional = proceeds

	default:
		return nil, nil, fmt.Errorf("unknown action %q", decision.Action)
	}

	next.TradesThisWindow++
	t := tick
	next.LastTradeTick = &t

	trade := &domain.Trade{
		ID:         uuid.NewString(),
		AgentID:    pf.AgentID,
		ArenaID:    pf.ArenaID,
		Tick:       tick,
		Action:     decision.Action,
		SizePct:    decision.SizePct,
		Price:      snap.Price,
		Notional:   notional,
		CashAfter:  next.Cash,
		TokenAfter: next.TokenUnits,
		Reason:     decision.Reason,
		CreatedAt:  time.Now().UnixMilli(),
	}

	return next, trade, nil
}
