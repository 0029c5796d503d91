package paper

import (
	"math"
	"testing"

	"agent-arena/internal/domain"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func freshPortfolio(cash float64) *domain.Portfolio {
	return &domain.Portfolio{
		ID:             "pf1",
		AgentID:        "agent1",
		ArenaID:        "arena1",
		Cash:           cash,
		InitialCapital: cash,
	}
}

func snapshotAt(price float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{TokenAddress: "0xtoken", Price: price}
}

func TestExecute_BuyMovesCashIntoTokens(t *testing.T) {
	pf := freshPortfolio(100)

	next, trade, err := Execute(snapshotAt(2.0), pf, domain.Suggestion{
		Action:  domain.ActionBuy,
		SizePct: 0.2,
	}, 7)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !approx(next.Cash, 80) {
		t.Errorf("Expected cash 80, got %f", next.Cash)
	}
	if !approx(next.TokenUnits, 10) {
		t.Errorf("Expected 10 token units, got %f", next.TokenUnits)
	}
	if next.AvgEntryPrice == nil || !approx(*next.AvgEntryPrice, 2.0) {
		t.Errorf("Expected avg entry price 2.0, got %v", next.AvgEntryPrice)
	}

	if trade == nil {
		t.Fatal("Expected a trade record")
	}
	if !approx(trade.Notional, 20) {
		t.Errorf("Expected notional 20, got %f", trade.Notional)
	}
	if !approx(trade.CashAfter, 80) || !approx(trade.TokenAfter, 10) {
		t.Errorf("Expected after-state (80, 10), got (%f, %f)", trade.CashAfter, trade.TokenAfter)
	}
	if trade.Tick != 7 {
		t.Errorf("Expected tick 7, got %d", trade.Tick)
	}
	if next.LastTradeTick == nil || *next.LastTradeTick != 7 {
		t.Errorf("Expected last trade tick 7, got %v", next.LastTradeTick)
	}
	if next.TradesThisWindow != 1 {
		t.Errorf("Expected trades this window 1, got %d", next.TradesThisWindow)
	}
}

func TestExecute_FullSellClearsPositionAndAvgEntry(t *testing.T) {
	pf := freshPortfolio(100)

	mid, _, err := Execute(snapshotAt(2.0), pf, domain.Suggestion{Action: domain.ActionBuy, SizePct: 0.2}, 1)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	next, trade, err := Execute(snapshotAt(3.0), mid, domain.Suggestion{Action: domain.ActionSell, SizePct: 1.0}, 2)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if !approx(next.Cash, 110) {
		t.Errorf("Expected cash 110, got %f", next.Cash)
	}
	if next.TokenUnits != 0 {
		t.Errorf("Expected zero token units, got %f", next.TokenUnits)
	}
	if next.AvgEntryPrice != nil {
		t.Errorf("Expected nil avg entry at flat position, got %f", *next.AvgEntryPrice)
	}
	if !approx(trade.Notional, 30) {
		t.Errorf("Expected sell notional 30, got %f", trade.Notional)
	}
}

func TestExecute_BuyAveragesEntryCostWeighted(t *testing.T) {
	pf := freshPortfolio(100)

	// 50 cash at price 1 mints 50 tokens at avg 1.
	mid, _, err := Execute(snapshotAt(1.0), pf, domain.Suggestion{Action: domain.ActionBuy, SizePct: 0.5}, 1)
	if err != nil {
		t.Fatalf("First buy failed: %v", err)
	}

	// Remaining 50 cash at price 2 mints 25 more: avg = (50+50)/(50+25).
	next, _, err := Execute(snapshotAt(2.0), mid, domain.Suggestion{Action: domain.ActionBuy, SizePct: 1.0}, 2)
	if err != nil {
		t.Fatalf("Second buy failed: %v", err)
	}

	if next.AvgEntryPrice == nil || !approx(*next.AvgEntryPrice, 100.0/75.0) {
		t.Errorf("Expected avg entry %f, got %v", 100.0/75.0, next.AvgEntryPrice)
	}
	if !approx(next.TokenUnits, 75) {
		t.Errorf("Expected 75 token units, got %f", next.TokenUnits)
	}
	if !approx(next.Cash, 0) {
		t.Errorf("Expected zero cash, got %f", next.Cash)
	}
}

func TestExecute_PartialSellKeepsAvgEntry(t *testing.T) {
	pf := freshPortfolio(100)

	mid, _, err := Execute(snapshotAt(2.0), pf, domain.Suggestion{Action: domain.ActionBuy, SizePct: 0.5}, 1)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	next, _, err := Execute(snapshotAt(4.0), mid, domain.Suggestion{Action: domain.ActionSell, SizePct: 0.5}, 2)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if next.AvgEntryPrice == nil || !approx(*next.AvgEntryPrice, 2.0) {
		t.Errorf("Expected avg entry to stay 2.0 after partial sell, got %v", next.AvgEntryPrice)
	}
	if !approx(next.TokenUnits, 12.5) {
		t.Errorf("Expected 12.5 token units, got %f", next.TokenUnits)
	}
}

func TestExecute_HoldIsIdentity(t *testing.T) {
	pf := freshPortfolio(100)
	pf.TokenUnits = 5
	avg := 1.5
	pf.AvgEntryPrice = &avg

	next, trade, err := Execute(snapshotAt(2.0), pf, domain.Suggestion{Action: domain.ActionHold}, 3)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if trade != nil {
		t.Fatal("HOLD must not produce a trade")
	}
	if next.Cash != pf.Cash || next.TokenUnits != pf.TokenUnits {
		t.Errorf("HOLD mutated the portfolio: %+v", next)
	}
	if next.TradesThisWindow != 0 || next.LastTradeTick != nil {
		t.Error("HOLD must not count as a trade")
	}
}

func TestExecute_SellWithNoPositionIsNoop(t *testing.T) {
	pf := freshPortfolio(100)

	next, trade, err := Execute(snapshotAt(2.0), pf, domain.Suggestion{Action: domain.ActionSell, SizePct: 0.5}, 3)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if trade != nil {
		t.Fatal("Sell on empty position must not produce a trade")
	}
	if !approx(next.Cash, 100) {
		t.Errorf("Expected cash unchanged, got %f", next.Cash)
	}
}

func TestExecute_InputPortfolioNeverMutated(t *testing.T) {
	pf := freshPortfolio(100)

	_, _, err := Execute(snapshotAt(2.0), pf, domain.Suggestion{Action: domain.ActionBuy, SizePct: 0.3}, 1)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if pf.Cash != 100 || pf.TokenUnits != 0 || pf.AvgEntryPrice != nil {
		t.Errorf("Input portfolio was mutated: %+v", pf)
	}
}

func TestExecute_NonPositivePriceFails(t *testing.T) {
	pf := freshPortfolio(100)

	_, _, err := Execute(snapshotAt(0), pf, domain.Suggestion{Action: domain.ActionBuy, SizePct: 0.5}, 1)
	if err == nil {
		t.Fatal("Expected error for zero price")
	}
}
