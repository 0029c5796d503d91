package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
	"agent-arena/internal/storage/memory"
)

type world struct {
	stores *storage.Stores
	agent  *domain.Agent
	arena  *domain.Arena
}

func newWorld(t *testing.T, onChain bool) *world {
	t.Helper()
	ctx := context.Background()
	stores := memory.NewStores()

	agent := &domain.Agent{ID: "agent1", Name: "alice", FundedBalance: 100}
	if onChain {
		agent.OnChainID = 7
		agent.WalletAddress = "0xwallet"
	}
	arena := &domain.Arena{ID: "arena1", TokenAddress: "0xtoken", OnChainID: 3}

	if err := stores.Agents.Upsert(ctx, agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	if err := stores.Arenas.Upsert(ctx, arena); err != nil {
		t.Fatalf("seed arena: %v", err)
	}
	now := time.Now().UnixMilli()
	if err := stores.Portfolios.Create(ctx, &domain.Portfolio{
		ID: "pf1", AgentID: agent.ID, ArenaID: arena.ID,
		Cash: 100, InitialCapital: 100, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed portfolio: %v", err)
	}
	return &world{stores: stores, agent: agent, arena: arena}
}

// pendingDecision inserts a pending decision created age ago.
func (w *world) pendingDecision(t *testing.T, action string, age time.Duration) *domain.AgentDecision {
	t.Helper()
	created := time.Now().Add(-age).UnixMilli()
	d := &domain.AgentDecision{
		ID: "dec-" + action, AgentID: w.agent.ID, ArenaID: w.arena.ID,
		Tick: 10, Action: action, SizePct: 0.2, Price: 2.0, Confidence: 0.9,
		Status: domain.DecisionPending, CreatedAt: created, UpdatedAt: created,
	}
	if err := w.stores.Decisions.Insert(context.Background(), d); err != nil {
		t.Fatalf("seed decision: %v", err)
	}
	return d
}

func (w *world) mirror(t *testing.T, txHash, action string, blockTime int64) {
	t.Helper()
	err := w.stores.ChainTrades.Insert(context.Background(), &domain.ChainTrade{
		TxHash: txHash, AgentOnChainID: w.agent.OnChainID, ArenaOnChainID: w.arena.OnChainID,
		Action: action, Amount: 20, BlockTime: blockTime,
	})
	if err != nil {
		t.Fatalf("seed chain trade: %v", err)
	}
}

func (w *world) status(t *testing.T, id string) *domain.AgentDecision {
	t.Helper()
	decisions, err := w.stores.Decisions.ListByPair(context.Background(), w.agent.ID, w.arena.ID)
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	for _, d := range decisions {
		if d.ID == id {
			return d
		}
	}
	t.Fatalf("decision %s not found", id)
	return nil
}

func run(t *testing.T, w *world) {
	t.Helper()
	rec := New(Options{Stores: w.stores})
	if err := rec.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestRun_ChainMatchReplaysAndCommits(t *testing.T) {
	w := newWorld(t, true)
	d := w.pendingDecision(t, domain.ActionBuy, 10*time.Minute)
	w.mirror(t, "0xabc", domain.ActionBuy, time.Now().Add(-9*time.Minute).Unix())

	run(t, w)

	got := w.status(t, d.ID)
	if got.Status != domain.DecisionSuccess {
		t.Fatalf("Expected success, got %s", got.Status)
	}
	if got.TxHash != "0xabc" {
		t.Errorf("Expected mirrored hash, got %q", got.TxHash)
	}

	ctx := context.Background()
	pf, _ := w.stores.Portfolios.Get(ctx, w.agent.ID, w.arena.ID)
	if pf.Cash != 80 || pf.TokenUnits != 10 {
		t.Errorf("Replay did not apply the buy: (%f, %f)", pf.Cash, pf.TokenUnits)
	}
	trades, _ := w.stores.Trades.ListByPair(ctx, w.agent.ID, w.arena.ID)
	if len(trades) != 1 || trades[0].TxHash != "0xabc" {
		t.Errorf("Expected 1 trade carrying the chain hash, got %+v", trades)
	}
}

func TestRun_NoMatchPastFailAfterMarksFailed(t *testing.T) {
	w := newWorld(t, true)
	d := w.pendingDecision(t, domain.ActionBuy, 2*time.Hour)

	run(t, w)

	got := w.status(t, d.ID)
	if got.Status != domain.DecisionFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	pf, _ := w.stores.Portfolios.Get(context.Background(), w.agent.ID, w.arena.ID)
	if pf.Cash != 100 {
		t.Error("Failed decision must not trade")
	}
}

func TestRun_NoMatchWithinFailAfterStaysPending(t *testing.T) {
	w := newWorld(t, true)
	d := w.pendingDecision(t, domain.ActionBuy, 10*time.Minute)

	run(t, w)

	got := w.status(t, d.ID)
	if got.Status != domain.DecisionPending {
		t.Fatalf("Expected still pending, got %s", got.Status)
	}
}

func TestRun_MirrorOutsideMatchWindowIgnored(t *testing.T) {
	w := newWorld(t, true)
	d := w.pendingDecision(t, domain.ActionBuy, 10*time.Minute)
	// Block time a full hour before the decision: a different trade.
	w.mirror(t, "0xold", domain.ActionBuy, time.Now().Add(-70*time.Minute).Unix())

	run(t, w)

	if got := w.status(t, d.ID); got.Status != domain.DecisionPending {
		t.Fatalf("Expected distant mirror to be ignored, got %s", got.Status)
	}
}

func TestRun_PaperOnlyReplaysWithSyntheticHash(t *testing.T) {
	w := newWorld(t, false)
	d := w.pendingDecision(t, domain.ActionBuy, 10*time.Minute)

	run(t, w)

	got := w.status(t, d.ID)
	if got.Status != domain.DecisionSuccess {
		t.Fatalf("Expected success, got %s", got.Status)
	}
	if !strings.HasPrefix(got.TxHash, "paper-") {
		t.Errorf("Expected synthetic hash, got %q", got.TxHash)
	}
	pf, _ := w.stores.Portfolios.Get(context.Background(), w.agent.ID, w.arena.ID)
	if pf.Cash != 80 || pf.TokenUnits != 10 {
		t.Errorf("Replay did not apply the buy: (%f, %f)", pf.Cash, pf.TokenUnits)
	}
}

func TestRun_DuplicateCommitRepairsStatusOnly(t *testing.T) {
	w := newWorld(t, true)
	d := w.pendingDecision(t, domain.ActionBuy, 10*time.Minute)
	w.mirror(t, "0xabc", domain.ActionBuy, time.Now().Add(-9*time.Minute).Unix())

	// The hash is already taken in the trade ledger, but by another pair, so
	// the per-pair claim check does not see it. The commit then collides on
	// hash uniqueness and only the decision status gets repaired.
	ctx := context.Background()
	if err := w.stores.Trades.Insert(ctx, &domain.Trade{
		ID: "t1", AgentID: "agent2", ArenaID: w.arena.ID,
		Action: domain.ActionBuy, Price: 2.0, Notional: 20, Tick: 9, TxHash: "0xabc",
	}); err != nil {
		t.Fatalf("seed committed trade: %v", err)
	}

	run(t, w)

	got := w.status(t, d.ID)
	if got.Status != domain.DecisionSuccess {
		t.Fatalf("Expected success, got %s", got.Status)
	}
	if got.TxHash != "0xabc" {
		t.Errorf("Expected repaired hash, got %q", got.TxHash)
	}
	pf, _ := w.stores.Portfolios.Get(ctx, w.agent.ID, w.arena.ID)
	if pf.Cash != 100 {
		t.Error("Status repair must not re-apply the trade")
	}
	trades, _ := w.stores.Trades.ListByPair(ctx, w.agent.ID, w.arena.ID)
	if len(trades) != 0 {
		t.Errorf("Status repair must not add a trade for this pair, got %d", len(trades))
	}
}

func TestRun_ClaimedMirrorHashLeftPending(t *testing.T) {
	w := newWorld(t, true)
	d := w.pendingDecision(t, domain.ActionBuy, 10*time.Minute)
	w.mirror(t, "0xabc", domain.ActionBuy, time.Now().Add(-9*time.Minute).Unix())

	// The mirrored hash already belongs to a committed trade for this pair,
	// so it cannot be claimed again.
	ctx := context.Background()
	if err := w.stores.Trades.Insert(ctx, &domain.Trade{
		ID: "t1", AgentID: w.agent.ID, ArenaID: w.arena.ID,
		Action: domain.ActionBuy, Price: 2.0, Notional: 20, Tick: 9, TxHash: "0xabc",
	}); err != nil {
		t.Fatalf("seed committed trade: %v", err)
	}

	run(t, w)

	if got := w.status(t, d.ID); got.Status != domain.DecisionPending {
		t.Fatalf("Expected pending without an unclaimed match, got %s", got.Status)
	}
}

func TestRun_PendingHoldFinalized(t *testing.T) {
	w := newWorld(t, false)
	d := w.pendingDecision(t, domain.ActionHold, 10*time.Minute)

	run(t, w)

	got := w.status(t, d.ID)
	if got.Status != domain.DecisionSuccess {
		t.Fatalf("Expected success, got %s", got.Status)
	}
	pf, _ := w.stores.Portfolios.Get(context.Background(), w.agent.ID, w.arena.ID)
	if pf.Cash != 100 {
		t.Error("HOLD finalization must not trade")
	}
}

func TestRun_SellWithoutPositionFinalizesAsNoop(t *testing.T) {
	w := newWorld(t, false)
	d := w.pendingDecision(t, domain.ActionSell, 10*time.Minute)

	run(t, w)

	got := w.status(t, d.ID)
	if got.Status != domain.DecisionSuccess {
		t.Fatalf("Expected success, got %s", got.Status)
	}
	trades, _ := w.stores.Trades.ListByPair(context.Background(), w.agent.ID, w.arena.ID)
	if len(trades) != 0 {
		t.Errorf("No-op must not record a trade, got %d", len(trades))
	}
}

func TestRun_YoungPendingUntouched(t *testing.T) {
	w := newWorld(t, false)
	d := w.pendingDecision(t, domain.ActionBuy, time.Minute)

	run(t, w)

	if got := w.status(t, d.ID); got.Status != domain.DecisionPending {
		t.Fatalf("Young decisions must be left alone, got %s", got.Status)
	}
}
