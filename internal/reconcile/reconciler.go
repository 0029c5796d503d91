// Package reconcile repairs decisions stranded in pending.
//
// A decision stays pending when the process dies between chain submission and
// the database commit. The chain trade mirror (fed by TradePlaced events)
// tells us which submissions actually landed: a matching mirror row means the
// trade happened on chain and the paper execution is replayed and committed
// with the real transaction hash; no match within the fail-after window means
// the submission never landed and the decision is marked failed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"agent-arena/internal/domain"
	"agent-arena/internal/observability"
	"agent-arena/internal/paper"
	"agent-arena/internal/storage"
)

// Default windows, in wall time.
const (
	// DefaultPendingAge is how old a pending decision must be before the
	// reconciler touches it. Younger rows may still be in flight.
	DefaultPendingAge = 5 * time.Minute

	// DefaultMatchWindow bounds how far a chain trade's block time may sit
	// from the decision's creation time and still count as the same trade.
	DefaultMatchWindow = 10 * time.Minute

	// DefaultFailAfter is how long a pending decision without a chain match
	// survives before being marked failed.
	DefaultFailAfter = time.Hour
)

// Reconciler resolves stuck pending decisions.
type Reconciler struct {
	stores      *storage.Stores
	pendingAge  time.Duration
	matchWindow time.Duration
	failAfter   time.Duration
	logger      *log.Logger
}

// Options configures a Reconciler. Zero durations take the defaults.
type Options struct {
	Stores      *storage.Stores
	PendingAge  time.Duration
	MatchWindow time.Duration
	FailAfter   time.Duration
	Logger      *log.Logger
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	r := &Reconciler{
		stores:      opts.Stores,
		pendingAge:  opts.PendingAge,
		matchWindow: opts.MatchWindow,
		failAfter:   opts.FailAfter,
		logger:      opts.Logger,
	}
	if r.pendingAge == 0 {
		r.pendingAge = DefaultPendingAge
	}
	if r.matchWindow == 0 {
		r.matchWindow = DefaultMatchWindow
	}
	if r.failAfter == 0 {
		r.failAfter = DefaultFailAfter
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Run resolves every sufficiently old pending decision once.
// Per-decision failures are logged and do not abort the sweep.
func (r *Reconciler) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-r.pendingAge).UnixMilli()
	pending, err := r.stores.Decisions.ListPending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list pending decisions: %w", err)
	}
	r.logger.Printf("[reconcile] %d pending decisions older than %v", len(pending), r.pendingAge)

	for _, d := range pending {
		outcome, err := r.resolve(ctx, d)
		if err != nil {
			r.logger.Printf("[reconcile] decision %s: %v", d.ID, err)
			continue
		}
		observability.RecordReconciled(outcome)
		r.logger.Printf("[reconcile] decision %s (agent %s tick %d): %s", d.ID, d.AgentID, d.Tick, outcome)
	}
	return nil
}

// resolve handles one pending decision and returns the outcome label.
func (r *Reconciler) resolve(ctx context.Context, d *domain.AgentDecision) (string, error) {
	// A pending HOLD means the crash hit before the status write; nothing to
	// replay.
	if d.Action == domain.ActionHold {
		if err := r.stores.Decisions.UpdateStatus(ctx, d.ID, domain.DecisionSuccess, ""); err != nil {
			return "", fmt.Errorf("finalize hold: %w", err)
		}
		return "hold_finalized", nil
	}

	agent, err := r.stores.Agents.GetByID(ctx, d.AgentID)
	if err != nil {
		return "", fmt.Errorf("load agent: %w", err)
	}
	arena, err := r.stores.Arenas.GetByID(ctx, d.ArenaID)
	if err != nil {
		return "", fmt.Errorf("load arena: %w", err)
	}

	txHash := ""
	if agent.HasOnChainIdentity() {
		txHash, err = r.findChainMatch(ctx, d, agent, arena)
		if err != nil {
			return "", err
		}
		if txHash == "" {
			if time.Now().UnixMilli()-d.CreatedAt > r.failAfter.Milliseconds() {
				if err := r.stores.Decisions.UpdateStatus(ctx, d.ID, domain.DecisionFailed, ""); err != nil {
					return "", fmt.Errorf("mark failed: %w", err)
				}
				return "failed", nil
			}
			return "left_pending", nil
		}
	} else {
		// No chain leg was ever attempted; the paper commit just never ran.
		txHash = "paper-" + uuid.NewString()
	}

	return r.replay(ctx, d, arena, txHash)
}

// findChainMatch looks for a mirrored chain trade that corresponds to the
// decision: same pair, same action, block time near the decision, and a
// transaction hash the paper ledger has not recorded yet.
func (r *Reconciler) findChainMatch(ctx context.Context, d *domain.AgentDecision, agent *domain.Agent, arena *domain.Arena) (string, error) {
	mirrors, err := r.stores.ChainTrades.ListByAgentArena(ctx, agent.OnChainID, arena.OnChainID)
	if err != nil {
		return "", fmt.Errorf("list chain trades: %w", err)
	}

	decidedAt := d.CreatedAt / 1000 // Unix seconds
	window := int64(r.matchWindow.Seconds())

	for _, ct := range mirrors {
		if ct.Action != d.Action {
			continue
		}
		if ct.BlockTime < decidedAt-window || ct.BlockTime > decidedAt+window {
			continue
		}
		committed, err := r.alreadyCommitted(ctx, d, ct.TxHash)
		if err != nil {
			return "", err
		}
		if committed {
			continue
		}
		return ct.TxHash, nil
	}
	return "", nil
}

// alreadyCommitted reports whether the paper ledger already holds a trade
// with the given hash for this pair.
func (r *Reconciler) alreadyCommitted(ctx context.Context, d *domain.AgentDecision, txHash string) (bool, error) {
	trades, err := r.stores.Trades.ListByPair(ctx, d.AgentID, d.ArenaID)
	if err != nil {
		return false, fmt.Errorf("list trades: %w", err)
	}
	for _, t := range trades {
		if t.TxHash == txHash {
			return true, nil
		}
	}
	return false, nil
}

// replay re-runs the paper execution at the decision's recorded price and
// commits the result with the given transaction hash.
func (r *Reconciler) replay(ctx context.Context, d *domain.AgentDecision, arena *domain.Arena, txHash string) (string, error) {
	pf, err := r.stores.Portfolios.Get(ctx, d.AgentID, d.ArenaID)
	if err != nil {
		return "", fmt.Errorf("load portfolio: %w", err)
	}

	snap := &domain.MarketSnapshot{
		TokenAddress: arena.TokenAddress,
		Price:        d.Price,
	}
	suggestion := domain.Suggestion{
		Action:     d.Action,
		SizePct:    d.SizePct,
		Confidence: d.Confidence,
		Reason:     d.Reason,
	}

	nextPf, trade, err := paper.Execute(snap, pf, suggestion, d.Tick)
	if err != nil {
		return "", fmt.Errorf("replay execution: %w", err)
	}
	if trade == nil {
		// Execution degenerated to a no-op (e.g. nothing left to sell).
		if err := r.stores.Decisions.UpdateStatus(ctx, d.ID, domain.DecisionSuccess, txHash); err != nil {
			return "", fmt.Errorf("finalize no-op: %w", err)
		}
		return "noop_finalized", nil
	}
	trade.TxHash = txHash

	res := &domain.TradeResult{
		Portfolio:  nextPf,
		Trade:      trade,
		DecisionID: d.ID,
		TxHash:     txHash,
	}
	if err := r.stores.Committer.CommitTradeResult(ctx, res); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// The trade already committed on a previous attempt; only the
			// status write was lost.
			if err := r.stores.Decisions.UpdateStatus(ctx, d.ID, domain.DecisionSuccess, txHash); err != nil {
				return "", fmt.Errorf("finalize duplicate: %w", err)
			}
			return "status_repaired", nil
		}
		return "", fmt.Errorf("commit replay: %w", err)
	}
	return "committed", nil
}
