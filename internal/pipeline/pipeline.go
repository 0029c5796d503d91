// Package pipeline runs the per-agent decision pipeline for one tick.
//
// Stages run in order: decide → guardrail → preflight → submit → commit.
// Each stage either advances the run or stops it with a recorded outcome.
// On-chain submission always happens before the database commit, so stored
// state never leads chain confirmation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"

	"agent-arena/internal/agentmemory"
	"agent-arena/internal/chain"
	"agent-arena/internal/domain"
	"agent-arena/internal/epoch"
	"agent-arena/internal/guardrail"
	"agent-arena/internal/observability"
	"agent-arena/internal/oracle"
	"agent-arena/internal/paper"
	"agent-arena/internal/profile"
	"agent-arena/internal/secrets"
	"agent-arena/internal/storage"
)

// DefaultGasThreshold is the native balance below which chain submission is
// skipped: 0.01 native units in wei.
var DefaultGasThreshold = big.NewInt(10_000_000_000_000_000)

// Pipeline executes one agent's decision flow for a tick.
type Pipeline struct {
	stores       *storage.Stores
	oracle       oracle.Oracle
	memory       agentmemory.Client
	chainReader  chain.Reader
	chainWriter  chain.Writer
	epochs       *epoch.Resolver
	vault        *secrets.Vault
	gasThreshold *big.Int
	logger       *log.Logger
}

// Options configures a Pipeline.
type Options struct {
	Stores      *storage.Stores
	Oracle      oracle.Oracle
	Memory      agentmemory.Client // nil disables memory integration
	ChainReader chain.Reader
	ChainWriter chain.Writer
	Epochs      *epoch.Resolver
	Vault       *secrets.Vault
	// GasThreshold overrides DefaultGasThreshold when set.
	GasThreshold *big.Int
	Logger       *log.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	memory := opts.Memory
	if memory == nil {
		memory = agentmemory.Nop{}
	}
	threshold := opts.GasThreshold
	if threshold == nil {
		threshold = DefaultGasThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		stores:       opts.Stores,
		oracle:       opts.Oracle,
		memory:       memory,
		chainReader:  opts.ChainReader,
		chainWriter:  opts.ChainWriter,
		epochs:       opts.Epochs,
		vault:        opts.Vault,
		gasThreshold: threshold,
		logger:       logger,
	}
}

// run carries one agent's state across stages.
type run struct {
	agent    *domain.Agent
	arena    *domain.Arena
	snapshot *domain.MarketSnapshot
	tick     int64

	profile   *profile.Profile
	portfolio *domain.Portfolio
	memoryCtx string
	final     domain.Suggestion
	decision  *domain.AgentDecision
	txHash    string
}

// Run executes the pipeline for one agent/arena/tick. A nil return means the
// run reached a recorded outcome; an error means this agent's tick aborted
// and will be retried next tick.
func (p *Pipeline) Run(ctx context.Context, agent *domain.Agent, arena *domain.Arena, snapshot *domain.MarketSnapshot, tick int64) error {
	r := &run{agent: agent, arena: arena, snapshot: snapshot, tick: tick}

	ok, err := p.decide(ctx, r)
	if err != nil || !ok {
		return err
	}

	submits := p.preflight(ctx, r)
	switch submits {
	case preflightSkipNoGas:
		_, err := p.insertDecision(ctx, r, domain.DecisionSkippedNoGas)
		return err
	case preflightAbort:
		return nil
	}

	// HOLD: record success, refresh memory, no chain call, no mutation.
	if r.final.Action == domain.ActionHold {
		if _, err := p.insertDecision(ctx, r, domain.DecisionSuccess); err != nil {
			return err
		}
		p.refreshMemory(ctx, r)
		return nil
	}

	inserted, err := p.insertDecision(ctx, r, domain.DecisionPending)
	if err != nil {
		return err
	}
	if !inserted {
		// Replayed tick: this attempt already ran.
		return nil
	}

	if err := p.submit(ctx, r); err != nil {
		// Submission failure is terminal for this tick: no mutation.
		if uerr := p.stores.Decisions.UpdateStatus(ctx, r.decision.ID, domain.DecisionFailed, ""); uerr != nil {
			p.logger.Printf("[pipeline] agent %s: mark decision failed: %v", agent.ID, uerr)
		}
		observability.RecordDecision(domain.DecisionFailed)
		p.logger.Printf("[pipeline] agent %s arena %s tick %d: submit failed: %v", agent.ID, arena.ID, tick, err)
		return nil
	}

	if err := p.commit(ctx, r); err != nil {
		// Chain already confirmed; the decision stays pending for the
		// reconciler to repair.
		observability.RecordCommitFailure()
		return fmt.Errorf("commit after chain success: %w", err)
	}

	p.refreshMemory(ctx, r)
	return nil
}

// decide runs profile parsing, portfolio load, oracle call and guardrails.
// Returns false when the agent is skipped without a decision row.
func (p *Pipeline) decide(ctx context.Context, r *run) (bool, error) {
	prof, err := profile.Parse(r.agent.ProfileConfig)
	if err != nil {
		p.logger.Printf("[pipeline] agent %s: invalid profile, skipping: %v", r.agent.ID, err)
		observability.RecordAgentSkipped("invalid_profile")
		return false, nil
	}
	r.profile = prof

	pf, err := p.stores.Portfolios.Get(ctx, r.agent.ID, r.arena.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Registration without portfolio points at a missed
			// AgentRegistered event or a failed creation.
			p.logger.Printf("[pipeline] integrity: agent %s has no portfolio in arena %s, skipping", r.agent.ID, r.arena.ID)
			observability.RecordAgentSkipped("missing_portfolio")
			return false, nil
		}
		return false, fmt.Errorf("load portfolio: %w", err)
	}
	r.portfolio = pf

	memCtx, err := p.memory.Context(ctx, r.agent.ID, r.arena.ID)
	if err != nil {
		p.logger.Printf("[pipeline] agent %s: memory fetch failed (ignored): %v", r.agent.ID, err)
	}
	r.memoryCtx = memCtx

	start := time.Now()
	sug, err := p.oracle.Decide(ctx, &oracle.DecisionContext{
		AgentID:   r.agent.ID,
		ArenaID:   r.arena.ID,
		Tick:      r.tick,
		Profile:   prof,
		Snapshot:  r.snapshot,
		Portfolio: pf,
		Memory:    memCtx,
	})
	observability.DefaultMetrics.OracleLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("oracle decide: %w", err)
	}

	final, gate := guardrail.Apply(guardrail.Input{
		Suggestion: *sug,
		Profile:    prof,
		Portfolio:  pf,
		Snapshot:   r.snapshot,
		Tick:       r.tick,
	})
	if gate != "" {
		observability.RecordGuardrailOverride(gate)
		p.logger.Printf("[pipeline] agent %s arena %s tick %d: %s", r.agent.ID, r.arena.ID, r.tick, final.Reason)
	}
	r.final = final
	return true, nil
}

type preflightResult int

const (
	preflightOK preflightResult = iota
	preflightSkipNoGas
	preflightAbort
)

// preflight checks gas before any chain submission. HOLD and agents without
// on-chain identity never touch chain and always pass.
func (p *Pipeline) preflight(ctx context.Context, r *run) preflightResult {
	if r.final.Action == domain.ActionHold || !p.submitsOnChain(r) {
		return preflightOK
	}

	bal, err := p.chainReader.NativeBalance(ctx, r.agent.WalletAddress)
	if err != nil {
		// Silent abort; the next tick retries the whole pipeline.
		p.logger.Printf("[pipeline] agent %s: balance check failed, aborting tick: %v", r.agent.ID, err)
		return preflightAbort
	}
	if bal.Cmp(p.gasThreshold) < 0 {
		p.logger.Printf("[pipeline] agent %s: insufficient gas (%s wei)", r.agent.ID, bal)
		return preflightSkipNoGas
	}
	return preflightOK
}

// submit resolves the epoch, tops up stake for BUYs and submits the trade.
// An empty transaction hash counts as failure.
func (p *Pipeline) submit(ctx context.Context, r *run) error {
	if !p.submitsOnChain(r) {
		// Paper-only agents settle nothing on chain; a synthetic hash
		// keeps the trade ledger key unique.
		r.txHash = "paper-" + uuid.NewString()
		return nil
	}

	if p.vault == nil {
		return fmt.Errorf("no vault configured for on-chain agent")
	}
	signer, err := p.vault.Signer(r.agent.SignerCiphertext)
	if err != nil {
		return fmt.Errorf("decrypt signer: %w", err)
	}

	epochID := p.epochs.ActiveEpochID(ctx, r.arena.OnChainID, time.Now().Unix())

	amount := chain.NativeToWei(r.intendedNotional())
	if r.final.Action == domain.ActionBuy {
		staked, err := p.chainReader.StakedBalance(ctx, r.arena.OnChainID, r.agent.OnChainID)
		if err != nil {
			return fmt.Errorf("read staked balance: %w", err)
		}
		if staked.Cmp(amount) < 0 {
			shortfall := new(big.Int).Sub(amount, staked)
			if err := p.chainWriter.Deposit(ctx, signer, r.arena.OnChainID, shortfall); err != nil {
				return fmt.Errorf("top up stake: %w", err)
			}
		}
	}

	txHash, err := p.chainWriter.ExecuteTrade(ctx, signer, r.arena.OnChainID, epochID, r.final.Action, amount)
	if err != nil {
		return fmt.Errorf("execute trade: %w", err)
	}
	if txHash == "" {
		return fmt.Errorf("chain returned empty transaction hash")
	}
	r.txHash = txHash
	return nil
}

// commit runs the paper execution and applies the atomic triple.
func (p *Pipeline) commit(ctx context.Context, r *run) error {
	next, trade, err := paper.Execute(r.snapshot, r.portfolio, r.final, r.tick)
	if err != nil {
		return fmt.Errorf("paper execution: %w", err)
	}
	if trade == nil {
		// Guardrails passed a positive size, so execution always trades.
		return fmt.Errorf("paper execution produced no trade for %s", r.final.Action)
	}
	trade.TxHash = r.txHash

	if err := p.stores.Committer.CommitTradeResult(ctx, &domain.TradeResult{
		Portfolio:  next,
		Trade:      trade,
		DecisionID: r.decision.ID,
		TxHash:     r.txHash,
	}); err != nil {
		return err
	}

	r.portfolio = next
	observability.RecordDecision(domain.DecisionSuccess)
	observability.RecordTrade(trade.Action)
	return nil
}

// insertDecision writes the single decision row for this attempt. Returns
// false when the (agent, arena, tick) attempt was already recorded.
func (p *Pipeline) insertDecision(ctx context.Context, r *run, status string) (bool, error) {
	now := time.Now().UnixMilli()
	d := &domain.AgentDecision{
		ID:         uuid.NewString(),
		AgentID:    r.agent.ID,
		ArenaID:    r.arena.ID,
		Tick:       r.tick,
		Action:     r.final.Action,
		SizePct:    r.final.SizePct,
		Price:      r.snapshot.Price,
		Confidence: r.final.Confidence,
		Reason:     r.final.Reason,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.stores.Decisions.Insert(ctx, d); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			p.logger.Printf("[pipeline] agent %s arena %s tick %d: decision already recorded", r.agent.ID, r.arena.ID, r.tick)
			return false, nil
		}
		return false, fmt.Errorf("insert decision: %w", err)
	}
	r.decision = d
	if status != domain.DecisionPending {
		observability.RecordDecision(status)
	}
	return true, nil
}

// refreshMemory pushes updated trade history and realized pnl, best effort.
func (p *Pipeline) refreshMemory(ctx context.Context, r *run) {
	trades, err := p.stores.Trades.ListByPair(ctx, r.agent.ID, r.arena.ID)
	if err != nil {
		p.logger.Printf("[pipeline] agent %s: load trades for memory refresh (ignored): %v", r.agent.ID, err)
		return
	}
	realized := r.portfolio.Equity(r.snapshot.Price) - r.portfolio.InitialCapital
	if err := p.memory.Update(ctx, r.agent.ID, r.arena.ID, trades, realized); err != nil {
		p.logger.Printf("[pipeline] agent %s: memory update failed (ignored): %v", r.agent.ID, err)
	}
}

// submitsOnChain reports whether this run settles authorization on chain.
// A deployment without a chain client runs every agent paper-only.
func (p *Pipeline) submitsOnChain(r *run) bool {
	return p.chainReader != nil && p.chainWriter != nil &&
		r.agent.HasOnChainIdentity() && r.arena.OnChainID > 0
}

// intendedNotional is the native value the final decision moves.
func (r *run) intendedNotional() float64 {
	switch r.final.Action {
	case domain.ActionBuy:
		return r.portfolio.Cash * r.final.SizePct
	case domain.ActionSell:
		return r.portfolio.TokenUnits * r.final.SizePct * r.snapshot.Price
	default:
		return 0
	}
}
