// Package indexer mirrors arena contract events into storage.
//
// Event delivery is at-least-once, so every handler is idempotent: replaying
// the same event leaves the database unchanged. Events whose dependencies
// have not been indexed yet (an agent or arena the mirror has never seen) are
// skipped with a warning rather than retried; the chain remains the source of
// truth and a later resync repairs the gap.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"agent-arena/internal/chain"
	"agent-arena/internal/domain"
	"agent-arena/internal/observability"
	"agent-arena/internal/storage"
)

// Indexer consumes decoded chain events and keeps the database mirror current.
type Indexer struct {
	stores *storage.Stores
	reader chain.Reader // optional; fills epoch start/end on renewals
	logger *log.Logger
}

// Options configures an Indexer.
type Options struct {
	Stores *storage.Stores
	Reader chain.Reader
	Logger *log.Logger
}

// New creates an Indexer.
func New(opts Options) *Indexer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Indexer{
		stores: opts.Stores,
		reader: opts.Reader,
		logger: logger,
	}
}

// Run applies events from the channel until it closes or the context ends.
// Apply errors are logged; the stream keeps going.
func (ix *Indexer) Run(ctx context.Context, events <-chan chain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := ix.Apply(ctx, ev); err != nil {
				ix.logger.Printf("[indexer] apply %s (tx %s): %v", ev.Kind, ev.TxHash, err)
			}
		}
	}
}

// Apply processes one event. Safe to call with the same event twice.
func (ix *Indexer) Apply(ctx context.Context, ev chain.Event) error {
	var err error
	switch ev.Kind {
	case chain.EventAgentCreated:
		err = ix.applyAgentCreated(ctx, ev)
	case chain.EventArenaCreated:
		err = ix.applyArenaCreated(ctx, ev)
	case chain.EventAgentRegistered:
		err = ix.applyRegistration(ctx, ev, true)
	case chain.EventAgentUnregistered:
		err = ix.applyRegistration(ctx, ev, false)
	case chain.EventAgentEpochRenewed:
		err = ix.applyEpochRenewed(ctx, ev)
	case chain.EventTradePlaced:
		err = ix.applyTradePlaced(ctx, ev)
	default:
		ix.skip(ev, "unknown_kind")
		return nil
	}
	if err == nil {
		observability.RecordIndexerEvent(string(ev.Kind))
	}
	return err
}

func (ix *Indexer) applyAgentCreated(ctx context.Context, ev chain.Event) error {
	existing, err := ix.stores.Agents.GetByOnChainID(ctx, ev.AgentOnChainID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup agent %d: %w", ev.AgentOnChainID, err)
	}

	name := ev.Name
	if name == "" {
		name = domain.PlaceholderName(ev.AgentOnChainID)
	}

	now := time.Now().UnixMilli()
	agent := &domain.Agent{
		ID:            uuid.NewString(),
		OnChainID:     ev.AgentOnChainID,
		Name:          name,
		WalletAddress: ev.Wallet,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		// Keep locally managed fields; refresh chain-sourced ones.
		agent.ID = existing.ID
		agent.SignerCiphertext = existing.SignerCiphertext
		agent.FundedBalance = existing.FundedBalance
		agent.ProfileConfig = existing.ProfileConfig
		agent.CreatedAt = existing.CreatedAt
	}
	if err := ix.stores.Agents.Upsert(ctx, agent); err != nil {
		return fmt.Errorf("upsert agent %d: %w", ev.AgentOnChainID, err)
	}
	ix.logger.Printf("[indexer] agent %d (%s) mirrored", ev.AgentOnChainID, name)
	return nil
}

func (ix *Indexer) applyArenaCreated(ctx context.Context, ev chain.Event) error {
	existing, err := ix.stores.Arenas.GetByOnChainID(ctx, ev.ArenaOnChainID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup arena %d: %w", ev.ArenaOnChainID, err)
	}

	now := time.Now().UnixMilli()
	arena := &domain.Arena{
		ID:           uuid.NewString(),
		OnChainID:    ev.ArenaOnChainID,
		TokenAddress: ev.TokenAddress,
		Name:         ev.Name,
		CreatedAt:    now,
	}
	if existing != nil {
		arena.ID = existing.ID
		arena.CreatedAt = existing.CreatedAt
	}
	if err := ix.stores.Arenas.Upsert(ctx, arena); err != nil {
		return fmt.Errorf("upsert arena %d: %w", ev.ArenaOnChainID, err)
	}
	ix.logger.Printf("[indexer] arena %d (%s) mirrored", ev.ArenaOnChainID, ev.Name)
	return nil
}

// applyRegistration handles AgentRegistered and AgentUnregistered. Both end
// with a paper-capital rebalance across the agent's unopened portfolios.
func (ix *Indexer) applyRegistration(ctx context.Context, ev chain.Event, active bool) error {
	agent, arena, ok := ix.resolvePair(ctx, ev)
	if !ok {
		return nil
	}

	if err := ix.stores.Registrations.Upsert(ctx, agent.ID, arena.ID, active); err != nil {
		return fmt.Errorf("upsert registration %s/%s: %w", agent.ID, arena.ID, err)
	}

	if active {
		if err := ix.ensurePortfolio(ctx, agent.ID, arena.ID); err != nil {
			return err
		}
	}

	if err := ix.rebalanceCapital(ctx, agent); err != nil {
		return err
	}
	ix.logger.Printf("[indexer] agent %d registration in arena %d -> active=%v", ev.AgentOnChainID, ev.ArenaOnChainID, active)
	return nil
}

func (ix *Indexer) applyEpochRenewed(ctx context.Context, ev chain.Event) error {
	agent, arena, ok := ix.resolvePair(ctx, ev)
	if !ok {
		return nil
	}

	epoch := &domain.Epoch{
		ID:             uuid.NewString(),
		ArenaID:        arena.ID,
		OnChainEpochID: ev.EpochID,
		CreatedAt:      time.Now().UnixMilli(),
	}
	known := false
	if existing, err := ix.stores.Epochs.GetByArenaEpoch(ctx, arena.ID, ev.EpochID); err == nil {
		known = true
		epoch.ID = existing.ID
		epoch.StartTime = existing.StartTime
		epoch.EndTime = existing.EndTime
		epoch.Ended = existing.Ended
		epoch.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup epoch %d: %w", ev.EpochID, err)
	}

	if ix.reader != nil {
		if info, err := ix.reader.EpochInfo(ctx, arena.OnChainID, ev.EpochID); err == nil && info.StartTime > 0 {
			known = true
			epoch.StartTime = info.StartTime
			epoch.EndTime = info.EndTime
			epoch.Ended = info.Ended
		} else if err != nil {
			ix.logger.Printf("[indexer] epoch %d info read failed, keeping mirror: %v", ev.EpochID, err)
		}
	}

	// Epoch creation is mirrored elsewhere; a renewal for an epoch nobody has
	// seen yet is deferred until the epoch exists.
	if !known {
		ix.logger.Printf("[indexer] epoch %d unknown for arena %s, skipping renewal", ev.EpochID, arena.ID)
		ix.skip(ev, "missing_epoch")
		return nil
	}

	if err := ix.stores.Epochs.Upsert(ctx, epoch); err != nil {
		return fmt.Errorf("upsert epoch %d: %w", ev.EpochID, err)
	}
	if err := ix.stores.Epochs.UpsertRegistration(ctx, epoch.ID, agent.ID); err != nil {
		return fmt.Errorf("upsert epoch registration: %w", err)
	}
	return nil
}

// applyTradePlaced records the audit mirror row. It never touches portfolios
// or the paper trade ledger.
func (ix *Indexer) applyTradePlaced(ctx context.Context, ev chain.Event) error {
	ct := &domain.ChainTrade{
		TxHash:         ev.TxHash,
		AgentOnChainID: ev.AgentOnChainID,
		ArenaOnChainID: ev.ArenaOnChainID,
		Action:         ev.Action,
		Amount:         chain.WeiToNative(ev.Amount),
		BlockNumber:    ev.BlockNumber,
		BlockTime:      ev.BlockTime,
		CreatedAt:      time.Now().UnixMilli(),
	}
	if err := ix.stores.ChainTrades.Insert(ctx, ct); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("insert chain trade %s: %w", ev.TxHash, err)
	}
	return nil
}

// resolvePair loads the agent and arena an event references. A missing side
// is a skip, not an error.
func (ix *Indexer) resolvePair(ctx context.Context, ev chain.Event) (*domain.Agent, *domain.Arena, bool) {
	agent, err := ix.stores.Agents.GetByOnChainID(ctx, ev.AgentOnChainID)
	if err != nil {
		ix.skip(ev, "unknown_agent")
		ix.logger.Printf("[indexer] %s references unknown agent %d, skipping", ev.Kind, ev.AgentOnChainID)
		return nil, nil, false
	}
	arena, err := ix.stores.Arenas.GetByOnChainID(ctx, ev.ArenaOnChainID)
	if err != nil {
		ix.skip(ev, "unknown_arena")
		ix.logger.Printf("[indexer] %s references unknown arena %d, skipping", ev.Kind, ev.ArenaOnChainID)
		return nil, nil, false
	}
	return agent, arena, true
}

// ensurePortfolio creates the (agent, arena) portfolio if missing. Initial
// capital is set by the rebalance that follows registration.
func (ix *Indexer) ensurePortfolio(ctx context.Context, agentID, arenaID string) error {
	_, err := ix.stores.Portfolios.Get(ctx, agentID, arenaID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup portfolio %s/%s: %w", agentID, arenaID, err)
	}
	now := time.Now().UnixMilli()
	p := &domain.Portfolio{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		ArenaID:   arenaID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ix.stores.Portfolios.Create(ctx, p); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("create portfolio %s/%s: %w", agentID, arenaID, err)
	}
	return nil
}

// rebalanceCapital splits the agent's funded balance evenly across its active
// registrations. Only unopened portfolios move; a portfolio holding tokens
// keeps its balance sheet untouched.
func (ix *Indexer) rebalanceCapital(ctx context.Context, agent *domain.Agent) error {
	regs, err := ix.stores.Registrations.ListActiveByAgent(ctx, agent.ID)
	if err != nil {
		return fmt.Errorf("list registrations for %s: %w", agent.ID, err)
	}
	if len(regs) == 0 {
		return nil
	}

	share := agent.FundedBalance / float64(len(regs))
	for _, reg := range regs {
		pf, err := ix.stores.Portfolios.Get(ctx, agent.ID, reg.ArenaID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return fmt.Errorf("lookup portfolio %s/%s: %w", agent.ID, reg.ArenaID, err)
		}
		if pf.Opened() {
			continue
		}
		pf.Cash = share
		pf.InitialCapital = share
		pf.UpdatedAt = time.Now().UnixMilli()
		if err := ix.stores.Portfolios.Update(ctx, pf); err != nil {
			return fmt.Errorf("rebalance portfolio %s/%s: %w", agent.ID, reg.ArenaID, err)
		}
	}
	return nil
}

func (ix *Indexer) skip(ev chain.Event, reason string) {
	observability.RecordIndexerSkip(string(ev.Kind), reason)
}
