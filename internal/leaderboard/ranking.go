// Package leaderboard scores and ranks arena portfolios per tick.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// Score weights. Volume dominates, then pnl, then activity.
const (
	weightVolume = 0.5
	weightPnl    = 0.35
	weightTrades = 0.15
)

// Ranker computes and persists one leaderboard snapshot per arena per tick.
type Ranker struct {
	registrations storage.RegistrationStore
	portfolios    storage.PortfolioStore
	trades        storage.TradeStore
	snapshots     storage.LeaderboardStore
	logger        *log.Logger
}

// NewRanker creates a Ranker.
func NewRanker(regs storage.RegistrationStore, portfolios storage.PortfolioStore, trades storage.TradeStore, snapshots storage.LeaderboardStore, logger *log.Logger) *Ranker {
	if logger == nil {
		logger = log.Default()
	}
	return &Ranker{
		registrations: regs,
		portfolios:    portfolios,
		trades:        trades,
		snapshots:     snapshots,
		logger:        logger,
	}
}

// ComputeAndStore ranks all actively registered portfolios in an arena at the
// given token price and persists the snapshot. Re-running for an already
// written (arena, tick) is a no-op.
func (r *Ranker) ComputeAndStore(ctx context.Context, arenaID string, tick int64, price float64) (*domain.LeaderboardSnapshot, error) {
	regs, err := r.registrations.ListActiveByArena(ctx, arenaID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	stats, err := r.trades.StatsByArena(ctx, arenaID)
	if err != nil {
		return nil, fmt.Errorf("load trade stats: %w", err)
	}

	var entries []domain.LeaderboardEntry
	for _, reg := range regs {
		pf, err := r.portfolios.Get(ctx, reg.AgentID, arenaID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				r.logger.Printf("[leaderboard] arena %s: agent %s has no portfolio, skipping", arenaID, reg.AgentID)
				continue
			}
			return nil, fmt.Errorf("load portfolio: %w", err)
		}

		equity := pf.Equity(price)
		pnlPct := 0.0
		if pf.InitialCapital > 0 {
			pnlPct = (equity - pf.InitialCapital) / pf.InitialCapital * 100
		}

		st := stats[reg.AgentID]
		entries = append(entries, domain.LeaderboardEntry{
			AgentID:    reg.AgentID,
			Equity:     equity,
			PnlPct:     pnlPct,
			Volume:     st.Volume,
			TradeCount: st.TradeCount,
		})
	}

	entries = Rank(entries)

	snap := &domain.LeaderboardSnapshot{
		ID:        uuid.NewString(),
		ArenaID:   arenaID,
		Tick:      tick,
		Entries:   entries,
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := r.snapshots.Insert(ctx, snap); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Printf("[leaderboard] arena %s tick %d: snapshot already written", arenaID, tick)
			return snap, nil
		}
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

// Rank assigns scores and 1-based ranks. Deterministic: the sort is stable,
// so identical inputs always yield identical ranks.
func Rank(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	var maxVolume float64
	var maxTrades int
	for _, e := range entries {
		if e.Volume > maxVolume {
			maxVolume = e.Volume
		}
		if e.TradeCount > maxTrades {
			maxTrades = e.TradeCount
		}
	}

	for i := range entries {
		e := &entries[i]

		normVolume := 0.0
		if maxVolume > 0 {
			normVolume = e.Volume / maxVolume
		}

		// Map pnl from [-50%, +50%] to [0, 1], clamped.
		normPnl := (e.PnlPct + 50) / 100
		if normPnl < 0 {
			normPnl = 0
		} else if normPnl > 1 {
			normPnl = 1
		}

		normTrades := 0.0
		if maxTrades > 0 {
			normTrades = float64(e.TradeCount) / float64(maxTrades)
		}

		e.Score = weightVolume*normVolume + weightPnl*normPnl + weightTrades*normTrades
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
