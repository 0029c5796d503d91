// Package scheduler drives the arena tick loop.
//
// A single periodic driver runs ticks with no overlap: the next tick is
// scheduled only after the current one fully completes. Arenas and agents are
// processed sequentially within a tick to keep on-chain submission ordering
// safe per signer.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"agent-arena/internal/domain"
	"agent-arena/internal/marketfeed"
	"agent-arena/internal/observability"
	"agent-arena/internal/storage"
)

// AgentRunner runs the decision pipeline for one agent/arena/tick.
type AgentRunner interface {
	Run(ctx context.Context, agent *domain.Agent, arena *domain.Arena, snapshot *domain.MarketSnapshot, tick int64) error
}

// Ranker persists one leaderboard snapshot per arena per tick.
type Ranker interface {
	ComputeAndStore(ctx context.Context, arenaID string, tick int64, price float64) (*domain.LeaderboardSnapshot, error)
}

// DefaultInterval is the tick interval when none is configured.
const DefaultInterval = 60 * time.Second

// Scheduler runs the tick loop.
type Scheduler struct {
	stores   *storage.Stores
	feed     marketfeed.Feed
	pipeline AgentRunner
	ranker   Ranker
	interval time.Duration
	logger   *log.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Options configures a Scheduler.
type Options struct {
	Stores   *storage.Stores
	Feed     marketfeed.Feed
	Pipeline AgentRunner
	Ranker   Ranker
	Interval time.Duration
	Logger   *log.Logger
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		stores:   opts.Stores,
		feed:     opts.Feed,
		pipeline: opts.Pipeline,
		ranker:   opts.Ranker,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the tick loop. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.loop(ctx)
	})
}

// Stop cancels the pending reschedule. An in-flight tick runs to completion;
// Stop returns once the loop has exited.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

// loop reschedules only after the current tick fully completes.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.runTick(ctx, s.currentTick())
		timer.Reset(s.interval)
	}
}

// currentTick derives the tick number from wall time so ticks stay monotonic
// across restarts. A fast restart may repeat a tick; the decision and
// snapshot ledgers absorb the replay through their uniqueness keys.
// Millisecond resolution keeps the divisor nonzero for sub-second intervals.
func (s *Scheduler) currentTick() int64 {
	return time.Now().UnixMilli() / s.interval.Milliseconds()
}

// runTick processes every arena with at least one active registration.
// A panic or error anywhere in the tick is caught here; the next tick is
// still scheduled.
func (s *Scheduler) runTick(ctx context.Context, tick int64) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("[scheduler] tick %d panicked: %v", tick, rec)
		}
	}()

	start := time.Now()
	s.logger.Printf("[scheduler] tick %d starting", tick)

	arenas, err := s.stores.Arenas.ListWithActiveRegistrations(ctx)
	if err != nil {
		s.logger.Printf("[scheduler] tick %d: load arenas: %v", tick, err)
		return
	}

	for _, arena := range arenas {
		s.runArena(ctx, arena, tick)
	}

	observability.RecordTick(time.Since(start).Seconds())
	s.logger.Printf("[scheduler] tick %d completed in %v (%d arenas)", tick, time.Since(start), len(arenas))
}

// runArena runs every active agent in one arena, then ranks it.
// Per-agent failures are logged and never abort siblings.
func (s *Scheduler) runArena(ctx context.Context, arena *domain.Arena, tick int64) {
	snapshot, err := s.feed.Get(ctx, arena.TokenAddress)
	if err != nil {
		if errors.Is(err, marketfeed.ErrNoSnapshot) {
			s.logger.Printf("[scheduler] arena %s: no market snapshot, skipping", arena.Name)
			observability.RecordArenaSkipped("no_snapshot")
			return
		}
		s.logger.Printf("[scheduler] arena %s: market feed error: %v", arena.Name, err)
		observability.RecordArenaSkipped("feed_error")
		return
	}

	regs, err := s.stores.Registrations.ListActiveByArena(ctx, arena.ID)
	if err != nil {
		s.logger.Printf("[scheduler] arena %s: load registrations: %v", arena.Name, err)
		return
	}

	for _, reg := range regs {
		agent, err := s.stores.Agents.GetByID(ctx, reg.AgentID)
		if err != nil {
			s.logger.Printf("[scheduler] arena %s: load agent %s: %v", arena.Name, reg.AgentID, err)
			continue
		}
		if err := s.pipeline.Run(ctx, agent, arena, snapshot, tick); err != nil {
			s.logger.Printf("[scheduler] arena %s agent %s tick %d: %v", arena.Name, agent.ID, tick, err)
		}
	}

	if _, err := s.ranker.ComputeAndStore(ctx, arena.ID, tick, snapshot.Price); err != nil {
		s.logger.Printf("[scheduler] arena %s tick %d: leaderboard: %v", arena.Name, tick, err)
		return
	}
	observability.RecordSnapshot()
	observability.RecordArenaProcessed()
}
