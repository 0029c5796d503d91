// Package epoch derives an arena's current and ending epochs from chain state.
package epoch

import (
	"context"
	"fmt"

	"agent-arena/internal/chain"
)

// Phase classifies one arena's epochs at a point in time. At most one epoch
// is active and at most one is due to end.
type Phase struct {
	// ActiveID is the epoch with start <= now < end, not ended. -1 if none.
	ActiveID int64
	// ToEndID is the epoch with end <= now, not ended; the highest id wins
	// when several qualify. -1 if none.
	ToEndID int64
}

// Resolver reads epoch state from chain.
// Each call performs O(n) sequential epoch reads against the arena's
// next-epoch-id counter; acceptable for the epoch counts arenas reach today.
type Resolver struct {
	reader chain.Reader
}

// NewResolver creates a Resolver.
func NewResolver(reader chain.Reader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve classifies every created epoch of an arena at time now (Unix seconds).
// Epochs with a zero start time were never created and are skipped.
func (r *Resolver) Resolve(ctx context.Context, arenaOnChainID, now int64) (*Phase, error) {
	next, err := r.reader.NextEpochID(ctx, arenaOnChainID)
	if err != nil {
		return nil, fmt.Errorf("read next epoch id: %w", err)
	}

	phase := &Phase{ActiveID: -1, ToEndID: -1}
	for id := int64(0); id < next; id++ {
		info, err := r.reader.EpochInfo(ctx, arenaOnChainID, id)
		if err != nil {
			return nil, fmt.Errorf("read epoch %d: %w", id, err)
		}
		if info.StartTime == 0 || info.Ended {
			continue
		}
		if info.EndTime <= now {
			// Highest id wins on conflict; ids ascend, so overwrite.
			phase.ToEndID = id
			continue
		}
		if info.StartTime <= now && now < info.EndTime {
			phase.ActiveID = id
		}
	}
	return phase, nil
}

// ActiveEpochID resolves the arena's current epoch id, defaulting to 0 when
// no epoch is active.
func (r *Resolver) ActiveEpochID(ctx context.Context, arenaOnChainID, now int64) int64 {
	phase, err := r.Resolve(ctx, arenaOnChainID, now)
	if err != nil || phase.ActiveID < 0 {
		return 0
	}
	return phase.ActiveID
}
