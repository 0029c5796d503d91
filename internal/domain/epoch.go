package domain

// Epoch mirrors one on-chain reward epoch for an arena.
// "Ended" is authoritative on chain; the mirror follows.
type Epoch struct {
	ID             string // UUID
	ArenaID        string
	OnChainEpochID int64
	StartTime      int64 // Unix seconds; 0 means uncreated on chain
	EndTime        int64
	Ended          bool
	CreatedAt      int64
}

// EpochRegistration is an idempotent marker that an agent renewed into an epoch.
type EpochRegistration struct {
	EpochID   string
	AgentID   string
	CreatedAt int64
}

// EpochPhase classifies one arena's epochs at a point in time.
// At most one epoch is active and at most one is due to end.
type EpochPhase struct {
	Active *Epoch // start <= now < end, not ended
	ToEnd  *Epoch // end <= now, not ended; highest on-chain id wins
}
