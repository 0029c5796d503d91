package domain

// LeaderboardEntry is one ranked row inside a snapshot.
type LeaderboardEntry struct {
	Rank       int // 1-based
	AgentID    string
	Equity     float64
	PnlPct     float64
	Volume     float64
	TradeCount int
	Score      float64
}

// LeaderboardSnapshot is the ranked performance view for one arena at one tick.
// Immutable once written; unique by (arena, tick).
type LeaderboardSnapshot struct {
	ID        string // UUID
	ArenaID   string
	Tick      int64
	Entries   []LeaderboardEntry
	CreatedAt int64
}
