package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
	"agent-arena/internal/storage/postgres"
)

func newSnapshot(arenaID string, tick int64, agentID string) *domain.LeaderboardSnapshot {
	return &domain.LeaderboardSnapshot{
		ID:      uuid.NewString(),
		ArenaID: arenaID,
		Tick:    tick,
		Entries: []domain.LeaderboardEntry{
			{Rank: 1, AgentID: agentID, Equity: 120, PnlPct: 20, Volume: 50, TradeCount: 3, Score: 0.8},
		},
		CreatedAt: time.Now().UnixMilli(),
	}
}

func TestLeaderboardStore_InsertAndGetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	require.NoError(t, stores.Leaderboards.Insert(ctx, newSnapshot(arenaID, 10, agentID)))
	require.NoError(t, stores.Leaderboards.Insert(ctx, newSnapshot(arenaID, 20, agentID)))

	latest, err := stores.Leaderboards.GetLatest(ctx, arenaID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), latest.Tick)
	require.Len(t, latest.Entries, 1)
	assert.Equal(t, agentID, latest.Entries[0].AgentID)
	assert.Equal(t, 1, latest.Entries[0].Rank)
	assert.Equal(t, 0.8, latest.Entries[0].Score)
}

func TestLeaderboardStore_DuplicateTick(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	require.NoError(t, stores.Leaderboards.Insert(ctx, newSnapshot(arenaID, 10, agentID)))
	err := stores.Leaderboards.Insert(ctx, newSnapshot(arenaID, 10, agentID))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestLeaderboardStore_GetLatestEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	_, arenaID := seedPair(t, stores)

	_, err := stores.Leaderboards.GetLatest(ctx, arenaID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
