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

func TestEpochStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	_, arenaID := seedPair(t, stores)

	epoch := &domain.Epoch{
		ID:             uuid.NewString(),
		ArenaID:        arenaID,
		OnChainEpochID: 5,
		StartTime:      100,
		EndTime:        200,
		CreatedAt:      time.Now().UnixMilli(),
	}
	require.NoError(t, stores.Epochs.Upsert(ctx, epoch))

	got, err := stores.Epochs.GetByArenaEpoch(ctx, arenaID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.StartTime)
	assert.Equal(t, int64(200), got.EndTime)
	assert.False(t, got.Ended)

	// Re-upsert marks it ended without changing identity.
	epoch.Ended = true
	require.NoError(t, stores.Epochs.Upsert(ctx, epoch))
	got2, err := stores.Epochs.GetByArenaEpoch(ctx, arenaID, 5)
	require.NoError(t, err)
	assert.Equal(t, got.ID, got2.ID)
	assert.True(t, got2.Ended)
}

func TestEpochStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	_, arenaID := seedPair(t, stores)

	_, err := stores.Epochs.GetByArenaEpoch(ctx, arenaID, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEpochStore_UpsertRegistrationIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	epoch := &domain.Epoch{
		ID: uuid.NewString(), ArenaID: arenaID, OnChainEpochID: 1,
		CreatedAt: time.Now().UnixMilli(),
	}
	require.NoError(t, stores.Epochs.Upsert(ctx, epoch))

	require.NoError(t, stores.Epochs.UpsertRegistration(ctx, epoch.ID, agentID))
	// Redelivered event: no error, no second row.
	require.NoError(t, stores.Epochs.UpsertRegistration(ctx, epoch.ID, agentID))

	var count int
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM epoch_registrations WHERE epoch_id = $1", epoch.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
