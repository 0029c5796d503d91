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

func TestPortfolioStore_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)
	now := time.Now().UnixMilli()

	pf := &domain.Portfolio{
		ID:             uuid.NewString(),
		AgentID:        agentID,
		ArenaID:        arenaID,
		Cash:           80,
		TokenUnits:     10,
		AvgEntryPrice:  ptr(2.0),
		InitialCapital: 100,
		LastTradeTick:  ptr(int64(5)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, stores.Portfolios.Create(ctx, pf))

	got, err := stores.Portfolios.Get(ctx, agentID, arenaID)
	require.NoError(t, err)
	assert.Equal(t, pf.Cash, got.Cash)
	assert.Equal(t, pf.TokenUnits, got.TokenUnits)
	require.NotNil(t, got.AvgEntryPrice)
	assert.Equal(t, 2.0, *got.AvgEntryPrice)
	require.NotNil(t, got.LastTradeTick)
	assert.Equal(t, int64(5), *got.LastTradeTick)
}

func TestPortfolioStore_CreateDuplicatePair(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)
	now := time.Now().UnixMilli()

	pf := &domain.Portfolio{
		ID: uuid.NewString(), AgentID: agentID, ArenaID: arenaID,
		Cash: 100, InitialCapital: 100, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, stores.Portfolios.Create(ctx, pf))

	dup := &domain.Portfolio{
		ID: uuid.NewString(), AgentID: agentID, ArenaID: arenaID,
		Cash: 50, InitialCapital: 50, CreatedAt: now, UpdatedAt: now,
	}
	assert.ErrorIs(t, stores.Portfolios.Create(ctx, dup), storage.ErrDuplicateKey)
}

func TestPortfolioStore_UpdateNullsOutAvgEntry(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)
	now := time.Now().UnixMilli()

	pf := &domain.Portfolio{
		ID: uuid.NewString(), AgentID: agentID, ArenaID: arenaID,
		Cash: 80, TokenUnits: 10, AvgEntryPrice: ptr(2.0),
		InitialCapital: 100, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, stores.Portfolios.Create(ctx, pf))

	// Full exit: tokens and average entry go back to zero state.
	pf.Cash = 110
	pf.TokenUnits = 0
	pf.AvgEntryPrice = nil
	require.NoError(t, stores.Portfolios.Update(ctx, pf))

	got, err := stores.Portfolios.Get(ctx, agentID, arenaID)
	require.NoError(t, err)
	assert.Equal(t, 110.0, got.Cash)
	assert.Zero(t, got.TokenUnits)
	assert.Nil(t, got.AvgEntryPrice)
}

func TestPortfolioStore_UpdateMissingRow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	pf := &domain.Portfolio{ID: uuid.NewString(), AgentID: agentID, ArenaID: arenaID}
	assert.ErrorIs(t, stores.Portfolios.Update(ctx, pf), storage.ErrNotFound)
}

func TestPortfolioStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()

	_, err := stores.Portfolios.Get(ctx, uuid.NewString(), uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
