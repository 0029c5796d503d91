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

func newDecision(agentID, arenaID string, tick int64, status string) *domain.AgentDecision {
	now := time.Now().UnixMilli()
	return &domain.AgentDecision{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		ArenaID:    arenaID,
		Tick:       tick,
		Action:     domain.ActionBuy,
		SizePct:    0.2,
		Price:      2.0,
		Confidence: 0.9,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestDecisionStore_InsertAndListByPair(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	for _, tick := range []int64{20, 10} {
		require.NoError(t, stores.Decisions.Insert(ctx, newDecision(agentID, arenaID, tick, domain.DecisionPending)))
	}

	decisions, err := stores.Decisions.ListByPair(ctx, agentID, arenaID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, int64(10), decisions[0].Tick)
	assert.Equal(t, int64(20), decisions[1].Tick)
}

func TestDecisionStore_DuplicateTick(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	require.NoError(t, stores.Decisions.Insert(ctx, newDecision(agentID, arenaID, 10, domain.DecisionPending)))
	err := stores.Decisions.Insert(ctx, newDecision(agentID, arenaID, 10, domain.DecisionPending))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDecisionStore_UpdateStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	d := newDecision(agentID, arenaID, 10, domain.DecisionPending)
	require.NoError(t, stores.Decisions.Insert(ctx, d))

	require.NoError(t, stores.Decisions.UpdateStatus(ctx, d.ID, domain.DecisionSuccess, "0xdone"))

	decisions, err := stores.Decisions.ListByPair(ctx, agentID, arenaID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.DecisionSuccess, decisions[0].Status)
	assert.Equal(t, "0xdone", decisions[0].TxHash)
	assert.True(t, decisions[0].Terminal())

	assert.ErrorIs(t, stores.Decisions.UpdateStatus(ctx, uuid.NewString(), domain.DecisionFailed, ""), storage.ErrNotFound)
}

func TestDecisionStore_ListPending(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := postgres.NewStores(pool)
	ctx := context.Background()
	agentID, arenaID := seedPair(t, stores)

	old := newDecision(agentID, arenaID, 10, domain.DecisionPending)
	old.CreatedAt = time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, stores.Decisions.Insert(ctx, old))

	fresh := newDecision(agentID, arenaID, 11, domain.DecisionPending)
	require.NoError(t, stores.Decisions.Insert(ctx, fresh))

	done := newDecision(agentID, arenaID, 12, domain.DecisionSuccess)
	done.CreatedAt = old.CreatedAt
	require.NoError(t, stores.Decisions.Insert(ctx, done))

	cutoff := time.Now().Add(-time.Minute).UnixMilli()
	pending, err := stores.Decisions.ListPending(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, old.ID, pending[0].ID)
}
