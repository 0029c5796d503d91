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

func TestAgentStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAgentStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	agent := &domain.Agent{
		ID:               uuid.NewString(),
		OnChainID:        7,
		Name:             "alice",
		WalletAddress:    "0xwallet1",
		SignerCiphertext: []byte{0x01, 0x02, 0x03},
		FundedBalance:    1000,
		ProfileConfig:    `{"maxTradePct":0.25}`,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := store.Upsert(ctx, agent)
	require.NoError(t, err)

	byID, err := store.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.Name, byID.Name)
	assert.Equal(t, agent.WalletAddress, byID.WalletAddress)
	assert.Equal(t, agent.SignerCiphertext, byID.SignerCiphertext)
	assert.Equal(t, agent.FundedBalance, byID.FundedBalance)
	assert.Equal(t, agent.ProfileConfig, byID.ProfileConfig)

	byChain, err := store.GetByOnChainID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, byChain.ID)
}

func TestAgentStore_UpsertUpdatesInPlace(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAgentStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	agent := &domain.Agent{ID: uuid.NewString(), Name: "alice", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Upsert(ctx, agent))

	agent.Name = "alice v2"
	agent.FundedBalance = 250
	require.NoError(t, store.Upsert(ctx, agent))

	got, err := store.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice v2", got.Name)
	assert.Equal(t, float64(250), got.FundedBalance)
}

func TestAgentStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAgentStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByOnChainID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAgentStore_NilCiphertext(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAgentStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	agent := &domain.Agent{ID: uuid.NewString(), Name: "paper bob", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Upsert(ctx, agent))

	got, err := store.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SignerCiphertext)
	assert.False(t, got.HasOnChainIdentity())
}
