package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
	"agent-arena/internal/storage/migrations"
	"agent-arena/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container, applies the embedded migrations
// and returns a pool plus cleanup.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to apply migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// seedPair inserts one agent, one arena and an active registration, returning
// their generated ids.
func seedPair(t *testing.T, stores *storage.Stores) (agentID, arenaID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UnixMilli()

	agent := &domain.Agent{
		ID: uuid.NewString(), Name: "alice", FundedBalance: 1000,
		ProfileConfig: `{"maxTradesPerWindow":10,"maxTradePct":0.25,"maxPositionPct":0.8}`,
		CreatedAt:     now, UpdatedAt: now,
	}
	require.NoError(t, stores.Agents.Upsert(ctx, agent))

	arena := &domain.Arena{
		ID: uuid.NewString(), TokenAddress: "0x" + uuid.NewString()[:8], Name: "test arena",
		CreatedAt: now,
	}
	require.NoError(t, stores.Arenas.Upsert(ctx, arena))

	require.NoError(t, stores.Registrations.Upsert(ctx, agent.ID, arena.ID, true))
	return agent.ID, arena.ID
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
