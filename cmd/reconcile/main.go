package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"agent-arena/internal/reconcile"
	chsink "agent-arena/internal/storage/clickhouse"
	"agent-arena/internal/storage/migrations"
	pgstore "agent-arena/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for trade analytics (empty to disable)")
	pendingAge := flag.Duration("pending-age", reconcile.DefaultPendingAge, "Minimum age of pending decisions to touch")
	matchWindow := flag.Duration("match-window", reconcile.DefaultMatchWindow, "Block-time window for chain trade matching")
	failAfter := flag.Duration("fail-after", reconcile.DefaultFailAfter, "Age after which unmatched decisions fail")

	flag.Parse()

	logger := log.New(os.Stdout, "[reconcile] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	stores := pgstore.NewStores(pool)
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Run clickhouse migrations: %v", err)
		}
		defer conn.Close()
		sink := chsink.NewTradeSink(stores.Trades, conn, logger)
		stores.Trades = sink
		stores.Committer = chsink.NewMirroredCommitter(stores.Committer, sink)
	}

	rec := reconcile.New(reconcile.Options{
		Stores:      stores,
		PendingAge:  *pendingAge,
		MatchWindow: *matchWindow,
		FailAfter:   *failAfter,
		Logger:      logger,
	})

	start := time.Now()
	if err := rec.Run(ctx); err != nil {
		logger.Fatalf("Reconcile: %v", err)
	}
	logger.Printf("Reconcile sweep complete in %v", time.Since(start))
}
