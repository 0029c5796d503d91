package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"agent-arena/internal/agentmemory"
	"agent-arena/internal/chain"
	"agent-arena/internal/config"
	"agent-arena/internal/epoch"
	"agent-arena/internal/indexer"
	"agent-arena/internal/leaderboard"
	"agent-arena/internal/marketfeed"
	"agent-arena/internal/observability"
	"agent-arena/internal/oracle"
	"agent-arena/internal/pipeline"
	"agent-arena/internal/scheduler"
	"agent-arena/internal/secrets"
	chsink "agent-arena/internal/storage/clickhouse"
	"agent-arena/internal/storage/memory"
	"agent-arena/internal/storage/migrations"
	pgstore "agent-arena/internal/storage/postgres"
)

func main() {
	// Load .env before flag defaults read the environment.
	_ = godotenv.Load()

	oracleEndpoint := flag.String("oracle-endpoint", os.Getenv("ORACLE_ENDPOINT"), "Decision oracle HTTP endpoint")
	memoryEndpoint := flag.String("memory-endpoint", os.Getenv("MEMORY_ENDPOINT"), "Agent memory service endpoint (empty to disable)")
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_ENDPOINT"), "Market data WebSocket endpoint")
	chainRPC := flag.String("chain-rpc", os.Getenv("CHAIN_RPC"), "EVM RPC endpoint (empty disables chain settlement)")
	chainWS := flag.String("chain-ws", os.Getenv("CHAIN_WS"), "EVM WebSocket endpoint for the event indexer")
	contractAddr := flag.String("contract", os.Getenv("ARENA_CONTRACT"), "Arena contract address")
	chainID := flag.Int64("chain-id", 0, "EVM chain id")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for trade analytics (empty to disable)")
	seedFile := flag.String("seed", "", "YAML seed file for arenas and agents")
	tickInterval := flag.Duration("tick-interval", scheduler.DefaultInterval, "Scheduler tick interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, runOptions{
		oracleEndpoint: *oracleEndpoint,
		memoryEndpoint: *memoryEndpoint,
		feedEndpoint:   *feedEndpoint,
		chainRPC:       *chainRPC,
		chainWS:        *chainWS,
		contractAddr:   *contractAddr,
		chainID:        *chainID,
		postgresDSN:    *postgresDSN,
		clickhouseDSN:  *clickhouseDSN,
		seedFile:       *seedFile,
		tickInterval:   *tickInterval,
		useMemory:      *useMemory,
	})

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type runOptions struct {
	oracleEndpoint string
	memoryEndpoint string
	feedEndpoint   string
	chainRPC       string
	chainWS        string
	contractAddr   string
	chainID        int64
	postgresDSN    string
	clickhouseDSN  string
	seedFile       string
	tickInterval   time.Duration
	useMemory      bool
}

func run(ctx context.Context, logger *log.Logger, opts runOptions) error {
	if opts.oracleEndpoint == "" {
		return fmt.Errorf("--oracle-endpoint is required")
	}
	if opts.feedEndpoint == "" {
		return fmt.Errorf("--feed-endpoint is required")
	}
	if !opts.useMemory && opts.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Storage
	stores := memory.NewStores()
	if !opts.useMemory {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}
		stores = pgstore.NewStores(pool)
	}

	// Optional analytics mirror
	if opts.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()
		sink := chsink.NewTradeSink(stores.Trades, conn, logger)
		stores.Trades = sink
		stores.Committer = chsink.NewMirroredCommitter(stores.Committer, sink)
	}

	// Signer vault, needed only when agents settle on chain.
	var vault *secrets.Vault
	if keyHex := os.Getenv("VAULT_MASTER_KEY"); keyHex != "" {
		masterKey, err := hex.DecodeString(keyHex)
		if err != nil {
			return fmt.Errorf("decode VAULT_MASTER_KEY: %w", err)
		}
		vault, err = secrets.NewVault(masterKey)
		if err != nil {
			return fmt.Errorf("create vault: %w", err)
		}
	}

	// Seed arenas and agents before the first tick.
	if opts.seedFile != "" {
		seed, err := config.Load(opts.seedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, stores, vault, logger); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
	}

	// Chain client, optional for paper-only deployments.
	var chainClient *chain.Client
	if opts.chainRPC != "" {
		if opts.contractAddr == "" {
			return fmt.Errorf("--contract is required with --chain-rpc")
		}
		if vault == nil {
			return fmt.Errorf("VAULT_MASTER_KEY is required with --chain-rpc")
		}
		var err error
		chainClient, err = chain.NewClient(ctx, chain.ClientOptions{
			RPCEndpoint:     opts.chainRPC,
			WSEndpoint:      opts.chainWS,
			ContractAddress: opts.contractAddr,
			ChainID:         opts.chainID,
			RateLimit:       rate.Limit(10),
			Logger:          logger,
		})
		if err != nil {
			return fmt.Errorf("create chain client: %w", err)
		}
		defer chainClient.Close()
	}

	// Market feed
	feed := marketfeed.NewWSFeed(ctx, opts.feedEndpoint, nil, logger)
	defer feed.Close()

	// Oracle and agent memory
	oracleClient := oracle.NewHTTPClient(oracle.HTTPClientOptions{
		Endpoint:  opts.oracleEndpoint,
		RateLimit: rate.Limit(5),
	})
	var memoryClient agentmemory.Client = agentmemory.Nop{}
	if opts.memoryEndpoint != "" {
		memoryClient = agentmemory.NewHTTPClient(opts.memoryEndpoint, 10*time.Second)
	}

	var chainReader chain.Reader
	var chainWriter chain.Writer
	if chainClient != nil {
		chainReader = chainClient
		chainWriter = chainClient
	}

	pipe := pipeline.New(pipeline.Options{
		Stores:      stores,
		Oracle:      oracleClient,
		Memory:      memoryClient,
		ChainReader: chainReader,
		ChainWriter: chainWriter,
		Epochs:      epoch.NewResolver(chainReader),
		Vault:       vault,
		Logger:      logger,
	})

	ranker := leaderboard.NewRanker(stores.Registrations, stores.Portfolios, stores.Trades, stores.Leaderboards, logger)

	// Event indexer, only with a chain WS subscription.
	if chainClient != nil && opts.chainWS != "" {
		events, err := chainClient.SubscribeEvents(ctx)
		if err != nil {
			return fmt.Errorf("subscribe chain events: %w", err)
		}
		ix := indexer.New(indexer.Options{Stores: stores, Reader: chainReader, Logger: logger})
		go ix.Run(ctx, events)
		logger.Println("Chain event indexer started")
	}

	sched := scheduler.New(scheduler.Options{
		Stores:   stores,
		Feed:     feed,
		Pipeline: pipe,
		Ranker:   ranker,
		Interval: opts.tickInterval,
		Logger:   logger,
	})

	logger.Printf("Starting scheduler with %v tick interval", opts.tickInterval)
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
	return ctx.Err()
}
