// Package main runs the staking rewards service: snapshot refresh, the 1 Hz
// projection, pool history recording and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"npc-stake/internal/api"
	"npc-stake/internal/leaderboard"
	"npc-stake/internal/program"
	"npc-stake/internal/projection"
	"npc-stake/internal/refresh"
	"npc-stake/internal/solana"
	"npc-stake/internal/storage"
	chstore "npc-stake/internal/storage/clickhouse"
	"npc-stake/internal/storage/memory"
	"npc-stake/internal/storage/migrations"
	pgstore "npc-stake/internal/storage/postgres"
)

// stores holds the storage implementations.
type stores struct {
	leaderboard storage.LeaderboardStore
	history     storage.PoolHistoryStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (empty to poll only)")
	programID := flag.String("program-id", os.Getenv("STAKING_PROGRAM_ID"), "Staking program ID")
	stakingMint := flag.String("staking-mint", os.Getenv("STAKING_MINT"), "Staking mint address")
	wallet := flag.String("wallet", os.Getenv("WALLET_ADDRESS"), "Wallet whose position is projected (empty for pool only)")
	commitment := flag.String("commitment", envOr("SOLANA_COMMITMENT", solana.CommitmentConfirmed), "RPC commitment level")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP API address")
	refreshInterval := flag.Duration("refresh-interval", refresh.DefaultInterval, "Snapshot poll interval")
	cacheWindow := flag.Duration("cache-window", refresh.DefaultCacheWindow, "Skip non-forced refreshes within this window")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *programID == "" || *stakingMint == "" {
		logger.Fatal("--program-id and --staking-mint are required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	addrs, err := program.Derive(*programID, *stakingMint, *wallet)
	if err != nil {
		logger.Fatalf("Invalid staking accounts: %v", err)
	}
	logger.Printf("Pool %s, user %s", addrs.Pool, userLabel(addrs))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(*rpcEndpoint, solana.WithCommitment(*commitment))

	var ws solana.WSClient
	if *wsEndpoint != "" {
		cfg := solana.DefaultWSConfig()
		cfg.Commitment = *commitment
		cfg.Logger = log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lshortfile)
		client, err := solana.NewWSClient(ctx, *wsEndpoint, &cfg)
		if err != nil {
			logger.Printf("WebSocket unavailable, polling only: %v", err)
		} else {
			ws = client
			defer client.Close()
		}
	}

	projector := projection.New(projection.Options{
		Logger: log.New(os.Stdout, "[projection] ", log.LstdFlags|log.Lshortfile),
	})
	defer projector.Close()

	refresher := refresh.New(refresh.Options{
		RPC:         rpc,
		WS:          ws,
		Projector:   projector,
		Addresses:   addrs,
		History:     st.history,
		Interval:    *refreshInterval,
		CacheWindow: *cacheWindow,
		Logger:      log.New(os.Stdout, "[refresh] ", log.LstdFlags|log.Lshortfile),
	})

	apiServer := api.NewServer(api.Config{
		Projector:   projector,
		Refresher:   refresher,
		History:     st.history,
		Leaderboard: leaderboard.NewService(st.leaderboard, log.New(os.Stdout, "[leaderboard] ", log.LstdFlags|log.Lshortfile)),
		Pool:        addrs.Pool.String(),
		Logger:      log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile),
	})
	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
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

	// Start HTTP server
	go func() {
		logger.Printf("Starting HTTP server on %s", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
			cancel()
		}
	}()

	// Run the refresher until shutdown
	err = refresher.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Printf("HTTP shutdown error: %v", serr)
	}
	shutdownCancel()
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the leaderboard and history stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory {
		st := &stores{
			leaderboard: memory.NewLeaderboardStore(),
			history:     memory.NewPoolHistoryStore(),
		}
		return st, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	st := &stores{
		leaderboard: pgstore.NewLeaderboardStore(pool),
		history:     chstore.NewPoolHistoryStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return st, cleanup, nil
}

func userLabel(a program.Addresses) string {
	if !a.HasUser() {
		return "(no wallet)"
	}
	return a.User.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
