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
	"syscall"
	"time"

	"solana-snipe/internal/config"
	"solana-snipe/internal/discovery"
	"solana-snipe/internal/dispatch"
	"solana-snipe/internal/engine"
	"solana-snipe/internal/filter"
	"solana-snipe/internal/ledger"
	"solana-snipe/internal/observability"
	"solana-snipe/internal/position"
	"solana-snipe/internal/queue"
	"solana-snipe/internal/storage"
	chstore "solana-snipe/internal/storage/clickhouse"
	"solana-snipe/internal/storage/memory"
	"solana-snipe/internal/storage/migrations"
	pgstore "solana-snipe/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (empty for in-memory storage)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the trade fill log")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[snipe] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Start metrics server if enabled
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

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(60 * time.Second):
			logger.Println("Graceful shutdown timed out after 60s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg, *postgresDSN, *clickhouseDSN)

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run wires the stores, ledger client and trading loop, then blocks until
// the context is cancelled.
func run(ctx context.Context, logger *log.Logger, cfg *config.Config, postgresDSN, clickhouseDSN string) error {
	// Create stores (use interfaces)
	var fills storage.TradeFillStore = memory.NewTradeFillStore()
	var snapshots storage.PositionSnapshotStore = memory.NewPositionSnapshotStore()

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		fills = pgstore.NewTradeFillStore(pool)
		snapshots = pgstore.NewPositionSnapshotStore(pool)
		logger.Println("Using PostgreSQL storage")
	}

	// ClickHouse, when configured, takes over the append-only fill log;
	// position snapshots stay in Postgres (or memory).
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}

		fills = chstore.NewTradeFillStore(conn)
		logger.Println("Using ClickHouse for the trade fill log")
	}

	if postgresDSN == "" && clickhouseDSN == "" {
		logger.Println("No database configured, using in-memory storage")
	}

	// Shared trading state
	signals := queue.New(cfg.Trading.QueueCapacity)
	positions := position.NewStore()
	prices := discovery.NewPriceCache()

	// Ledger client: paper fills in dry-run mode, Jupiter otherwise
	var ledgerClient ledger.Client
	if cfg.Trading.DryRun {
		ledgerClient = ledger.NewPaperClient(func(_ context.Context, assetID string) (float64, bool) {
			return prices.Get(assetID)
		}, logger)
		logger.Println("Dry-run mode: trades are simulated, no transactions are sent")
	} else {
		wallet, err := ledger.NewWallet(cfg.Trading.PrivateKey)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		logger.Printf("Wallet loaded: %s", wallet.Address())

		swapAPI := cfg.Ledger.SwapAPIURL
		if swapAPI == "" {
			swapAPI = ledger.DefaultJupiterBase
		}

		var confirm *ledger.ConfirmClient
		if cfg.Ledger.WSURL != "" {
			confirm = ledger.NewConfirmClient(cfg.Ledger.WSURL)
		}

		ledgerClient, err = ledger.NewExecClient(ledger.ExecOptions{
			RPC:         ledger.NewRPCClient(cfg.Ledger.RPCURL),
			Jupiter:     ledger.NewJupiterClient(swapAPI),
			Wallet:      wallet,
			Confirm:     confirm,
			SlippageBps: int(cfg.Sniping.MaxSlippagePct * 100),
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("create execution client: %w", err)
		}
	}

	// Discovery side
	source := discovery.NewDexScreenerSource(cfg.Feed.URL, cfg.Feed.Query, cfg.Feed.Timeout())

	trigger := &filter.PriceChangeTrigger{MinChangePct: cfg.Sniping.MinPriceChange}
	engineFilter := filter.NewEngine(cfg.Sniping, trigger)

	poller, err := discovery.NewPoller(discovery.PollerOptions{
		Source:       source,
		Filter:       engineFilter,
		Queue:        signals,
		Positions:    positions,
		Size:         cfg.Trading.SOLAmount,
		Interval:     cfg.Feed.Interval(),
		FetchTimeout: cfg.Feed.Timeout(),
		Prices:       prices,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create poller: %w", err)
	}

	// Execution side
	dispatcher, err := dispatch.New(dispatch.Options{
		Queue:     signals,
		Positions: positions,
		Ledger:    ledgerClient,
		Fills:     fills,
		Workers:   cfg.Trading.Workers,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	runner, err := engine.NewRunner(engine.Options{
		Pollers:       []*discovery.Poller{poller},
		Queue:         signals,
		Dispatcher:    dispatcher,
		Positions:     positions,
		Prices:        prices,
		Snapshots:     snapshots,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		StopLossPct:   cfg.Trading.StopLossPct,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	logger.Printf("Starting trading loop: feed=%s query=%q size=%.3f SOL workers=%d",
		cfg.Feed.URL, cfg.Feed.Query, cfg.Trading.SOLAmount, cfg.Trading.Workers)
	return runner.Run(ctx)
}
