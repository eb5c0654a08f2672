// Package main runs the transfer ingest loop on its own: poll the
// chain-history API, classify transfers, store decorations.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zhenek73/vaultatrees/internal/hyperion"
	"github.com/zhenek73/vaultatrees/internal/ingestion"
	"github.com/zhenek73/vaultatrees/internal/observability"
	"github.com/zhenek73/vaultatrees/internal/storage"
	"github.com/zhenek73/vaultatrees/internal/storage/clickhouse"
	"github.com/zhenek73/vaultatrees/internal/storage/memory"
	"github.com/zhenek73/vaultatrees/internal/storage/migrations"
	pgstore "github.com/zhenek73/vaultatrees/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	hyperionURL := flag.String("hyperion-url", os.Getenv("HYPERION_API_URL"), "Hyperion history API base URL")
	account := flag.String("account", envOr("EOS_ACCOUNT", "malinkatrees"), "Account receiving decoration transfers")
	contracts := flag.String("contracts", envOr("EOS_CONTRACTS", "malinka.token,swap.pcash"), "Comma-separated token contract allowlist")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (empty to disable the analytics mirror)")
	pollInterval := flag.Duration("poll-interval", ingestion.DefaultPollInterval, "How often to poll the history API")
	fetchLimit := flag.Int("fetch-limit", ingestion.DefaultFetchLimit, "Transfers requested per poll cycle")
	cacheWarm := flag.Int("cache-warm", ingestion.DefaultCacheCapacity, "Recent tx ids preloaded into the dedup cache")
	denylist := flag.String("denylist", os.Getenv("SENDER_DENYLIST"), "Comma-separated sender accounts to ignore")
	forceReprocess := flag.Bool("force-reprocess", false, "Run one cycle with dedup bypassed and exit")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[poller] ", log.LstdFlags|log.Lshortfile)

	if *hyperionURL == "" {
		logger.Fatal("--hyperion-url is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

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

	err := run(ctx, logger, config{
		hyperionURL:    *hyperionURL,
		account:        *account,
		contracts:      splitList(*contracts),
		postgresDSN:    *postgresDSN,
		clickhouseDSN:  *clickhouseDSN,
		pollInterval:   *pollInterval,
		fetchLimit:     *fetchLimit,
		cacheWarm:      *cacheWarm,
		denylist:       splitList(*denylist),
		forceReprocess: *forceReprocess,
		useMemory:      *useMemory,
	})

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Poller failed: %v", err)
	}
	logger.Println("Poller stopped")
}

type config struct {
	hyperionURL    string
	account        string
	contracts      []string
	postgresDSN    string
	clickhouseDSN  string
	pollInterval   time.Duration
	fetchLimit     int
	cacheWarm      int
	denylist       []string
	forceReprocess bool
	useMemory      bool
}

func run(ctx context.Context, logger *log.Logger, cfg config) error {
	var (
		decorationStore storage.DecorationStore
		stateStore      storage.ParserStateStore
		eventStore      storage.DonationEventStore
	)

	if cfg.useMemory {
		logger.Println("Using in-memory storage")
		decorationStore = memory.NewDecorationStore()
		stateStore = memory.NewParserStateStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		logger.Println("PostgreSQL migrations applied")

		decorationStore = pgstore.NewDecorationStore(pool)
		stateStore = pgstore.NewParserStateStore(pool)
	}

	if cfg.clickhouseDSN != "" {
		conn, err := clickhouse.NewConn(ctx, cfg.clickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return err
		}
		logger.Println("ClickHouse migrations applied")

		eventStore = clickhouse.NewDonationEventStore(conn)
	}

	client := hyperion.NewClient(cfg.hyperionURL)
	fetcher, err := ingestion.NewHyperionFetcher(ingestion.HyperionFetcherOptions{
		Client:    client,
		Account:   cfg.account,
		Contracts: cfg.contracts,
		Limit:     cfg.fetchLimit,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	cache := ingestion.NewTxCache(cfg.cacheWarm)
	writer, err := ingestion.NewWriter(ingestion.WriterOptions{
		Store:       decorationStore,
		Events:      eventStore,
		Cache:       cache,
		BypassDedup: cfg.forceReprocess,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	poller, err := ingestion.NewPoller(ingestion.PollerOptions{
		Source:      fetcher,
		Writer:      writer,
		Store:       decorationStore,
		State:       stateStore,
		Cache:       cache,
		Denylist:    cfg.denylist,
		Interval:    cfg.pollInterval,
		WarmSize:    cfg.cacheWarm,
		BypassDedup: cfg.forceReprocess,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if cfg.forceReprocess {
		logger.Println("Force-reprocess: running one cycle with dedup bypassed")
		return poller.RunOnce(ctx)
	}

	return poller.Run(ctx)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads .env from the working directory without
// overriding variables already set in the environment.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
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

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
