// Package main runs the unified service: the transfer poller, the
// read-side JSON API, and the Prometheus metrics endpoint together.
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

	"golang.org/x/sync/errgroup"

	"github.com/zhenek73/vaultatrees/internal/httpapi"
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
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":3000"), "API server listen address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *hyperionURL == "" {
		logger.Fatal("--hyperion-url is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

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
		}
	}()

	var (
		decorationStore storage.DecorationStore
		stateStore      storage.ParserStateStore
		eventStore      storage.DonationEventStore
	)

	if *useMemory {
		logger.Println("Using in-memory storage")
		decorationStore = memory.NewDecorationStore()
		stateStore = memory.NewParserStateStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run PostgreSQL migrations: %v", err)
		}
		logger.Println("PostgreSQL migrations applied")

		decorationStore = pgstore.NewDecorationStore(pool)
		stateStore = pgstore.NewParserStateStore(pool)
	}

	if *clickhouseDSN != "" {
		conn, err := clickhouse.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatalf("Failed to run ClickHouse migrations: %v", err)
		}
		logger.Println("ClickHouse migrations applied")

		eventStore = clickhouse.NewDonationEventStore(conn)
	}

	client := hyperion.NewClient(*hyperionURL)
	fetcher, err := ingestion.NewHyperionFetcher(ingestion.HyperionFetcherOptions{
		Client:    client,
		Account:   *account,
		Contracts: splitList(*contracts),
		Limit:     *fetchLimit,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create fetcher: %v", err)
	}

	cache := ingestion.NewTxCache(*cacheWarm)
	writer, err := ingestion.NewWriter(ingestion.WriterOptions{
		Store:  decorationStore,
		Events: eventStore,
		Cache:  cache,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create writer: %v", err)
	}

	poller, err := ingestion.NewPoller(ingestion.PollerOptions{
		Source:   fetcher,
		Writer:   writer,
		Store:    decorationStore,
		State:    stateStore,
		Cache:    cache,
		Denylist: splitList(*denylist),
		Interval: *pollInterval,
		WarmSize: *cacheWarm,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create poller: %v", err)
	}

	api, err := httpapi.NewServer(httpapi.ServerOptions{
		Store:  decorationStore,
		Events: eventStore,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create API server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		srv := &http.Server{Addr: *listenAddr, Handler: api.Handler()}
		go func() {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Printf("Starting API server on %s", *listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if *metricsAddr != "" {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			go func() {
				<-gctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Println("Server stopped")
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
