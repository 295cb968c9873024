package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/chain/evm/rpc"
	"github.com/devaanshsinha/cogniflow/internal/chain/ratelimit"
	"github.com/devaanshsinha/cogniflow/internal/config"
	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/devaanshsinha/cogniflow/internal/embedding"
	"github.com/devaanshsinha/cogniflow/internal/metrics"
	"github.com/devaanshsinha/cogniflow/internal/pipeline/enrich"
	"github.com/devaanshsinha/cogniflow/internal/pipeline/syncer"
	"github.com/devaanshsinha/cogniflow/internal/pricing"
	"github.com/devaanshsinha/cogniflow/internal/store"
	"github.com/devaanshsinha/cogniflow/internal/store/postgres"
	redispkg "github.com/devaanshsinha/cogniflow/internal/store/redis"
	"github.com/devaanshsinha/cogniflow/internal/tracing"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	chain := model.Chain(cfg.Ledger.Chain)
	logger.Info("starting cogniflow",
		"chain", chain,
		"sync_interval", cfg.Sync.Interval,
		"price_interval", cfg.Pricing.Interval,
		"embedding_interval", cfg.Embedding.Interval,
		"watched_wallets", len(cfg.Sync.Wallets),
		"wallets_file", cfg.Sync.WalletsFile,
	)

	shutdownTracing, err := tracing.Init(context.Background(), "cogniflow", cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	var quoteCache *redispkg.QuoteCache
	if cfg.Redis.URL != "" {
		quoteCache, err = redispkg.NewQuoteCache(cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer quoteCache.Close()
		logger.Info("quote cache enabled")
	}

	walletRepo := postgres.NewWalletRepo(db)
	transferRepo := postgres.NewTransferRepo(db)
	blockRepo := postgres.NewBlockRepo(db)
	priceRepo := postgres.NewPriceRepo(db)
	embeddingRepo := postgres.NewEmbeddingRepo(db)

	if err := seedWallets(context.Background(), walletRepo, chain, cfg.Sync); err != nil {
		logger.Error("failed to seed wallets", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(cfg.Ledger.RateRPS, cfg.Ledger.RateBurst, chain.String())
	ledger := rpc.NewClient(cfg.Ledger.RPCURL, chain.String(), limiter, logger, rpc.Options{
		MaxAttempts: cfg.Ledger.MaxAttempts,
		BackoffBase: cfg.Ledger.BackoffBase,
		BackoffMax:  cfg.Ledger.BackoffMax,
		MaxPages:    cfg.Ledger.MaxPages,
		PageSize:    cfg.Ledger.PageSize,
	})

	blockResolver, err := syncer.NewBlockResolver(ledger, blockRepo, 0, logger)
	if err != nil {
		logger.Error("failed to create block resolver", "error", err)
		os.Exit(1)
	}

	engine := syncer.New(ledger, db, walletRepo, transferRepo, blockResolver, syncer.Options{
		LookbackBlocks:     cfg.Sync.LookbackBlocks,
		MaxBlockSpan:       cfg.Sync.MaxBlockSpan,
		BatchSize:          cfg.Sync.BatchSize,
		SkipIfSyncedWithin: cfg.Sync.SkipIfSyncedWithin,
	}, logger)
	pool := syncer.NewPool(engine.SyncWallet, cfg.Sync.WalletWorkers, logger)

	priceClient, err := pricing.NewClient(pricing.Config{
		BaseURL: cfg.Pricing.BaseURL,
		APIKey:  cfg.Pricing.APIKey,
		ProTier: cfg.Pricing.ProTier,
	}, logger)
	if err != nil {
		logger.Error("failed to create price client", "error", err)
		os.Exit(1)
	}
	var cache enrich.QuoteCache
	if quoteCache != nil {
		cache = quoteCache
	}
	priceJob := enrich.NewPriceJob(priceClient, transferRepo, priceRepo, cache, logger)

	var embeddingJob *enrich.EmbeddingJob
	if cfg.Embedding.APIKey != "" {
		embeddingClient, err := embedding.NewClient(embedding.Config{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
		}, logger)
		if err != nil {
			logger.Error("failed to create embedding client", "error", err)
			os.Exit(1)
		}
		embeddingJob = enrich.NewEmbeddingJob(embeddingClient, transferRepo, embeddingRepo, enrich.EmbeddingJobOptions{
			Dimension:  cfg.Embedding.Dimension,
			BatchSize:  cfg.Embedding.BatchSize,
			MaxRecords: cfg.Embedding.MaxRecords,
		}, logger)
	} else {
		logger.Warn("EMBEDDING_API_KEY not set; embedding job disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runMetricsServer(gCtx, cfg.Server.MetricsPort, logger)
	})

	g.Go(func() error {
		runDBPoolStats(gCtx, db)
		return nil
	})

	g.Go(func() error {
		runSyncLoop(gCtx, pool, walletRepo, chain, cfg.Sync.Interval, logger)
		return nil
	})

	g.Go(func() error {
		runEnrichLoop(gCtx, "price", cfg.Pricing.Interval, logger, func(loopCtx context.Context) error {
			_, err := priceJob.Run(loopCtx, chain)
			return err
		})
		return nil
	})

	if embeddingJob != nil {
		g.Go(func() error {
			runEnrichLoop(gCtx, "embedding", cfg.Embedding.Interval, logger, func(loopCtx context.Context) error {
				_, err := embeddingJob.Run(loopCtx, chain)
				return err
			})
			return nil
		})
	}

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("cogniflow exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("cogniflow shut down gracefully")
}

// seedWallets upserts operator-supplied wallets from the environment list
// and the optional YAML file. Existing rows keep their cursors.
func seedWallets(ctx context.Context, wallets store.WalletRepository, chain model.Chain, cfg config.SyncConfig) error {
	for _, addr := range cfg.Wallets {
		if err := wallets.Upsert(ctx, &model.Wallet{
			ID:      uuid.New(),
			Chain:   chain,
			Address: addr,
		}); err != nil {
			return fmt.Errorf("seed wallet %s: %w", addr, err)
		}
	}

	if cfg.WalletsFile == "" {
		return nil
	}
	seeds, err := config.LoadWalletSeeds(cfg.WalletsFile)
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		w := &model.Wallet{
			ID:      uuid.New(),
			Chain:   chain,
			Address: seed.Address,
		}
		if seed.Label != "" {
			label := seed.Label
			w.Label = &label
		}
		if err := wallets.Upsert(ctx, w); err != nil {
			return fmt.Errorf("seed wallet %s: %w", seed.Address, err)
		}
	}
	return nil
}

func runSyncLoop(ctx context.Context, pool *syncer.Pool, wallets store.WalletRepository, chain model.Chain, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		active, err := wallets.GetActive(ctx, chain)
		if err != nil {
			logger.Error("failed to list wallets", "error", err)
		} else if len(active) > 0 {
			summary := pool.Run(ctx, active)
			logger.Info("sync cycle finished",
				"synced", summary.Synced,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
				"processed", summary.Processed,
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runEnrichLoop(ctx context.Context, name string, interval time.Duration, logger *slog.Logger, run func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("enrichment run failed", "job", name, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runDBPoolStats exports connection pool stats on a fixed cadence so
// pool exhaustion shows up on the dashboard before queries start timing out.
func runDBPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		stats := db.Stats()
		metrics.DBPoolOpen.Set(float64(stats.OpenConnections))
		metrics.DBPoolInUse.Set(float64(stats.InUse))
		metrics.DBPoolIdle.Set(float64(stats.Idle))
		metrics.DBPoolWaitCount.Set(float64(stats.WaitCount))
		metrics.DBPoolWaitDurationSeconds.Set(stats.WaitDuration.Seconds())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runMetricsServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
