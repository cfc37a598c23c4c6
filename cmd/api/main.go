package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/token-aggregator/internal/aggregator"
	"github.com/aman-zulfiqar/token-aggregator/internal/cache"
	"github.com/aman-zulfiqar/token-aggregator/internal/coingecko"
	"github.com/aman-zulfiqar/token-aggregator/internal/config"
	"github.com/aman-zulfiqar/token-aggregator/internal/dexscreener"
	"github.com/aman-zulfiqar/token-aggregator/internal/metadata"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/aman-zulfiqar/token-aggregator/internal/prices"
	"github.com/aman-zulfiqar/token-aggregator/internal/retry"
	"github.com/aman-zulfiqar/token-aggregator/internal/server"
	"github.com/aman-zulfiqar/token-aggregator/internal/snapshot"
	"github.com/aman-zulfiqar/token-aggregator/internal/swaps"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main wires the sources, the refresh pipeline and the HTTP server, then
// blocks until SIGINT/SIGTERM.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Price sources
	primary := coingecko.NewClient(cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, cfg.HTTPTimeout)
	fallback := dexscreener.NewClient(cfg.DexScreenerBaseURL, cfg.HTTPTimeout, logger)
	rateLimitRetry := retry.Exponential(cfg.PrimaryMaxRetries, cfg.PrimaryBaseBackoff, cfg.PrimaryMaxBackoff)

	resolver := prices.NewResolver(prices.ResolverConfig{
		Lister:   primary,
		Platform: cfg.Platform,
		Cache:    cache.NewUnitCache[map[string]string](cfg.IdentifierTTL),
		Retry:    rateLimitRetry,
		Logger:   logger,
	})
	fetcher := prices.NewFetcher(prices.FetcherConfig{
		Resolver:          resolver,
		Primary:           primary,
		Fallback:          fallback,
		FallbackChain:     cfg.FallbackChain,
		Cache:             cache.NewEntryCache[models.PriceInfo](cfg.PriceTTL),
		ChunkSize:         cfg.PrimaryChunkSize,
		ChunkDelay:        cfg.PrimaryChunkDelay,
		FallbackBatchSize: cfg.FallbackBatchSize,
		FallbackDelay:     cfg.FallbackBatchDelay,
		RateLimitRetry:    rateLimitRetry,
		Logger:            logger,
	})

	// Swap feed
	var pageSource swaps.PageSource
	switch cfg.SwapSource {
	case "clickhouse":
		ch, err := swaps.NewClickHouseSource(ctx, swaps.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Table:    cfg.ClickHouseSwapTable,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to open swap feed")
		}
		defer ch.Close()
		pageSource = ch
	default:
		pageSource = swaps.NewHTTPSource(cfg.DuneBaseURL, cfg.DuneAPIKey, cfg.DuneQueryID, cfg.HTTPTimeout)
	}
	collector := swaps.NewCollector(swaps.CollectorConfig{
		Source:   pageSource,
		PageSize: cfg.SwapPageSize,
		Retry:    retry.Fixed(cfg.SwapPageMaxRetries, cfg.SwapPageRetryDelay),
		Logger:   logger,
	})

	pipeline := snapshot.NewPipeline(snapshot.PipelineConfig{
		Metadata:  metadata.NewCSVSource(cfg.MetadataPath, logger),
		Prices:    fetcher,
		Swaps:     collector,
		Engine:    aggregator.NewEngine(cfg.FilterEmptyTokens),
		MaxEvents: cfg.MaxSwapEvents,
		Logger:    logger,
	})

	// Optional redis mirror of every successful snapshot
	var publisher snapshot.Publisher
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, snapshots will not be mirrored")
		} else {
			p, err := cache.NewRedisPublisher(rclient, 2*cfg.SnapshotTTL, logger)
			if err != nil {
				logger.WithError(err).Fatal("failed to create snapshot publisher")
			}
			publisher = p
		}
		defer rclient.Close()
	}

	controller := snapshot.NewController(snapshot.ControllerConfig{
		Builder:        pipeline,
		TTL:            cfg.SnapshotTTL,
		RefreshTimeout: cfg.RefreshTimeout,
		RefreshOnRead:  cfg.RefreshOnRead,
		Publisher:      publisher,
		Logger:         logger,
	})
	defer controller.Close()

	scheduler := snapshot.NewScheduler(snapshot.SchedulerConfig{
		Refresher: controller,
		Interval:  cfg.SnapshotTTL,
		Logger:    logger,
	})
	go func() {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("refresh scheduler stopped")
		}
	}()

	h := &server.Handlers{
		Snapshots:   controller,
		RefreshWait: cfg.RefreshWait,
		DevMode:     cfg.DevMode,
		Logger:      logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:             cfg.APIAddr,
			DevMode:          cfg.DevMode,
			APIKey:           cfg.APIKey,
			RefreshRateLimit: cfg.RefreshRateLimit,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr":        cfg.APIAddr,
		"swap_source": cfg.SwapSource,
		"ttl":         cfg.SnapshotTTL,
	}).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
