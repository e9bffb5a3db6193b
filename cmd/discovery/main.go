package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"salon-discovery/internal/adapter/directory"
	"salon-discovery/internal/adapter/handoff"
	httpadapter "salon-discovery/internal/adapter/http"
	"salon-discovery/internal/adapter/ipapi"
	kafkaadapter "salon-discovery/internal/adapter/kafka"
	"salon-discovery/internal/adapter/nominatim"
	"salon-discovery/internal/config"
	"salon-discovery/internal/discovery"
	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
	"salon-discovery/internal/ranking"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	dir := directory.NewClient(cfg.DirectoryBaseURL, cfg.DirectoryTimeout, metrics, logger)

	// IP positioning (feature-flagged via LOCATE_ENABLED).
	var locator domain.Locator
	if cfg.LocateEnabled {
		cached, err := ipapi.NewCachedLocator(ipapi.NewClient(cfg.LocateBaseURL, metrics, logger), cfg.LocateCacheSize, metrics)
		if err != nil {
			logger.Error("failed to build position cache", "error", err)
			os.Exit(1)
		}
		locator = cached
		logger.Info("ip positioning enabled", "base_url", cfg.LocateBaseURL, "cache_size", cfg.LocateCacheSize)
	} else {
		logger.Info("ip positioning disabled")
	}

	// Reverse geocoding (feature-flagged via GEOCODE_ENABLED).
	var resolver domain.CityResolver
	if cfg.GeocodeEnabled {
		client, err := nominatim.NewClient(cfg.GeocodeBaseURL, cfg.GeocodeTimeout, cfg.GeocodeCacheSize, metrics, logger)
		if err != nil {
			logger.Error("failed to build reverse geocoder", "error", err)
			os.Exit(1)
		}
		resolver = client
		metrics.GeocodeEnabled.Set(1)
		logger.Info("reverse geocoding enabled", "base_url", cfg.GeocodeBaseURL, "cache_size", cfg.GeocodeCacheSize)
	} else {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("reverse geocoding disabled")
	}

	// Style handoff store: Redis when configured, in-process otherwise.
	var store domain.HandoffStore
	var redisStore *handoff.RedisStore
	if cfg.RedisAddr != "" {
		redisStore = handoff.NewRedisStore(cfg.RedisAddr, cfg.HandoffKeyPrefix)
		store = redisStore
		logger.Info("redis handoff store enabled", "addr", cfg.RedisAddr, "prefix", cfg.HandoffKeyPrefix)
	} else {
		store = handoff.NewMemoryStore()
		logger.Info("in-memory handoff store enabled")
	}

	// Selection publishing (disabled without brokers).
	var publisher domain.SelectionPublisher
	var writer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg, metrics, logger)
		publisher = writer
		logger.Info("selection publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaHandoffTopic)
	} else {
		logger.Info("selection publishing disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := discovery.NewRegistry(ctx, discovery.Deps{
		Directory: dir,
		Locator:   locator,
		Resolver:  resolver,
		Store:     store,
		Publisher: publisher,
		Ranker:    ranking.New(cfg.Locale),
		RadiusKm:  cfg.NearbyRadiusKm,
		FixDefaults: domain.FixRequest{
			HighAccuracy: cfg.LocateHighAccuracy,
			Timeout:      cfg.LocateTimeout,
			MaxCacheAge:  cfg.LocateMaxCacheAge,
		},
		MaxIdle: cfg.SessionMaxIdle,
		Logger:  logger,
		Metrics: metrics,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, registry, dir, registry, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Background session eviction and readiness warmup.
	go registry.Sweep(ctx)
	go registry.Warm(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
