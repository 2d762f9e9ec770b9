package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"treksafer/internal/aqi"
	"treksafer/internal/avalanche"
	"treksafer/internal/config"
	"treksafer/internal/fires"
	"treksafer/internal/geo"
	"treksafer/internal/httpcache"
	"treksafer/internal/router"
	"treksafer/internal/timezone"
	"treksafer/internal/transport"
)

const drainTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting treksafer", "env", cfg.Env)

	index := geo.NewIndex(cfg.Boundaries, logger)
	cache := httpcache.New(cfg.CacheDir, time.Duration(cfg.RequestCacheTimeout)*time.Second, logger)

	var air aqi.Service
	if cfg.IncludeAQI {
		tz, err := timezone.NewService()
		if err != nil {
			logger.Warn("timezone service unavailable, AQI uses fallback timezone", "error", err)
		}
		air = aqi.NewService(cache, tz, logger)
	}

	svc := router.NewService(
		cfg,
		fires.NewFinder(cfg, index, cache, logger),
		avalanche.NewService(cfg, index, cache, logger),
		air,
		logger,
	)

	transports, err := transport.Build(cfg, svc, logger)
	if err != nil {
		logger.Error("failed to build transports", "error", err)
		log.Fatal(err)
	}
	if len(transports) == 0 {
		log.Fatal("no transports enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drain := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), drainTimeout)
	}
	if err := transport.Serve(ctx, transports, drain, logger); err != nil {
		logger.Error("transport failed", "error", err)
		log.Fatal(err)
	}
	logger.Info("shutdown complete")
}
