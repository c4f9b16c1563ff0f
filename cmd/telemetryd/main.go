package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crazybass81/DOT-sub003/internal/app/migrate"
	httpx "github.com/crazybass81/DOT-sub003/internal/http"
	"github.com/crazybass81/DOT-sub003/internal/publish"
	"github.com/crazybass81/DOT-sub003/internal/repository"
	"github.com/crazybass81/DOT-sub003/internal/repository/memory"
	"github.com/crazybass81/DOT-sub003/internal/repository/postgres"
	"github.com/crazybass81/DOT-sub003/internal/service/health"
	"github.com/crazybass81/DOT-sub003/internal/service/metrics"
	"github.com/crazybass81/DOT-sub003/internal/source"
	"github.com/crazybass81/DOT-sub003/internal/ws"
	"github.com/crazybass81/DOT-sub003/pkg/config"
	"github.com/crazybass81/DOT-sub003/pkg/logger"
)

func main() {
	cfg := config.LoadTelemetryConfig()
	log := logger.New("telemetry", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var historyRepo repository.HistoryRepository
	var alertRepo repository.AlertRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}

		runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		defer runner.Close()
		if err := runner.Ping(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}

		repo := postgres.New(pool)
		historyRepo = repo
		alertRepo = repo
	} else {
		log.Warn("DATABASE_URL not set, keeping history in memory")
		repo := memory.New()
		historyRepo = repo
		alertRepo = repo
	}

	hub := ws.NewHub()

	var publisher publish.Publisher = publish.NewHubPublisher(hub)
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		redisPub, err := publish.NewRedisPublisher(addr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("redis publisher unavailable", "error", err)
		} else {
			defer redisPub.Close()
			publisher = publish.Fanout{publisher, redisPub}
		}
	}

	collectorCfg := metrics.Config{
		Enabled:         cfg.CollectorEnabled,
		SamplingRate:    cfg.SamplingRate,
		BufferCapacity:  cfg.BufferCapacity,
		BufferRetention: cfg.BufferRetention,
		BufferCleanup:   cfg.BufferCleanup,
		Thresholds: metrics.Thresholds{
			ResponseTimeMS:        cfg.ResponseTimeThresholdMS,
			ErrorRate:             cfg.ErrorRateThreshold,
			MaxConcurrentRequests: cfg.MaxConcurrentRequests,
			MaxRequestsPerSecond:  cfg.MaxRequestsPerSecond,
		},
		Alerts: metrics.AlertConfig{
			Enabled:     cfg.AlertsEnabled,
			MinInterval: cfg.MinAlertInterval,
			MaxActive:   cfg.MaxActiveAlerts,
			Channels:    splitChannels(cfg.AlertChannels),
		},
		BatchWindow:        cfg.BatchWindow,
		TimeSeriesInterval: cfg.TimeSeriesInterval,
	}
	collector, err := metrics.New(collectorCfg, publisher, alertRepo, log)
	if err != nil {
		log.Error("failed to configure collector", "error", err)
		os.Exit(1)
	}
	collector.Start()
	defer collector.Stop()

	healthCfg := health.DefaultConfig()
	healthCfg.MaxConnections = cfg.MaxConnections
	healthCfg.ConnectionSpikeShare = cfg.ConnectionSpikeShare
	healthCfg.ResponseTimeMS = cfg.ResponseTimeThresholdMS
	healthCfg.ErrorRate = cfg.ErrorRateThreshold
	healthCfg.MaxRequestsPerSecond = cfg.MaxRequestsPerSecond
	healthCfg.CPUPercent = cfg.CPUThresholdPercent
	healthCfg.MemoryPercent = cfg.MemThresholdPercent
	healthCfg.GoroutineCeiling = cfg.GoroutineCeiling
	healthCfg.TrendEpsilon = cfg.TrendEpsilon
	healthCfg.SnapshotEvery = cfg.SnapshotInterval
	healthCfg.CleanupEvery = cfg.HistoryCleanupEvery
	healthCfg.RetentionDays = cfg.HistoryRetentionDays

	aggregator, err := health.New(
		healthCfg,
		source.NewHubConnections(hub, cfg.MaxConnections),
		collector,
		source.RuntimeResources{},
		historyRepo,
		log,
	)
	if err != nil {
		log.Error("failed to configure health aggregator", "error", err)
		os.Exit(1)
	}
	go aggregator.Run(ctx)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(httpx.RedisRateLimiterConfig{
			Addr:      addr,
			Password:  cfg.RateLimitRedisPass,
			DB:        cfg.RateLimitRedisDB,
			KeyPrefix: cfg.RateLimitKeyPrefix,
			OpTimeout: cfg.RateLimitOpTimeout,
		}, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, collector, aggregator, alertRepo, hub, limiter)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("telemetry server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("telemetry server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func splitChannels(raw string) []string {
	parts := strings.Split(raw, ",")
	channels := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			channels = append(channels, trimmed)
		}
	}
	return channels
}
