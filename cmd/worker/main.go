package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tahfeez/internal/backend"
	"tahfeez/internal/config"
	"tahfeez/internal/logging"
	"tahfeez/internal/queue"
	"tahfeez/internal/telemetry"
	"tahfeez/internal/warmer"
)

// Worker consumes roster warm requests from redis and fills the shared
// roster cache.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.QueueBackend != "redis" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue runs inside the api")
	}
	// The worker always writes to the roster cache.
	cfg.RosterCache = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("backend init failed", zap.Error(err))
	}
	defer func() { _ = backends.Close() }()

	if !backends.Redis.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetrics,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server failed", zap.Error(err))
		}
	}()

	q := queue.NewRedisQueue(backends.Redis.Client, queue.DefaultKey)
	w := warmer.New(q, backends.Rosters,
		warmer.WithLogger(logger),
		warmer.WithMetrics(metrics),
		warmer.WithTimeout(cfg.FetchTimeout))
	if err := w.Run(ctx); err != nil {
		logger.Error("warmer failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}
