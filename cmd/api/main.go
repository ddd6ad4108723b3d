package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tahfeez/internal/attendance"
	"tahfeez/internal/backend"
	"tahfeez/internal/config"
	"tahfeez/internal/handler"
	"tahfeez/internal/httpmiddleware"
	"tahfeez/internal/logging"
	"tahfeez/internal/media"
	"tahfeez/internal/model"
	"tahfeez/internal/queue"
	"tahfeez/internal/telemetry"
	"tahfeez/internal/view"
	"tahfeez/internal/warmer"
)

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

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = backends.Close() }()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	prefetch := startWarming(ctx, cfg, backends, metrics, logger)

	registry := view.NewRegistry(cfg.SessionIdleTTL, time.Now, metrics, logger)
	go registry.Run(ctx, time.Minute)

	duplicates := attendance.FirstWins
	if cfg.DuplicatePolicy == "last" {
		duplicates = attendance.LastWins
	}
	views := view.NewService(view.Options{
		Catalog:      backends.Catalog,
		Attendance:   backends.Attendance,
		Recitations:  backends.Recitations,
		Media:        media.New(cfg.CloudinaryName, cfg.CloudinaryDir, cfg.DefaultAvatar),
		Registry:     registry,
		Logger:       logger,
		Metrics:      metrics,
		FetchTimeout: cfg.FetchTimeout,
		Duplicates:   duplicates,
		Prefetch:     prefetch,
	})

	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	go limiter.Run(ctx, time.Minute)

	health := make(map[string]handler.HealthCheck, len(backends.Health))
	for name, check := range backends.Health {
		health[name] = check
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.AccessLog(logger, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Location"},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())

	handler.New(handler.Config{
		Views:     views,
		Logger:    logger,
		Issuer:    cfg.JWTIssuer,
		Key:       cfg.JWTSigningKey,
		AccessTTL: cfg.AccessTTL,
		DevTokens: !cfg.Production(),
		Health:    health,
		Metrics:   promhttp.Handler(),
		Limiter:   limiter,
	}).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("backend", cfg.DataBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

// startWarming returns the prefetch hook for newly opened halaqat. Warming
// only makes sense in front of the redis roster cache; with the memory queue
// the warmer runs in this process, otherwise cmd/worker consumes the queue.
func startWarming(ctx context.Context, cfg config.App, b *backend.Backends, metrics *telemetry.Metrics, logger *zap.Logger) func(context.Context, model.ID, []model.ID) {
	if !cfg.WarmOnOpen {
		return nil
	}
	if b.Rosters == nil {
		logger.Warn("WARM_ON_OPEN ignored: roster cache disabled")
		return nil
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(64)
		w := warmer.New(mem, b.Rosters,
			warmer.WithLogger(logger.Named("warmer")),
			warmer.WithMetrics(metrics),
			warmer.WithTimeout(cfg.FetchTimeout))
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("warmer stopped", zap.Error(err))
			}
		}()
		q = mem
	} else {
		q = queue.NewRedisQueue(b.Redis.Client, queue.DefaultKey)
	}

	return warmer.Publisher(q, logger)
}
