// Package main is the entrypoint for the articleforge API server.
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

	"github.com/vipplay/articleforge/internal/api"
	"github.com/vipplay/articleforge/internal/api/handler"
	mw "github.com/vipplay/articleforge/internal/api/middleware"
	"github.com/vipplay/articleforge/internal/api/response"
	"github.com/vipplay/articleforge/internal/cache"
	"github.com/vipplay/articleforge/internal/config"
	"github.com/vipplay/articleforge/internal/generate"
	"github.com/vipplay/articleforge/internal/limiter"
	"github.com/vipplay/articleforge/internal/orchestrate"
	"github.com/vipplay/articleforge/internal/queue"
	"github.com/vipplay/articleforge/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "provider", cfg.Generation.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create the durable queue. An empty URL is not an error: dispatch
	// falls back to direct in-process calls.
	var jobQueue queue.Queue
	if cfg.Queue.URL != "" {
		rq, err := queue.NewRedisQueue(ctx, cfg.Queue.URL, cfg.Queue.Name)
		if err != nil {
			return fmt.Errorf("create job queue: %w", err)
		}
		defer rq.Close()
		jobQueue = rq
		slog.Info("job queue connected", "queue", cfg.Queue.Name)
	} else {
		jobQueue = queue.NewDisabled()
		slog.Info("job queue not configured, using direct dispatch")
	}

	// 6. Create the generation backend
	generator, err := generate.NewGenerator(cfg.Generation)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	slog.Info("generation backend initialized", "provider", generator.Name())

	// 7. Create store and orchestration service
	pgStore := store.NewPostgresStore(pool)
	lim := limiter.New(cfg.Generation.MaxConcurrent)
	svc := orchestrate.NewService(pgStore, redisCache, jobQueue, lim, generator, cfg.Generation)

	// 8. Start background workers: queue pollers and the stuck-job sweeper
	runner := orchestrate.NewRunner(svc, jobQueue, cfg.Generation.MaxConcurrent, cfg.Queue.PollInterval)
	runner.Start(ctx)

	sweeper := orchestrate.NewSweeper(svc, cfg.Generation.SweepInterval, cfg.Generation.SweepMargin)
	go sweeper.Start(ctx)

	// 9. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       healthHandler(pgStore, redisCache),
		SystemStatusHandler: handler.NewSystemStatusHandler(lim, jobQueue.IsConfigured()),

		GenerateHandler:     handler.NewGenerateHandler(svc),
		BulkGenerateHandler: handler.NewBulkGenerateHandler(svc),
		GetJobHandler:       handler.NewGetJobHandler(svc),
		JobStatusHandler:    handler.NewJobStatusHandler(svc),
		ListJobsHandler:     handler.NewListJobsHandler(svc),
		CancelJobHandler:    handler.NewCancelJobHandler(svc),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 10. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout. The signal context is already cancelled,
	// so the pollers and sweeper are winding down; wait for pollers to finish
	// their in-flight jobs before closing the queue connection.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	runner.Wait()

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
