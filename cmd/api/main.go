package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/api"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/app"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/config"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/database"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/queue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Database is optional: without one the engine runs on in-memory
	// stores, which loses durability but keeps every endpoint working.
	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Warn("database unavailable, using in-memory stores", "error", err)
		db = nil
	} else {
		defer db.Close()
		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var queueClient *queue.Client
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, using in-memory caches", "error", err)
		rdb.Close()
		rdb = nil
	} else {
		defer rdb.Close()
		// The worker reads documents from Postgres, so enqueueing from
		// an in-memory store would strand them as pending.
		if db != nil {
			queueClient = queue.NewClient(cfg.Redis)
			defer queueClient.Close()
		} else {
			slog.Warn("async ingestion disabled without a database")
		}
	}

	services := app.Build(cfg, db, rdb)
	if !services.Gateway.Configured() {
		slog.Warn("no LLM provider configured, serving evidence-only answers")
	}

	handler := api.NewRouter(api.Deps{
		Engine:     services.Engine,
		Feedback:   services.Feedback,
		Answers:    services.Answers,
		Embeddings: services.Embeddings,
		Usage:      services.Usage,
		Queue:      queueClient,
		DB:         db,
		Redis:      rdb,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
