package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/app"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/config"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/database"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/queue"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/queue/workers"
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

	// Unlike the API server, the worker is pointless without durable
	// storage: it processes documents that another process stored.
	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database required for worker", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("redis required for worker", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	services := app.Build(cfg, db, rdb)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	documentWorker := workers.NewDocumentWorker(services.Engine)
	mux.HandleFunc(queue.TypeDocumentProcess, documentWorker.ProcessTask)
	mux.HandleFunc(queue.TypeDocumentReprocess, documentWorker.ProcessTask)

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
