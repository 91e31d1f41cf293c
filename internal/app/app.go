package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/answercache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/cache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/config"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/embedding"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/feedback"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/llm"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/rag"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/usage"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/pkg/chunker"
)

// App wires the engine and its collaborators once, for both the API
// server and the queue worker. With a database it runs on Postgres and
// Redis; without one it falls back to the in-memory stores, which keeps
// local development and tests dependency-free.
type App struct {
	Engine     *rag.Engine
	Feedback   *feedback.Service
	Answers    *answercache.Cache
	Embeddings *embedding.Service
	Usage      *usage.Reporter
	Gateway    llm.Gateway
}

func Build(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client) *App {
	newStore := func(namespace string) cache.Store {
		if rdb != nil {
			return cache.NewRedisStore(rdb, namespace)
		}
		return cache.NewMemoryStore()
	}

	reporter := usage.NewReporter(newStore("usage"))
	gateway := llm.NewGateway(cfg.LLM)
	embeddings := embedding.NewService(
		gateway, newStore("embed"), reporter,
		cfg.LLM.EmbedModel, cfg.Engine.EmbeddingDim, cfg.Engine.EmbedCacheTTL,
	)
	answers := answercache.New(newStore("answers"), cfg.Engine.AnswerTTL)

	var (
		docStore      vectorstore.Store
		feedbackStore feedback.Store
	)
	if db != nil {
		docStore = vectorstore.NewPgStore(db)
		feedbackStore = feedback.NewPgStore(db)
	} else {
		fbMem := feedback.NewMemoryStore()
		feedbackStore = fbMem
		docStore = vectorstore.NewMemoryStore(fbMem)
	}

	retriever := rag.NewHybridRetriever(docStore, embeddings, rag.MergeOptions{
		VectorWeight:      cfg.Engine.VectorWeight,
		LexicalWeight:     cfg.Engine.LexicalWeight,
		CrossModalPenalty: cfg.Engine.CrossModalPenalty,
	})

	engine := rag.NewEngine(rag.EngineDeps{
		Store:       docStore,
		Retriever:   retriever,
		Synthesizer: rag.NewSynthesizer(gateway, cfg.LLM.GenerateModel, 2048),
		Reranker:    rag.NewLLMReranker(gateway, cfg.LLM.GenerateModel),
		Answers:     answers,
		Embeddings:  embeddings,
		Usage:       reporter,
		ChunkOpts: chunker.Options{
			ChunkSize: cfg.Engine.ChunkSize,
			Overlap:   cfg.Engine.ChunkOverlap,
		},
		Defaults: rag.Defaults{
			TopK:      cfg.Engine.DefaultTopK,
			Threshold: cfg.Engine.DefaultThreshold,
		},
	})

	return &App{
		Engine:     engine,
		Feedback:   feedback.NewService(feedbackStore, reporter),
		Answers:    answers,
		Embeddings: embeddings,
		Usage:      reporter,
		Gateway:    gateway,
	}
}
