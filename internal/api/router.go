package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/answercache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/api/handlers"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/api/middleware"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/embedding"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/feedback"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/queue"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/rag"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/usage"
)

// Deps carries the constructed services into the router. Construction
// happens in main so the Postgres/Redis and in-memory wirings share this
// code path.
type Deps struct {
	Engine     *rag.Engine
	Feedback   *feedback.Service
	Answers    *answercache.Cache
	Embeddings *embedding.Service
	Usage      *usage.Reporter
	Queue      *queue.Client // nil disables async ingestion
	DB         *pgxpool.Pool // nil when running on the in-memory stores
	Redis      *redis.Client // nil when running on the in-memory stores
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(deps.DB, deps.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	docH := handlers.NewDocumentHandler(deps.Engine, deps.Queue)
	queryH := handlers.NewQueryHandler(deps.Engine)
	feedbackH := handlers.NewFeedbackHandler(deps.Feedback)
	adminH := handlers.NewAdminHandler(deps.Answers, deps.Embeddings, deps.Usage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Ingest)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Post("/{id}/reprocess", docH.Reprocess)
			r.Delete("/{id}", docH.Delete)
		})

		r.Post("/query", queryH.Query)

		r.Route("/feedback", func(r chi.Router) {
			r.Post("/", feedbackH.Record)
			r.Get("/stats", feedbackH.Stats)
			r.Get("/recent", feedbackH.Recent)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/cache/clear", adminH.CacheClear)
			r.Get("/cache/stats", adminH.CacheStats)
			r.Post("/embeddings/clear", adminH.EmbeddingCacheClear)
			r.Get("/embeddings/stats", adminH.EmbeddingStats)
			r.Get("/usage", adminH.Usage)
		})
	})

	return r
}
