package usage

import (
	"context"
	"log/slog"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/cache"
)

// Metric names reported outward. Quota enforcement against these numbers
// belongs to the billing collaborator, not this engine.
const (
	MetricDocumentsIngested    = "documents_ingested"
	MetricChunksIngested       = "chunks_ingested"
	MetricQueriesServed        = "queries_served"
	MetricEmbeddingTokens      = "embedding_tokens"
	MetricGenerationTokens     = "generation_tokens"
	MetricAnswerCacheHits      = "answer_cache_hits"
	MetricAnswerCacheMisses    = "answer_cache_misses"
	MetricEmbeddingCacheHits   = "embedding_cache_hits"
	MetricEmbeddingCacheMisses = "embedding_cache_misses"
	MetricFeedbackRecorded     = "feedback_recorded"
)

var allMetrics = []string{
	MetricDocumentsIngested,
	MetricChunksIngested,
	MetricQueriesServed,
	MetricEmbeddingTokens,
	MetricGenerationTokens,
	MetricAnswerCacheHits,
	MetricAnswerCacheMisses,
	MetricEmbeddingCacheHits,
	MetricEmbeddingCacheMisses,
	MetricFeedbackRecorded,
}

// Reporter accumulates usage counters for the external operations
// dashboard. Counter writes are fire-and-forget; a broken counter store
// never fails a request.
type Reporter struct {
	store cache.Store
}

func NewReporter(store cache.Store) *Reporter {
	return &Reporter{store: store}
}

func (r *Reporter) Incr(ctx context.Context, metric string, delta int64) {
	if delta == 0 {
		return
	}
	if _, err := r.store.IncrBy(ctx, metric, delta); err != nil {
		slog.Warn("usage counter write failed", "metric", metric, "error", err)
	}
}

func (r *Reporter) Snapshot(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(allMetrics))
	for _, m := range allMetrics {
		v, err := r.store.Counter(ctx, m)
		if err != nil {
			return nil, err
		}
		out[m] = v
	}
	return out, nil
}
