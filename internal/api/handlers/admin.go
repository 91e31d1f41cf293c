package handlers

import (
	"context"
	"net/http"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/answercache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/embedding"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/usage"
)

// AdminHandler exposes the operational surface consumed by the external
// dashboard: cache statistics, cache clearing, usage counters.
type AdminHandler struct {
	answers    *answercache.Cache
	embeddings *embedding.Service
	usage      *usage.Reporter
}

func NewAdminHandler(answers *answercache.Cache, embeddings *embedding.Service, reporter *usage.Reporter) *AdminHandler {
	return &AdminHandler{answers: answers, embeddings: embeddings, usage: reporter}
}

func (h *AdminHandler) CacheClear(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.answers.Clear(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": cleared})
}

func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	entries, err := h.answers.Entries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	hits, misses := h.counters(r.Context(), usage.MetricAnswerCacheHits, usage.MetricAnswerCacheMisses)
	writeJSON(w, http.StatusOK, cacheStats(entries, hits, misses))
}

func (h *AdminHandler) EmbeddingCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.embeddings.ClearCache(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": cleared})
}

func (h *AdminHandler) EmbeddingStats(w http.ResponseWriter, r *http.Request) {
	entries, err := h.embeddings.CacheEntries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	hits, misses := h.counters(r.Context(), usage.MetricEmbeddingCacheHits, usage.MetricEmbeddingCacheMisses)
	writeJSON(w, http.StatusOK, cacheStats(entries, hits, misses))
}

func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.usage.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *AdminHandler) counters(ctx context.Context, hitMetric, missMetric string) (int64, int64) {
	snapshot, err := h.usage.Snapshot(ctx)
	if err != nil {
		return 0, 0
	}
	return snapshot[hitMetric], snapshot[missMetric]
}

func cacheStats(entries, hits, misses int64) map[string]interface{} {
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	return map[string]interface{}{
		"entries":  entries,
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	}
}
