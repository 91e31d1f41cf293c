package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/cache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/llm"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/pkg/tokenizer"
)

// Counter receives cache hit/miss increments. Satisfied by usage.Reporter.
type Counter interface {
	Incr(ctx context.Context, metric string, delta int64)
}

const (
	MetricCacheHits   = "embedding_cache_hits"
	MetricCacheMisses = "embedding_cache_misses"
	MetricTokens      = "embedding_tokens"
)

// Service resolves text to embedding vectors, memoizing results by content
// hash. The hash is tenant-agnostic: embeddings of identical text are
// identical regardless of who asked. Tenancy is enforced where vectors are
// indexed, not here.
type Service struct {
	gateway  llm.Gateway
	cache    cache.Store
	counters Counter
	model    string
	dim      int
	ttl      time.Duration
}

func NewService(gw llm.Gateway, store cache.Store, counters Counter, model string, dim int, ttl time.Duration) *Service {
	return &Service{
		gateway:  gw,
		cache:    store,
		counters: counters,
		model:    model,
		dim:      dim,
		ttl:      ttl,
	}
}

// Key returns the cache key for text: SHA-256 over the trimmed,
// case-folded content.
func Key(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Embed returns the vector for text, from cache when possible. Provider
// failures after the gateway's bounded retries surface as
// ErrEmbeddingUnavailable.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)

	var cached []float32
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		s.counters.Incr(ctx, MetricCacheHits, 1)
		return cached, nil
	} else if err != nil {
		slog.Warn("embedding cache read failed", "error", err)
	}
	s.counters.Incr(ctx, MetricCacheMisses, 1)

	resp, err := s.gateway.Embed(ctx, llm.EmbedRequest{Model: s.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: empty response", models.ErrEmbeddingUnavailable)
	}

	vec := resp.Embeddings[0]
	if s.dim > 0 && len(vec) != s.dim {
		return nil, fmt.Errorf("%w: embedding dimension %d, want %d", models.ErrValidation, len(vec), s.dim)
	}

	// Providers without usage metadata report zero; estimate so the
	// token counter stays meaningful across providers.
	tokens := resp.Tokens
	if tokens <= 0 {
		tokens = tokenizer.Estimate(text)
	}
	s.counters.Incr(ctx, MetricTokens, int64(tokens))

	if err := s.cache.Set(ctx, key, vec, s.ttl); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

// EmbedBatch embeds every text, tolerating per-item failure: the returned
// slice has a nil vector at each failed index so the caller can mark those
// chunks and keep going.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int) {
	vectors := make([][]float32, len(texts))
	failed := 0
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			slog.Warn("chunk embedding failed", "index", i, "error", err)
			failed++
			continue
		}
		vectors[i] = vec
	}
	return vectors, failed
}

type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int64 `json:"entries"`
}

func (s *Service) ClearCache(ctx context.Context) (int64, error) {
	return s.cache.Clear(ctx)
}

func (s *Service) CacheEntries(ctx context.Context) (int64, error) {
	return s.cache.Len(ctx)
}
