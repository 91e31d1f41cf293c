package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/cache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/llm"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

type stubGateway struct {
	vec    []float32
	tokens int
	err    error
	calls  int
}

func (g *stubGateway) Generate(context.Context, llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return nil, errors.New("not a generation gateway")
}

func (g *stubGateway) Embed(_ context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	embeddings := make([][]float32, len(req.Input))
	for i := range req.Input {
		embeddings[i] = g.vec
	}
	return &llm.EmbedResponse{Embeddings: embeddings, Tokens: g.tokens}, nil
}

func (g *stubGateway) Configured() bool { return true }

type nopCounter struct{}

func (nopCounter) Incr(context.Context, string, int64) {}

type recordingCounter struct {
	counts map[string]int64
}

func (c *recordingCounter) Incr(_ context.Context, metric string, delta int64) {
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[metric] += delta
}

func TestEmbedCachesByContentHash(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{vec: []float32{1, 2, 3}}
	svc := NewService(gw, cache.NewMemoryStore(), nopCounter{}, "m", 3, time.Hour)

	first, err := svc.Embed(ctx, "Hello World")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, first)
	assert.Equal(t, 1, gw.calls)

	// Same text modulo case and surrounding whitespace hits the cache.
	second, err := svc.Embed(ctx, "  hello world ")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gw.calls)

	_, err = svc.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.calls)
}

func TestEmbedReportsTokenUsage(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{vec: []float32{1, 2, 3}, tokens: 7}
	counter := &recordingCounter{}
	svc := NewService(gw, cache.NewMemoryStore(), counter, "m", 3, time.Hour)

	_, err := svc.Embed(ctx, "some text worth embedding")
	require.NoError(t, err)
	assert.EqualValues(t, 7, counter.counts[MetricTokens])

	// A cache hit costs nothing.
	_, err = svc.Embed(ctx, "some text worth embedding")
	require.NoError(t, err)
	assert.EqualValues(t, 7, counter.counts[MetricTokens])
}

func TestEmbedEstimatesTokensWithoutProviderUsage(t *testing.T) {
	gw := &stubGateway{vec: []float32{1, 2, 3}}
	counter := &recordingCounter{}
	svc := NewService(gw, cache.NewMemoryStore(), counter, "m", 3, time.Hour)

	_, err := svc.Embed(context.Background(), "three word text")
	require.NoError(t, err)
	assert.Positive(t, counter.counts[MetricTokens])
}

func TestEmbedDimensionMismatchRejected(t *testing.T) {
	gw := &stubGateway{vec: []float32{1, 2}}
	svc := NewService(gw, cache.NewMemoryStore(), nopCounter{}, "m", 3, time.Hour)

	_, err := svc.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEmbedProviderFailure(t *testing.T) {
	gw := &stubGateway{err: errors.New("unreachable")}
	svc := NewService(gw, cache.NewMemoryStore(), nopCounter{}, "m", 3, time.Hour)

	_, err := svc.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
}

func TestEmbedBatchToleratesPartialFailure(t *testing.T) {
	gw := &stubGateway{err: errors.New("unreachable")}
	svc := NewService(gw, cache.NewMemoryStore(), nopCounter{}, "m", 3, time.Hour)

	vectors, failed := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Equal(t, 2, failed)
	require.Len(t, vectors, 2)
	assert.Nil(t, vectors[0])
	assert.Nil(t, vectors[1])
}
