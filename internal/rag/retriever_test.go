package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
)

type stubSearcher struct {
	vector  []vectorstore.SearchResult
	lexical []vectorstore.SearchResult
}

func (s *stubSearcher) VectorSearch(_ context.Context, _ vectorstore.Scope, _ []float32, limit int) ([]vectorstore.SearchResult, error) {
	if len(s.vector) > limit {
		return s.vector[:limit], nil
	}
	return s.vector, nil
}

func (s *stubSearcher) LexicalSearch(_ context.Context, _ vectorstore.Scope, _ string, limit int) ([]vectorstore.SearchResult, error) {
	if len(s.lexical) > limit {
		return s.lexical[:limit], nil
	}
	return s.lexical, nil
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

func result(id uuid.UUID, ordinal int, score float64) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ChunkID:    id,
		DocumentID: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Ordinal:    ordinal,
		Content:    "chunk",
		Score:      score,
	}
}

func TestHybridRetrieverBlendsBothModalities(t *testing.T) {
	idA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	idB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	idC := uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	searcher := &stubSearcher{
		vector: []vectorstore.SearchResult{
			result(idA, 0, 1.0),
			result(idB, 1, 0.8),
		},
		lexical: []vectorstore.SearchResult{
			result(idC, 2, 0.9),
			result(idA, 0, 0.5),
		},
	}
	r := NewHybridRetriever(searcher, &stubEmbedder{vec: []float32{1, 0}}, DefaultMergeOptions())

	results, degraded, err := r.Retrieve(context.Background(), vectorstore.Scope{TenantSlug: "acme"}, "warranty", 5, 0)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, results, 3)

	// A in both: 0.7*1.0 + 0.3*0.5 = 0.85
	// C lexical only: 0.9 * 0.9 = 0.81
	// B vector only:  0.8 * 0.9 = 0.72
	assert.Equal(t, idA, results[0].ChunkID)
	assert.InDelta(t, 0.85, results[0].Score, 1e-9)
	assert.Equal(t, idC, results[1].ChunkID)
	assert.InDelta(t, 0.81, results[1].Score, 1e-9)
	assert.Equal(t, idB, results[2].ChunkID)
	assert.InDelta(t, 0.72, results[2].Score, 1e-9)
}

func TestHybridRetrieverThresholdAndTopK(t *testing.T) {
	idA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	idB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	idC := uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	searcher := &stubSearcher{
		vector: []vectorstore.SearchResult{
			result(idA, 0, 1.0),
			result(idB, 1, 0.9),
			result(idC, 2, 0.2),
		},
	}
	r := NewHybridRetriever(searcher, &stubEmbedder{vec: []float32{1, 0}}, DefaultMergeOptions())
	scope := vectorstore.Scope{TenantSlug: "acme"}

	results, _, err := r.Retrieve(context.Background(), scope, "q", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, idA, results[0].ChunkID)
	assert.Equal(t, idB, results[1].ChunkID)

	results, _, err = r.Retrieve(context.Background(), scope, "q", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idA, results[0].ChunkID)
}

func TestHybridRetrieverTieBreaksOnOrdinal(t *testing.T) {
	idLate := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idEarly := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	searcher := &stubSearcher{
		vector: []vectorstore.SearchResult{
			result(idLate, 7, 0.9),
			result(idEarly, 2, 0.9),
		},
	}
	r := NewHybridRetriever(searcher, &stubEmbedder{vec: []float32{1, 0}}, DefaultMergeOptions())

	results, _, err := r.Retrieve(context.Background(), vectorstore.Scope{TenantSlug: "acme"}, "q", 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, idEarly, results[0].ChunkID)
	assert.Equal(t, idLate, results[1].ChunkID)
}

func TestHybridRetrieverFallsBackWhenEmbeddingFails(t *testing.T) {
	idA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")

	searcher := &stubSearcher{
		lexical: []vectorstore.SearchResult{result(idA, 0, 0.6)},
	}
	r := NewHybridRetriever(searcher, &stubEmbedder{err: errors.New("provider down")}, DefaultMergeOptions())

	results, degraded, err := r.Retrieve(context.Background(), vectorstore.Scope{TenantSlug: "acme"}, "q", 5, 0)
	require.NoError(t, err)
	assert.True(t, degraded)
	require.Len(t, results, 1)

	// Lexical scores pass through unscaled when the vector pool is empty.
	assert.InDelta(t, 0.6, results[0].Score, 1e-9)
}

func TestHybridRetrieverEmptyCorpus(t *testing.T) {
	r := NewHybridRetriever(&stubSearcher{}, &stubEmbedder{vec: []float32{1, 0}}, DefaultMergeOptions())

	results, degraded, err := r.Retrieve(context.Background(), vectorstore.Scope{TenantSlug: "acme"}, "q", 5, 0)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Empty(t, results)
}
