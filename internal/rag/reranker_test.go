package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
)

func rerankCandidates() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{ChunkID: uuid.New(), Ordinal: 0, Content: "first candidate", Score: 0.9},
		{ChunkID: uuid.New(), Ordinal: 1, Content: "second candidate", Score: 0.8},
	}
}

func TestLLMRerankerReordersByModelScores(t *testing.T) {
	gw := &fakeGateway{generateContent: `[{"index": 0, "score": 0.2}, {"index": 1, "score": 0.95}]`}
	rr := NewLLMReranker(gw, "fake-model")

	out, err := rr.Rerank(context.Background(), "query", rerankCandidates())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Ordinal)
	assert.InDelta(t, 0.95, out[0].Score, 1e-9)
}

func TestLLMRerankerFailsOpen(t *testing.T) {
	gw := &fakeGateway{generateErr: errors.New("model down")}
	rr := NewLLMReranker(gw, "fake-model")

	candidates := rerankCandidates()
	out, err := rr.Rerank(context.Background(), "query", candidates)
	require.NoError(t, err)
	assert.Equal(t, candidates, out)
}

func TestTruncatePreservesRuneBoundaries(t *testing.T) {
	s := strings.Repeat("ação", 50)
	out := truncate(s, 10)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 13, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "..."))

	short := "ação"
	assert.Equal(t, short, truncate(short, 10))
}
