package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/llm"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
)

// Reranker re-scores retrieved chunks for better relevance ordering. It is
// optional: the engine only invokes it when the caller's plan limits
// enable reranking.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []vectorstore.SearchResult) ([]vectorstore.SearchResult, error)
}

// LLMReranker asks the generation model to score each chunk against the
// query in a single call. Any failure (generation, parsing) leaves the
// original ranking untouched.
type LLMReranker struct {
	gateway llm.Gateway
	model   string
}

func NewLLMReranker(gw llm.Gateway, model string) *LLMReranker {
	return &LLMReranker{gateway: gw, model: model}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, results []vectorstore.SearchResult) ([]vectorstore.SearchResult, error) {
	if len(results) == 0 || !r.gateway.Configured() {
		return results, nil
	}

	var sb strings.Builder
	for i, res := range results {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i, truncate(res.Content, 500))
	}

	resp, err := r.gateway.Generate(ctx, llm.GenerateRequest{
		Model: r.model,
		Messages: []llm.Message{
			{
				Role: "system",
				Content: `You are a relevance scoring assistant. Given a query and a list of text chunks,
score each chunk from 0.0 to 1.0 based on how relevant it is to the query.
Return ONLY a JSON array of objects with "index" and "score" fields. Example:
[{"index": 0, "score": 0.95}, {"index": 1, "score": 0.3}]`,
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Query: %s\n\nChunks:\n%s", query, sb.String()),
			},
		},
	})
	if err != nil {
		slog.Warn("reranking skipped", "error", err)
		return results, nil
	}

	var scores []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	content := strings.TrimSpace(resp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &scores); err != nil {
		slog.Warn("reranking response unparseable", "error", err)
		return results, nil
	}

	scoreByIndex := make(map[int]float64, len(scores))
	for _, s := range scores {
		if s.Score >= 0 && s.Score <= 1 {
			scoreByIndex[s.Index] = s.Score
		}
	}

	reranked := make([]vectorstore.SearchResult, len(results))
	copy(reranked, results)
	for i := range reranked {
		if score, ok := scoreByIndex[i]; ok {
			reranked[i].Score = score
		}
	}
	return sortResults(reranked), nil
}

// truncate cuts s to at most max runes, never splitting a multi-byte
// character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
