package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
)

// Embedder resolves a query to its vector. Satisfied by embedding.Service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever ranks chunks for a query within a tenant scope. Degraded is
// true when the vector path was unavailable and only lexical evidence
// backs the results.
type Retriever interface {
	Retrieve(ctx context.Context, scope vectorstore.Scope, query string, topK int, threshold float64) (results []vectorstore.SearchResult, degraded bool, err error)
}

// MergeOptions are the blend weights for hybrid scoring. Tunable through
// config so per-deployment corpora can shift the balance without a code
// change.
type MergeOptions struct {
	VectorWeight      float64
	LexicalWeight     float64
	CrossModalPenalty float64
}

func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		VectorWeight:      0.7,
		LexicalWeight:     0.3,
		CrossModalPenalty: 0.9,
	}
}

// HybridRetriever combines cosine similarity over embeddings with
// full-text rank, merged in-process so both backends stay simple
// single-modality queries.
type HybridRetriever struct {
	searcher vectorstore.Searcher
	embedder Embedder
	opts     MergeOptions
}

func NewHybridRetriever(searcher vectorstore.Searcher, embedder Embedder, opts MergeOptions) *HybridRetriever {
	return &HybridRetriever{searcher: searcher, embedder: embedder, opts: opts}
}

// Retrieve gathers candidate pools of 2*topK from each modality, merges
// them by chunk, filters on threshold, and returns the top topK.
//
// A chunk found by both modalities scores
// VectorWeight*vector + LexicalWeight*lexical; one found by a single
// modality keeps its native score scaled by CrossModalPenalty. When the
// query embedding is unavailable the lexical pool is served as-is and the
// result set is flagged degraded.
func (r *HybridRetriever) Retrieve(ctx context.Context, scope vectorstore.Scope, query string, topK int, threshold float64) ([]vectorstore.SearchResult, bool, error) {
	poolSize := topK * 2

	var (
		vecResults []vectorstore.SearchResult
		degraded   bool
	)
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("query embedding unavailable, falling back to lexical search",
			"tenant", scope.TenantSlug, "error", err)
		degraded = true
	} else {
		vecResults, err = r.searcher.VectorSearch(ctx, scope, queryVec, poolSize)
		if err != nil {
			return nil, false, fmt.Errorf("vector search: %w", err)
		}
	}

	lexResults, err := r.searcher.LexicalSearch(ctx, scope, query, poolSize)
	if err != nil {
		return nil, false, fmt.Errorf("lexical search: %w", err)
	}

	merged := r.merge(vecResults, lexResults)

	filtered := merged[:0]
	for _, res := range merged {
		if res.Score >= threshold {
			filtered = append(filtered, res)
		}
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, degraded, nil
}

// merge blends the two candidate pools. The cross-modal penalty only
// applies when the other modality actually produced candidates; a run
// where one pool is empty passes the surviving pool through at native
// scores.
func (r *HybridRetriever) merge(vecResults, lexResults []vectorstore.SearchResult) []vectorstore.SearchResult {
	if len(vecResults) == 0 {
		return sortResults(lexResults)
	}
	if len(lexResults) == 0 {
		return sortResults(vecResults)
	}

	type scored struct {
		result   vectorstore.SearchResult
		vector   float64
		lexical  float64
		inVector bool
		inLex    bool
	}

	byChunk := make(map[uuid.UUID]*scored, len(vecResults)+len(lexResults))
	for _, res := range vecResults {
		byChunk[res.ChunkID] = &scored{result: res, vector: res.Score, inVector: true}
	}
	for _, res := range lexResults {
		if entry, ok := byChunk[res.ChunkID]; ok {
			entry.lexical = res.Score
			entry.inLex = true
			continue
		}
		byChunk[res.ChunkID] = &scored{result: res, lexical: res.Score, inLex: true}
	}

	merged := make([]vectorstore.SearchResult, 0, len(byChunk))
	for _, entry := range byChunk {
		res := entry.result
		switch {
		case entry.inVector && entry.inLex:
			res.Score = r.opts.VectorWeight*entry.vector + r.opts.LexicalWeight*entry.lexical
		case entry.inVector:
			res.Score = entry.vector * r.opts.CrossModalPenalty
		default:
			res.Score = entry.lexical * r.opts.CrossModalPenalty
		}
		merged = append(merged, res)
	}
	return sortResults(merged)
}

// sortResults orders by score descending, breaking ties on the lower
// ordinal and then the chunk ID so identical inputs always rank
// identically.
func sortResults(results []vectorstore.SearchResult) []vectorstore.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Ordinal != results[j].Ordinal {
			return results[i].Ordinal < results[j].Ordinal
		}
		return results[i].ChunkID.String() < results[j].ChunkID.String()
	})
	return results
}
