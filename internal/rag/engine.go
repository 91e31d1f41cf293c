package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/answercache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/embedding"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/tenant"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/usage"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/pkg/chunker"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/pkg/tokenizer"
)

// QueryLimits are plan-derived flags handed in per call by the billing
// collaborator. They never live in engine state.
type QueryLimits struct {
	MaxResults       int  `json:"max_results,omitempty"`
	CitationsEnabled bool `json:"citations_enabled"`
	RerankingEnabled bool `json:"reranking_enabled"`
}

type IngestRequest struct {
	TenantSlug string            `json:"tenant_slug"`
	Title      string            `json:"title"`
	Source     string            `json:"source,omitempty"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type IngestResult struct {
	DocumentID   uuid.UUID `json:"document_id"`
	ChunkCount   int       `json:"chunk_count"`
	ChunksFailed int       `json:"chunks_failed,omitempty"`
	Status       string    `json:"status"`
}

type QueryRequest struct {
	TenantSlug    string      `json:"tenant_slug"`
	DocumentID    uuid.UUID   `json:"document_id,omitempty"` // uuid.Nil = all documents
	Query         string      `json:"query"`
	Mode          string      `json:"mode,omitempty"`
	TopK          int         `json:"top_k,omitempty"`
	Threshold     float64     `json:"threshold,omitempty"`
	Strictness    int         `json:"strictness,omitempty"`
	IncludeAnswer *bool       `json:"include_answer,omitempty"` // nil = true
	Limits        QueryLimits `json:"limits"`
}

type Source struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkID    uuid.UUID `json:"chunk_id"`
	Ordinal    int       `json:"ordinal"`
	Score      float64   `json:"score"`
	Snippet    string    `json:"snippet,omitempty"`
}

type QueryResult struct {
	Answer     string   `json:"answer"`
	ModeUsed   Mode     `json:"mode_used"`
	ChunksUsed int      `json:"chunks_used"`
	Confidence float64  `json:"confidence"`
	Degraded   bool     `json:"degraded,omitempty"`
	Sources    []Source `json:"sources,omitempty"`
	Cached     bool     `json:"cached,omitempty"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
}

type DeleteSummary struct {
	ChunksDeleted    int64 `json:"chunks_deleted"`
	FeedbackDeleted  int64 `json:"feedback_deleted"`
	CacheInvalidated int64 `json:"cache_invalidated"`
}

// Defaults are applied when a query omits retrieval parameters.
type Defaults struct {
	TopK      int
	Threshold float64
}

// Engine is the request-processing core: ingestion, retrieval, synthesis,
// deletion. It holds no per-request state beyond the per-document lock
// table, so one instance serves all tenants concurrently.
type Engine struct {
	store       vectorstore.Store
	retriever   Retriever
	synthesizer *Synthesizer
	reranker    Reranker
	answers     *answercache.Cache
	embeddings  *embedding.Service
	usage       *usage.Reporter
	chunkOpts   chunker.Options
	defaults    Defaults

	mu       sync.Mutex
	docLocks map[uuid.UUID]bool
}

type EngineDeps struct {
	Store       vectorstore.Store
	Retriever   Retriever
	Synthesizer *Synthesizer
	Reranker    Reranker // optional
	Answers     *answercache.Cache
	Embeddings  *embedding.Service
	Usage       *usage.Reporter
	ChunkOpts   chunker.Options
	Defaults    Defaults
}

func NewEngine(deps EngineDeps) *Engine {
	if deps.Defaults.TopK <= 0 {
		deps.Defaults.TopK = 5
	}
	return &Engine{
		store:       deps.Store,
		retriever:   deps.Retriever,
		synthesizer: deps.Synthesizer,
		reranker:    deps.Reranker,
		answers:     deps.Answers,
		embeddings:  deps.Embeddings,
		usage:       deps.Usage,
		chunkOpts:   deps.ChunkOpts,
		defaults:    deps.Defaults,
		docLocks:    make(map[uuid.UUID]bool),
	}
}

// lockDocument claims the per-document mutation lock without blocking.
// Mutations on a locked document surface ErrConflict so the caller can
// retry after backoff instead of queueing.
func (e *Engine) lockDocument(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.docLocks[id] {
		return fmt.Errorf("%w: document %s is being reprocessed", models.ErrConflict, id)
	}
	e.docLocks[id] = true
	return nil
}

func (e *Engine) unlockDocument(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.docLocks, id)
}

// Ingest chunks, embeds, and indexes a new document. Embedding failures
// for individual chunks degrade the document to partial instead of
// failing the ingest.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if !tenant.ValidSlug(req.TenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, req.TenantSlug)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrValidation)
	}

	doc := &models.Document{
		ID:         uuid.New(),
		TenantSlug: req.TenantSlug,
		Title:      req.Title,
		Source:     req.Source,
		Status:     models.DocStatusPending,
		Text:       req.Text,
		Metadata:   req.Metadata,
	}

	if err := e.lockDocument(doc.ID); err != nil {
		return nil, err
	}
	defer e.unlockDocument(doc.ID)

	result, err := e.process(ctx, doc)
	if err != nil {
		return nil, err
	}

	e.usage.Incr(ctx, usage.MetricDocumentsIngested, 1)
	return result, nil
}

// Stash persists the document with its raw text but no chunks, leaving it
// pending. Used by the HTTP layer when ingestion is deferred to a queue
// worker, which later runs Reprocess.
func (e *Engine) Stash(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if !tenant.ValidSlug(req.TenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, req.TenantSlug)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrValidation)
	}

	doc := &models.Document{
		ID:         uuid.New(),
		TenantSlug: req.TenantSlug,
		Title:      req.Title,
		Source:     req.Source,
		Status:     models.DocStatusPending,
		Text:       req.Text,
		Metadata:   req.Metadata,
	}
	if err := e.store.ReplaceChunks(ctx, doc, nil); err != nil {
		return nil, err
	}
	e.usage.Incr(ctx, usage.MetricDocumentsIngested, 1)
	return &IngestResult{DocumentID: doc.ID, Status: doc.Status}, nil
}

// Reprocess re-chunks and re-embeds an existing document from its stored
// raw text, replacing the chunk set wholesale.
func (e *Engine) Reprocess(ctx context.Context, tenantSlug string, documentID uuid.UUID) (*IngestResult, error) {
	if !tenant.ValidSlug(tenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, tenantSlug)
	}

	if err := e.lockDocument(documentID); err != nil {
		return nil, err
	}
	defer e.unlockDocument(documentID)

	doc, err := e.store.Document(ctx, tenantSlug, documentID)
	if err != nil {
		return nil, err
	}
	return e.process(ctx, doc)
}

// process runs the chunk-embed-index sequence for doc and invalidates any
// answers that may have drawn on its previous content. The caller holds
// the document lock.
func (e *Engine) process(ctx context.Context, doc *models.Document) (*IngestResult, error) {
	pieces := chunker.Split(doc.Text, e.chunkOpts)

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Content
	}
	vectors, failed := e.embeddings.EmbedBatch(ctx, texts)

	chunks := make([]models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			TenantSlug: doc.TenantSlug,
			Ordinal:    p.Ordinal,
			Content:    p.Content,
			Embedding:  vectors[i],
			TokenCount: tokenizer.Estimate(p.Content),
		}
	}

	switch {
	case len(pieces) > 0 && failed == len(pieces):
		doc.Status = models.DocStatusFailed
	case failed > 0:
		doc.Status = models.DocStatusPartial
	default:
		doc.Status = models.DocStatusReady
	}

	if err := e.store.ReplaceChunks(ctx, doc, chunks); err != nil {
		return nil, err
	}
	e.usage.Incr(ctx, usage.MetricChunksIngested, int64(len(chunks)))

	if invalidated, err := e.answers.InvalidateDocument(ctx, doc.TenantSlug, doc.ID); err != nil {
		slog.Warn("answer cache invalidation failed", "document_id", doc.ID, "error", err)
	} else if invalidated > 0 {
		slog.Info("answer cache invalidated", "document_id", doc.ID, "entries", invalidated)
	}

	return &IngestResult{
		DocumentID:   doc.ID,
		ChunkCount:   len(chunks),
		ChunksFailed: failed,
		Status:       doc.Status,
	}, nil
}

// Query answers a question over the tenant's corpus. The answer cache is
// the fast path: a hit skips retrieval and synthesis entirely.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if !tenant.ValidSlug(req.TenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, req.TenantSlug)
	}
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", models.ErrValidation)
	}
	if req.Strictness < 0 || req.Strictness > StrictnessMax {
		return nil, fmt.Errorf("%w: strictness must be between 0 and %d", models.ErrValidation, StrictnessMax)
	}

	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeAuto {
		mode = Classify(req.Query)
	}
	if mode == ModeDocumentFull && req.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("%w: document_full requires a document_id", models.ErrValidation)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.defaults.TopK
	}
	if req.Limits.MaxResults > 0 && topK > req.Limits.MaxResults {
		topK = req.Limits.MaxResults
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = e.defaults.Threshold
	}
	strictness := req.Strictness
	if req.IncludeAnswer != nil && !*req.IncludeAnswer {
		strictness = StrictnessMax
	}

	key := answercache.NewKey(req.TenantSlug, req.DocumentID, req.Query, string(mode), topK, threshold, strictness)

	var cached QueryResult
	if ok, err := e.answers.Get(ctx, key, &cached); err == nil && ok {
		e.usage.Incr(ctx, usage.MetricAnswerCacheHits, 1)
		cached.Cached = true
		return &cached, nil
	} else if err != nil {
		slog.Warn("answer cache read failed", "error", err)
	}
	e.usage.Incr(ctx, usage.MetricAnswerCacheMisses, 1)

	scope := vectorstore.Scope{TenantSlug: req.TenantSlug, DocumentID: req.DocumentID}

	var (
		results  []vectorstore.SearchResult
		degraded bool
	)
	if mode == ModeDocumentFull {
		results, err = e.documentChunks(ctx, req.TenantSlug, req.DocumentID)
	} else {
		results, degraded, err = e.retriever.Retrieve(ctx, scope, req.Query, topK, threshold)
	}
	if err != nil {
		return nil, err
	}

	if req.Limits.RerankingEnabled && e.reranker != nil && mode != ModeDocumentFull {
		reranked, err := e.reranker.Rerank(ctx, req.Query, results)
		if err == nil {
			results = reranked
		}
	}

	answer, err := e.synthesizer.Synthesize(ctx, SynthesizeRequest{
		Query:      req.Query,
		Mode:       mode,
		Strictness: strictness,
		Results:    results,
	})
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Answer:     answer.Text,
		ModeUsed:   mode,
		ChunksUsed: answer.ChunksUsed,
		Confidence: answer.Confidence,
		Degraded:   answer.Degraded || degraded,
		Provider:   answer.Provider,
		Model:      answer.Model,
	}
	if req.Limits.CitationsEnabled {
		result.Sources = buildSources(results)
	}

	e.usage.Incr(ctx, usage.MetricQueriesServed, 1)
	if answer.GenerationTokens > 0 {
		e.usage.Incr(ctx, usage.MetricGenerationTokens, int64(answer.GenerationTokens))
	}

	// Degraded answers are transient by nature; caching one would pin a
	// bad answer for the whole TTL.
	if !result.Degraded {
		if err := e.answers.Set(ctx, key, result); err != nil {
			slog.Warn("answer cache write failed", "error", err)
		}
	}
	return result, nil
}

// documentChunks loads every chunk of the document in ordinal order, as
// pseudo-results so the synthesizer sees one input shape.
func (e *Engine) documentChunks(ctx context.Context, tenantSlug string, documentID uuid.UUID) ([]vectorstore.SearchResult, error) {
	chunks, err := e.store.ChunksByDocument(ctx, tenantSlug, documentID)
	if err != nil {
		return nil, err
	}
	results := make([]vectorstore.SearchResult, len(chunks))
	for i, c := range chunks {
		results[i] = vectorstore.SearchResult{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Ordinal:    c.Ordinal,
			Content:    c.Content,
			Score:      1,
			Metadata:   c.Metadata,
		}
	}
	return results, nil
}

func buildSources(results []vectorstore.SearchResult) []Source {
	sources := make([]Source, len(results))
	for i, res := range results {
		sources[i] = Source{
			DocumentID: res.DocumentID,
			ChunkID:    res.ChunkID,
			Ordinal:    res.Ordinal,
			Score:      res.Score,
			Snippet:    truncate(res.Content, 200),
		}
	}
	return sources
}

// Delete removes the document, its chunks, and its feedback in one
// transaction, then drops cached answers keyed to it.
func (e *Engine) Delete(ctx context.Context, tenantSlug string, documentID uuid.UUID) (*DeleteSummary, error) {
	if !tenant.ValidSlug(tenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, tenantSlug)
	}

	if err := e.lockDocument(documentID); err != nil {
		return nil, err
	}
	defer e.unlockDocument(documentID)

	res, err := e.store.DeleteDocument(ctx, tenantSlug, documentID)
	if err != nil {
		return nil, err
	}

	invalidated, err := e.answers.InvalidateDocument(ctx, tenantSlug, documentID)
	if err != nil {
		slog.Warn("answer cache invalidation failed", "document_id", documentID, "error", err)
	}

	return &DeleteSummary{
		ChunksDeleted:    res.ChunksDeleted,
		FeedbackDeleted:  res.FeedbackDeleted,
		CacheInvalidated: invalidated,
	}, nil
}

// Document and Documents are read-through accessors for the HTTP layer.
func (e *Engine) Document(ctx context.Context, tenantSlug string, id uuid.UUID) (*models.Document, error) {
	if !tenant.ValidSlug(tenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, tenantSlug)
	}
	return e.store.Document(ctx, tenantSlug, id)
}

func (e *Engine) Documents(ctx context.Context, tenantSlug string, limit, offset int) ([]models.Document, error) {
	if !tenant.ValidSlug(tenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, tenantSlug)
	}
	return e.store.Documents(ctx, tenantSlug, limit, offset)
}
