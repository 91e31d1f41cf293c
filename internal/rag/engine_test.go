package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/answercache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/cache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/embedding"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/usage"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/vectorstore"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/pkg/chunker"
)

// spyRetriever counts Retrieve calls so the cache fast path is
// observable.
type spyRetriever struct {
	inner Retriever
	calls int
}

func (s *spyRetriever) Retrieve(ctx context.Context, scope vectorstore.Scope, query string, topK int, threshold float64) ([]vectorstore.SearchResult, bool, error) {
	s.calls++
	return s.inner.Retrieve(ctx, scope, query, topK, threshold)
}

type testEngine struct {
	engine    *Engine
	gateway   *fakeGateway
	store     *vectorstore.MemoryStore
	retriever *spyRetriever
	reporter  *usage.Reporter
}

func newTestEngine(t *testing.T, gw *fakeGateway) *testEngine {
	t.Helper()

	reporter := usage.NewReporter(cache.NewMemoryStore())
	embeddings := embedding.NewService(gw, cache.NewMemoryStore(), reporter, "fake-embed", testEmbedDim, time.Hour)
	store := vectorstore.NewMemoryStore(nil)
	spy := &spyRetriever{inner: NewHybridRetriever(store, embeddings, DefaultMergeOptions())}

	engine := NewEngine(EngineDeps{
		Store:       store,
		Retriever:   spy,
		Synthesizer: NewSynthesizer(gw, "fake-model", 512),
		Answers:     answercache.New(cache.NewMemoryStore(), time.Hour),
		Embeddings:  embeddings,
		Usage:       reporter,
		ChunkOpts:   chunker.DefaultOptions(),
		Defaults:    Defaults{TopK: 5},
	})
	return &testEngine{engine: engine, gateway: gw, store: store, retriever: spy, reporter: reporter}
}

func TestEngineIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{generateContent: "The warranty lasts 12 months."})

	ingested, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme",
		Title:      "Terms of Service",
		Text:       "The warranty lasts 12 months from the purchase date. Returns require a receipt.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusReady, ingested.Status)
	assert.Equal(t, 1, ingested.ChunkCount)
	assert.Zero(t, ingested.ChunksFailed)

	docs, err := te.engine.Documents(ctx, "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Terms of Service", docs[0].Title)

	res, err := te.engine.Query(ctx, QueryRequest{
		TenantSlug: "acme",
		Query:      "how long does the warranty last?",
		Limits:     QueryLimits{CitationsEnabled: true},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeDirect, res.ModeUsed)
	assert.Equal(t, "The warranty lasts 12 months.", res.Answer)
	assert.Equal(t, 1, res.ChunksUsed)
	assert.Greater(t, res.Confidence, 0.0)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, ingested.DocumentID, res.Sources[0].DocumentID)
	assert.False(t, res.Cached)
}

func TestEngineQueryCacheSkipsRetrieval(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{})

	_, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "doc", Text: "The warranty lasts 12 months.",
	})
	require.NoError(t, err)

	req := QueryRequest{TenantSlug: "acme", Query: "what about the warranty?"}

	first, err := te.engine.Query(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, te.retriever.calls)

	second, err := te.engine.Query(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, te.retriever.calls, "cache hit must not invoke the retriever")

	snapshot, err := te.reporter.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot[usage.MetricAnswerCacheHits])
	assert.Equal(t, int64(1), snapshot[usage.MetricAnswerCacheMisses])
}

func TestEngineTenantIsolation(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{})

	const text = "The secret launch date is in March."

	docA, err := te.engine.Ingest(ctx, IngestRequest{TenantSlug: "tenant-a", Title: "plan", Text: text})
	require.NoError(t, err)
	docB, err := te.engine.Ingest(ctx, IngestRequest{TenantSlug: "tenant-b", Title: "plan", Text: text})
	require.NoError(t, err)
	require.NotEqual(t, docA.DocumentID, docB.DocumentID)

	res, err := te.engine.Query(ctx, QueryRequest{
		TenantSlug: "tenant-a",
		Query:      "when is the launch date?",
		Limits:     QueryLimits{CitationsEnabled: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Sources)
	for _, src := range res.Sources {
		assert.Equal(t, docA.DocumentID, src.DocumentID)
	}
}

func TestEngineStrictnessMaxReturnsEvidenceOnly(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{generateContent: "should never appear"})

	_, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "doc", Text: "The warranty lasts 12 months.",
	})
	require.NoError(t, err)
	generateCallsAfterIngest := te.gateway.generateCalls

	res, err := te.engine.Query(ctx, QueryRequest{
		TenantSlug: "acme",
		Query:      "what about the warranty?",
		Strictness: StrictnessMax,
	})
	require.NoError(t, err)
	assert.Equal(t, generateCallsAfterIngest, te.gateway.generateCalls)
	assert.Equal(t, "The warranty lasts 12 months.", res.Answer)
	assert.Equal(t, ModeDirect, res.ModeUsed)
	assert.False(t, res.Degraded)
}

func TestEngineListScenario(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{unconfigured: true})

	_, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "itens", Text: "1. A\n2. B\n3. C",
	})
	require.NoError(t, err)

	res, err := te.engine.Query(ctx, QueryRequest{
		TenantSlug: "acme",
		Query:      "liste os itens",
		Mode:       "auto",
	})
	require.NoError(t, err)
	assert.Equal(t, ModeList, res.ModeUsed)
	assert.Equal(t, "1. A\n2. B\n3. C", res.Answer)
}

func TestEngineDegradedEmbeddingFallsBackToLexical(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{embedErr: errors.New("embedding provider down"), unconfigured: true})

	ingested, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "doc", Text: "The warranty lasts 12 months.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, ingested.Status)
	assert.Equal(t, 1, ingested.ChunksFailed)

	res, err := te.engine.Query(ctx, QueryRequest{
		TenantSlug: "acme",
		Query:      "how long is the warranty?",
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Answer, "warranty")

	// Degraded answers are never cached.
	again, err := te.engine.Query(ctx, QueryRequest{
		TenantSlug: "acme",
		Query:      "how long is the warranty?",
	})
	require.NoError(t, err)
	assert.False(t, again.Cached)
}

func TestEngineReprocessInvalidatesCachedAnswers(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{generateContent: "first answer"}
	te := newTestEngine(t, gw)

	ingested, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "doc", Text: "The warranty lasts 12 months.",
	})
	require.NoError(t, err)

	req := QueryRequest{TenantSlug: "acme", Query: "what about the warranty?"}
	first, err := te.engine.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "first answer", first.Answer)

	gw.generateContent = "second answer"
	_, err = te.engine.Reprocess(ctx, "acme", ingested.DocumentID)
	require.NoError(t, err)

	fresh, err := te.engine.Query(ctx, req)
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.Equal(t, "second answer", fresh.Answer)
}

func TestEngineReprocessConflictWhileLocked(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{})

	ingested, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "doc", Text: "some text",
	})
	require.NoError(t, err)

	require.NoError(t, te.engine.lockDocument(ingested.DocumentID))
	defer te.engine.unlockDocument(ingested.DocumentID)

	_, err = te.engine.Reprocess(ctx, "acme", ingested.DocumentID)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = te.engine.Delete(ctx, "acme", ingested.DocumentID)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestEngineDeleteCascades(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{})

	ingested, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "doc", Text: "The warranty lasts 12 months.",
	})
	require.NoError(t, err)

	// Prime the answer cache with an all-documents query.
	_, err = te.engine.Query(ctx, QueryRequest{TenantSlug: "acme", Query: "warranty?"})
	require.NoError(t, err)

	summary, err := te.engine.Delete(ctx, "acme", ingested.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.ChunksDeleted)
	assert.Equal(t, int64(1), summary.CacheInvalidated)

	_, err = te.engine.Document(ctx, "acme", ingested.DocumentID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = te.engine.Delete(ctx, "acme", ingested.DocumentID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngineDocumentFullMode(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{})

	ingested, err := te.engine.Ingest(ctx, IngestRequest{
		TenantSlug: "acme", Title: "doc", Text: "Part one.\n\nPart two.",
	})
	require.NoError(t, err)

	res, err := te.engine.Query(ctx, QueryRequest{
		TenantSlug: "acme",
		DocumentID: ingested.DocumentID,
		Query:      "show me the full document",
		Mode:       "auto",
		Strictness: StrictnessMax,
	})
	require.NoError(t, err)
	assert.Equal(t, ModeDocumentFull, res.ModeUsed)
	assert.Contains(t, res.Answer, "Part one.")
	assert.Contains(t, res.Answer, "Part two.")

	// document_full over the whole corpus is ill-formed.
	_, err = te.engine.Query(ctx, QueryRequest{
		TenantSlug: "acme",
		Query:      "anything",
		Mode:       "document_full",
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEngineValidation(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{})

	_, err := te.engine.Ingest(ctx, IngestRequest{TenantSlug: "Bad Slug!", Title: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = te.engine.Ingest(ctx, IngestRequest{TenantSlug: "acme"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = te.engine.Query(ctx, QueryRequest{TenantSlug: "acme"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = te.engine.Query(ctx, QueryRequest{TenantSlug: "acme", Query: "q", Strictness: 9})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = te.engine.Query(ctx, QueryRequest{TenantSlug: "acme", Query: "q", Mode: "bogus"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = te.engine.Reprocess(ctx, "acme", uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngineEmptyDocumentIngest(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, &fakeGateway{})

	ingested, err := te.engine.Ingest(ctx, IngestRequest{TenantSlug: "acme", Title: "empty", Text: ""})
	require.NoError(t, err)
	assert.Zero(t, ingested.ChunkCount)
	assert.Equal(t, models.DocStatusReady, ingested.Status)

	res, err := te.engine.Query(ctx, QueryRequest{TenantSlug: "acme", Query: "anything at all"})
	require.NoError(t, err)
	assert.Zero(t, res.ChunksUsed)
}
