package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

func mkChunk(docID uuid.UUID, tenant string, ordinal int, content string, embedding []float32) models.Chunk {
	return models.Chunk{
		ID:         uuid.New(),
		DocumentID: docID,
		TenantSlug: tenant,
		Ordinal:    ordinal,
		Content:    content,
		Embedding:  embedding,
	}
}

func seedDocument(t *testing.T, s *MemoryStore, tenant, title string, chunks []models.Chunk) uuid.UUID {
	t.Helper()
	docID := chunks[0].DocumentID
	doc := &models.Document{
		ID:         docID,
		TenantSlug: tenant,
		Title:      title,
		Status:     models.DocStatusReady,
	}
	require.NoError(t, s.ReplaceChunks(context.Background(), doc, chunks))
	return docID
}

func TestMemoryStore_DegradedChunkVisibility(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	docID := uuid.New()

	chunks := []models.Chunk{
		mkChunk(docID, "acme", 0, "embedded payment instructions", []float32{1, 0, 0}),
		mkChunk(docID, "acme", 1, "unembedded payment instructions", nil),
	}
	seedDocument(t, s, "acme", "manual", chunks)

	scope := Scope{TenantSlug: "acme"}

	vec, err := s.VectorSearch(ctx, scope, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, vec, 1, "chunk without embedding must not be a vector candidate")
	assert.Equal(t, 0, vec[0].Ordinal)

	lex, err := s.LexicalSearch(ctx, scope, "payment instructions", 10)
	require.NoError(t, err)
	assert.Len(t, lex, 2, "chunk without embedding stays lexically searchable")
}

func TestMemoryStore_ReplaceChunksSwapsWholesale(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	docID := uuid.New()

	seedDocument(t, s, "acme", "v1", []models.Chunk{
		mkChunk(docID, "acme", 0, "old first", nil),
		mkChunk(docID, "acme", 1, "old second", nil),
		mkChunk(docID, "acme", 2, "old third", nil),
	})

	doc := &models.Document{ID: docID, TenantSlug: "acme", Title: "v2", Status: models.DocStatusReady}
	require.NoError(t, s.ReplaceChunks(ctx, doc, []models.Chunk{
		mkChunk(docID, "acme", 0, "new only", nil),
	}))

	chunks, err := s.ChunksByDocument(ctx, "acme", docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new only", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Ordinal)
}

func TestMemoryStore_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	a := uuid.New()
	b := uuid.New()
	seedDocument(t, s, "tenant-a", "shared title", []models.Chunk{
		mkChunk(a, "tenant-a", 0, "identical secret content", []float32{1, 0}),
	})
	seedDocument(t, s, "tenant-b", "shared title", []models.Chunk{
		mkChunk(b, "tenant-b", 0, "identical secret content", []float32{1, 0}),
	})

	lex, err := s.LexicalSearch(ctx, Scope{TenantSlug: "tenant-a"}, "identical secret content", 10)
	require.NoError(t, err)
	require.Len(t, lex, 1)
	assert.Equal(t, a, lex[0].DocumentID)

	vec, err := s.VectorSearch(ctx, Scope{TenantSlug: "tenant-b"}, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.Equal(t, b, vec[0].DocumentID)
}

type fakePurger struct {
	purged int64
}

func (p *fakePurger) PurgeByDocument(tenant string, id uuid.UUID) int64 {
	return p.purged
}

func TestMemoryStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	purger := &fakePurger{purged: 2}
	s := NewMemoryStore(purger)
	docID := uuid.New()

	seedDocument(t, s, "acme", "doomed", []models.Chunk{
		mkChunk(docID, "acme", 0, "first", nil),
		mkChunk(docID, "acme", 1, "second", nil),
	})

	res, err := s.DeleteDocument(ctx, "acme", docID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.ChunksDeleted)
	assert.EqualValues(t, 2, res.FeedbackDeleted)

	_, err = s.Document(ctx, "acme", docID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_DeleteAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	docID := uuid.New()

	seedDocument(t, s, "acme", "survivor", []models.Chunk{
		mkChunk(docID, "acme", 0, "still here", nil),
	})

	s.deleteHook = func() error { return errors.New("disk gone") }
	_, err := s.DeleteDocument(ctx, "acme", docID)
	require.ErrorIs(t, err, models.ErrStorage)

	// Nothing was applied: document and chunks are intact.
	doc, err := s.Document(ctx, "acme", docID)
	require.NoError(t, err)
	assert.Equal(t, "survivor", doc.Title)

	chunks, err := s.ChunksByDocument(ctx, "acme", docID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestMemoryStore_DocumentsOrderedNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	first := uuid.New()
	second := uuid.New()
	seedDocument(t, s, "acme", "older", []models.Chunk{
		mkChunk(first, "acme", 0, "a", nil),
	})
	time.Sleep(2 * time.Millisecond)
	seedDocument(t, s, "acme", "newer", []models.Chunk{
		mkChunk(second, "acme", 0, "b", nil),
	})

	docs, err := s.Documents(ctx, "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.False(t, docs[0].CreatedAt.IsZero())
	assert.Equal(t, "newer", docs[0].Title)
	assert.Equal(t, "older", docs[1].Title)

	// Reprocessing keeps the original timestamp, so ordering is stable.
	doc, err := s.Document(ctx, "acme", first)
	require.NoError(t, err)
	createdAt := doc.CreatedAt
	require.NoError(t, s.ReplaceChunks(ctx, doc, []models.Chunk{
		mkChunk(first, "acme", 0, "a v2", nil),
	}))
	doc, err = s.Document(ctx, "acme", first)
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(doc.CreatedAt))
}

func TestMemoryStore_DeleteUnknownDocument(t *testing.T) {
	s := NewMemoryStore(nil)
	_, err := s.DeleteDocument(context.Background(), "acme", uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
