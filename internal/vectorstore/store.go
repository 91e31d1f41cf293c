package vectorstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

// Scope restricts a search to one tenant and optionally one document.
// A nil DocumentID means "all documents for the tenant". No search ever
// crosses tenants, even when numeric IDs collide.
type Scope struct {
	TenantSlug string
	DocumentID uuid.UUID // uuid.Nil = every document in the tenant
}

type SearchResult struct {
	ChunkID    uuid.UUID         `json:"chunk_id"`
	DocumentID uuid.UUID         `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type DeleteResult struct {
	ChunksDeleted   int64 `json:"chunks_deleted"`
	FeedbackDeleted int64 `json:"feedback_deleted"`
}

// Searcher is the retrieval-facing slice of the store.
type Searcher interface {
	// VectorSearch ranks chunks by cosine similarity. Chunks without an
	// embedding are simply not candidates; they stay reachable through
	// LexicalSearch.
	VectorSearch(ctx context.Context, scope Scope, query []float32, limit int) ([]SearchResult, error)

	// LexicalSearch ranks chunks by full-text match score over the same
	// scope.
	LexicalSearch(ctx context.Context, scope Scope, query string, limit int) ([]SearchResult, error)
}

type Store interface {
	Searcher

	// ReplaceChunks upserts the document and swaps its chunk set in one
	// transaction: a concurrent query sees either the old set or the new
	// one, never a mix.
	ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.Chunk) error

	Document(ctx context.Context, tenantSlug string, id uuid.UUID) (*models.Document, error)
	Documents(ctx context.Context, tenantSlug string, limit, offset int) ([]models.Document, error)
	ChunksByDocument(ctx context.Context, tenantSlug string, id uuid.UUID) ([]models.Chunk, error)

	// DeleteDocument removes the document, its chunks, and its feedback
	// rows in a single transaction. Partial deletion is never an end
	// state.
	DeleteDocument(ctx context.Context, tenantSlug string, id uuid.UUID) (DeleteResult, error)
}
