package models

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	TenantSlug string            `json:"tenant_slug" db:"tenant_slug"`
	Title      string            `json:"title" db:"title"`
	Source     string            `json:"source,omitempty" db:"source"`
	Status     string            `json:"status" db:"status"`
	Text       string            `json:"-" db:"raw_text"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// Chunk is the atomic unit of indexing and retrieval. Ordinals are
// contiguous from 0 within a document and rewritten wholesale on
// reprocessing. A nil Embedding means the chunk is excluded from vector
// search but still eligible for lexical search.
type Chunk struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	DocumentID uuid.UUID         `json:"document_id" db:"document_id"`
	TenantSlug string            `json:"tenant_slug" db:"tenant_slug"`
	Ordinal    int               `json:"ordinal" db:"ordinal"`
	Content    string            `json:"content" db:"content"`
	Embedding  []float32         `json:"-" db:"embedding"`
	TokenCount int               `json:"token_count" db:"token_count"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

const (
	DocStatusPending = "pending"
	DocStatusReady   = "ready"
	DocStatusFailed  = "failed"

	// DocStatusPartial means some chunks were stored without an embedding
	// because the embedding provider was unavailable. Lexical search still
	// covers them.
	DocStatusPartial = "partial"
)
