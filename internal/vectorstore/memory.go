package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

// FeedbackPurger lets the in-memory store cascade a document delete into
// the feedback store, mirroring what the Postgres store does inside one
// transaction.
type FeedbackPurger interface {
	PurgeByDocument(tenantSlug string, documentID uuid.UUID) int64
}

// MemoryStore is the in-process implementation used when no database is
// configured, and the substrate for the engine tests. All mutations happen
// under one lock and are applied atomically, so a concurrent reader sees
// either the old chunk set or the new one.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[docKey]*docEntry
	purger FeedbackPurger

	// deleteHook runs after validation but before any mutation; tests use
	// it to simulate a mid-delete failure.
	deleteHook func() error
}

type docKey struct {
	tenant string
	id     uuid.UUID
}

type docEntry struct {
	doc    models.Document
	chunks []models.Chunk
}

func NewMemoryStore(purger FeedbackPurger) *MemoryStore {
	return &MemoryStore{
		docs:   make(map[docKey]*docEntry),
		purger: purger,
	}
}

func (s *MemoryStore) ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.Chunk) error {
	key := docKey{tenant: doc.TenantSlug, id: doc.ID}

	entry := &docEntry{
		doc:    *doc,
		chunks: make([]models.Chunk, len(chunks)),
	}
	copy(entry.chunks, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.docs {
		if k.id == doc.ID && k.tenant != doc.TenantSlug {
			return fmt.Errorf("%w: document %s belongs to another tenant", models.ErrConflict, doc.ID)
		}
	}

	// Postgres keeps created_at across reprocessing; match that so list
	// ordering stays stable.
	now := time.Now()
	if existing, ok := s.docs[key]; ok {
		entry.doc.CreatedAt = existing.doc.CreatedAt
	}
	if entry.doc.CreatedAt.IsZero() {
		entry.doc.CreatedAt = now
	}
	for i := range entry.chunks {
		if entry.chunks[i].CreatedAt.IsZero() {
			entry.chunks[i].CreatedAt = now
		}
	}

	s.docs[key] = entry
	return nil
}

func (s *MemoryStore) Document(ctx context.Context, tenantSlug string, id uuid.UUID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[docKey{tenant: tenantSlug, id: id}]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	doc := entry.doc
	return &doc, nil
}

func (s *MemoryStore) Documents(ctx context.Context, tenantSlug string, limit, offset int) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []models.Document
	for k, entry := range s.docs {
		if k.tenant == tenantSlug {
			docs = append(docs, entry.doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID.String() < docs[j].ID.String()
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	if offset >= len(docs) {
		return nil, nil
	}
	docs = docs[offset:]
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *MemoryStore) ChunksByDocument(ctx context.Context, tenantSlug string, id uuid.UUID) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[docKey{tenant: tenantSlug, id: id}]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}

	chunks := make([]models.Chunk, len(entry.chunks))
	copy(chunks, entry.chunks)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })
	return chunks, nil
}

func (s *MemoryStore) VectorSearch(ctx context.Context, scope Scope, query []float32, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	s.eachChunk(scope, func(c *models.Chunk) {
		if c.Embedding == nil {
			return
		}
		score := cosineSimilarity(query, c.Embedding)
		if math.IsNaN(score) {
			return
		}
		results = append(results, toResult(c, score))
	})

	sortResults(results)
	return capResults(results, limit), nil
}

func (s *MemoryStore) LexicalSearch(ctx context.Context, scope Scope, query string, limit int) ([]SearchResult, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	s.eachChunk(scope, func(c *models.Chunk) {
		chunkTerms := make(map[string]bool)
		for _, t := range tokenize(c.Content) {
			chunkTerms[t] = true
		}
		matched := 0
		for _, t := range terms {
			if chunkTerms[t] {
				matched++
			}
		}
		if matched == 0 {
			return
		}
		results = append(results, toResult(c, float64(matched)/float64(len(terms))))
	})

	sortResults(results)
	return capResults(results, limit), nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, tenantSlug string, id uuid.UUID) (DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{tenant: tenantSlug, id: id}
	entry, ok := s.docs[key]
	if !ok {
		return DeleteResult{}, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}

	// All mutations happen after this point or not at all.
	if s.deleteHook != nil {
		if err := s.deleteHook(); err != nil {
			return DeleteResult{}, fmt.Errorf("%w: %v", models.ErrStorage, err)
		}
	}

	res := DeleteResult{ChunksDeleted: int64(len(entry.chunks))}
	if s.purger != nil {
		res.FeedbackDeleted = s.purger.PurgeByDocument(tenantSlug, id)
	}
	delete(s.docs, key)
	return res, nil
}

// eachChunk visits every chunk in scope. Caller holds the read lock.
func (s *MemoryStore) eachChunk(scope Scope, fn func(*models.Chunk)) {
	for k, entry := range s.docs {
		if k.tenant != scope.TenantSlug {
			continue
		}
		if scope.DocumentID != uuid.Nil && k.id != scope.DocumentID {
			continue
		}
		for i := range entry.chunks {
			fn(&entry.chunks[i])
		}
	}
}

func toResult(c *models.Chunk, score float64) SearchResult {
	return SearchResult{
		ChunkID:    c.ID,
		DocumentID: c.DocumentID,
		Ordinal:    c.Ordinal,
		Content:    c.Content,
		Score:      score,
		Metadata:   c.Metadata,
	}
}

func sortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			if results[i].Ordinal == results[j].Ordinal {
				return results[i].ChunkID.String() < results[j].ChunkID.String()
			}
			return results[i].Ordinal < results[j].Ordinal
		}
		return results[i].Score > results[j].Score
	})
}

func capResults(results []SearchResult, limit int) []SearchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r < 0x80
	})
	var out []string
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
