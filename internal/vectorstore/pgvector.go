package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// lockDocument takes a transactional advisory lock keyed on the document
// ID, serializing reprocess and delete across processes. Released at
// commit/rollback.
func lockDocument(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 42))", id.String())
	if err != nil {
		return fmt.Errorf("acquire document lock: %w", err)
	}
	return nil
}

func (s *PgStore) ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", models.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	if err := lockDocument(ctx, tx, doc.ID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorage, err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO documents (id, tenant_slug, title, source, status, raw_text, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET title = $3, source = $4, status = $5, raw_text = $6, metadata = $7
		 WHERE documents.tenant_slug = $2`,
		doc.ID, doc.TenantSlug, doc.Title, doc.Source, doc.Status, doc.Text, doc.Metadata,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert document: %v", models.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s belongs to another tenant", models.ErrConflict, doc.ID)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM document_chunks WHERE document_id = $1 AND tenant_slug = $2",
		doc.ID, doc.TenantSlug,
	); err != nil {
		return fmt.Errorf("%w: clear chunks: %v", models.ErrStorage, err)
	}

	for _, c := range chunks {
		var embedding any
		if c.Embedding != nil {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, tenant_slug, ordinal, content, embedding, token_count, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.DocumentID, c.TenantSlug, c.Ordinal, c.Content, embedding, c.TokenCount, c.Metadata,
		); err != nil {
			return fmt.Errorf("%w: insert chunk %d: %v", models.ErrStorage, c.Ordinal, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", models.ErrStorage, err)
	}
	return nil
}

func (s *PgStore) Document(ctx context.Context, tenantSlug string, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_slug, title, source, status, raw_text, metadata, created_at
		 FROM documents WHERE id = $1 AND tenant_slug = $2`,
		id, tenantSlug,
	).Scan(&doc.ID, &doc.TenantSlug, &doc.Title, &doc.Source, &doc.Status, &doc.Text, &doc.Metadata, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get document: %v", models.ErrStorage, err)
	}
	return &doc, nil
}

func (s *PgStore) Documents(ctx context.Context, tenantSlug string, limit, offset int) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_slug, title, source, status, raw_text, metadata, created_at
		 FROM documents WHERE tenant_slug = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantSlug, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.TenantSlug, &doc.Title, &doc.Source, &doc.Status, &doc.Text, &doc.Metadata, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", models.ErrStorage, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PgStore) ChunksByDocument(ctx context.Context, tenantSlug string, id uuid.UUID) ([]models.Chunk, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, tenant_slug, ordinal, content, token_count, metadata, created_at
		 FROM document_chunks WHERE document_id = $1 AND tenant_slug = $2
		 ORDER BY ordinal`,
		id, tenantSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.TenantSlug, &c.Ordinal, &c.Content, &c.TokenCount, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", models.ErrStorage, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PgStore) VectorSearch(ctx context.Context, scope Scope, query []float32, limit int) ([]SearchResult, error) {
	sql := `SELECT id, document_id, ordinal, content, metadata,
	               1 - (embedding <=> $1) AS score
	        FROM document_chunks
	        WHERE tenant_slug = $2 AND embedding IS NOT NULL`
	args := []any{pgvector.NewVector(query), scope.TenantSlug}
	if scope.DocumentID != uuid.Nil {
		sql += " AND document_id = $3 ORDER BY embedding <=> $1 LIMIT $4"
		args = append(args, scope.DocumentID, limit)
	} else {
		sql += " ORDER BY embedding <=> $1 LIMIT $3"
		args = append(args, limit)
	}

	return s.queryResults(ctx, "vector search", sql, args)
}

func (s *PgStore) LexicalSearch(ctx context.Context, scope Scope, query string, limit int) ([]SearchResult, error) {
	sql := `SELECT id, document_id, ordinal, content, metadata,
	               ts_rank(tsv, plainto_tsquery('simple', $1))::float8 AS score
	        FROM document_chunks
	        WHERE tenant_slug = $2 AND tsv @@ plainto_tsquery('simple', $1)`
	args := []any{query, scope.TenantSlug}
	if scope.DocumentID != uuid.Nil {
		sql += " AND document_id = $3 ORDER BY score DESC, ordinal LIMIT $4"
		args = append(args, scope.DocumentID, limit)
	} else {
		sql += " ORDER BY score DESC, ordinal LIMIT $3"
		args = append(args, limit)
	}

	return s.queryResults(ctx, "lexical search", sql, args)
}

func (s *PgStore) queryResults(ctx context.Context, op, sql string, args []any) ([]SearchResult, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrStorage, op, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Ordinal, &r.Content, &r.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("%w: scan %s result: %v", models.ErrStorage, op, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PgStore) DeleteDocument(ctx context.Context, tenantSlug string, id uuid.UUID) (DeleteResult, error) {
	var res DeleteResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: begin tx: %v", models.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	if err := lockDocument(ctx, tx, id); err != nil {
		return res, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}

	chunksTag, err := tx.Exec(ctx,
		"DELETE FROM document_chunks WHERE document_id = $1 AND tenant_slug = $2",
		id, tenantSlug,
	)
	if err != nil {
		return res, fmt.Errorf("%w: delete chunks: %v", models.ErrStorage, err)
	}

	feedbackTag, err := tx.Exec(ctx,
		"DELETE FROM feedback WHERE document_id = $1 AND tenant_slug = $2",
		id, tenantSlug,
	)
	if err != nil {
		return res, fmt.Errorf("%w: delete feedback: %v", models.ErrStorage, err)
	}

	docTag, err := tx.Exec(ctx,
		"DELETE FROM documents WHERE id = $1 AND tenant_slug = $2",
		id, tenantSlug,
	)
	if err != nil {
		return res, fmt.Errorf("%w: delete document: %v", models.ErrStorage, err)
	}
	if docTag.RowsAffected() == 0 {
		return res, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("%w: commit delete: %v", models.ErrStorage, err)
	}

	res.ChunksDeleted = chunksTag.RowsAffected()
	res.FeedbackDeleted = feedbackTag.RowsAffected()
	return res, nil
}
