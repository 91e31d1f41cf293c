package feedback

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Insert(ctx context.Context, fb *models.Feedback) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO feedback (id, tenant_slug, query, document_id, rating, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.TenantSlug, fb.Query, fb.DocumentID, fb.Rating, fb.Metadata,
	)
	if err != nil {
		return fmt.Errorf("%w: insert feedback: %v", models.ErrStorage, err)
	}
	return nil
}

func (s *PgStore) Stats(ctx context.Context, tenantSlug string) (*models.FeedbackStats, error) {
	rows, err := s.db.Query(ctx,
		`SELECT document_id, rating, COUNT(*)
		 FROM feedback
		 WHERE tenant_slug = $1
		 GROUP BY document_id, rating`,
		tenantSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: feedback stats: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	stats := &models.FeedbackStats{ByDocument: make(map[string]models.RatingCounts)}
	for rows.Next() {
		var (
			documentID string
			rating     models.Rating
			count      int64
		)
		if err := rows.Scan(&documentID, &rating, &count); err != nil {
			return nil, fmt.Errorf("%w: scan feedback stats: %v", models.ErrStorage, err)
		}
		stats.Total += count
		counts := stats.ByDocument[documentID]
		switch rating {
		case models.RatingHelpful:
			stats.ByRating.Helpful += count
			counts.Helpful += count
		case models.RatingNotHelpful:
			stats.ByRating.NotHelpful += count
			counts.NotHelpful += count
		}
		stats.ByDocument[documentID] = counts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: feedback stats: %v", models.ErrStorage, err)
	}
	return stats, nil
}

func (s *PgStore) Recent(ctx context.Context, n int) ([]models.Feedback, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_slug, query, document_id, rating, metadata, created_at
		 FROM feedback
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: recent feedback: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.TenantSlug, &fb.Query, &fb.DocumentID, &fb.Rating, &fb.Metadata, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan feedback: %v", models.ErrStorage, err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: recent feedback: %v", models.ErrStorage, err)
	}
	return out, nil
}
