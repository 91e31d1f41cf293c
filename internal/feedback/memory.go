package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

// MemoryStore is the in-process implementation used when no database is
// configured. It also satisfies vectorstore.FeedbackPurger so the
// in-memory document store can cascade deletes into it.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []models.Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, fb *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	s.rows = append(s.rows, *fb)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context, tenantSlug string) (*models.FeedbackStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.FeedbackStats{ByDocument: make(map[string]models.RatingCounts)}
	for _, fb := range s.rows {
		if fb.TenantSlug != tenantSlug {
			continue
		}
		stats.Total++
		counts := stats.ByDocument[fb.DocumentID.String()]
		switch fb.Rating {
		case models.RatingHelpful:
			stats.ByRating.Helpful++
			counts.Helpful++
		case models.RatingNotHelpful:
			stats.ByRating.NotHelpful++
			counts.NotHelpful++
		}
		stats.ByDocument[fb.DocumentID.String()] = counts
	}
	return stats, nil
}

func (s *MemoryStore) Recent(_ context.Context, n int) ([]models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.rows) {
		n = len(s.rows)
	}
	out := make([]models.Feedback, 0, n)
	for i := len(s.rows) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.rows[i])
	}
	return out, nil
}

// PurgeByDocument removes every row for the document and reports how many
// went away. Called by the in-memory document store mid-delete.
func (s *MemoryStore) PurgeByDocument(tenantSlug string, documentID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	var purged int64
	for _, fb := range s.rows {
		if fb.TenantSlug == tenantSlug && fb.DocumentID == documentID {
			purged++
			continue
		}
		kept = append(kept, fb)
	}
	s.rows = kept
	return purged
}
