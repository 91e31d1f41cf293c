package feedback

import (
	"context"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
)

// Store persists feedback rows. Insert is append-only; there is no update
// path at all.
type Store interface {
	Insert(ctx context.Context, fb *models.Feedback) error

	// Stats aggregates ratings for one tenant, by rating and by document.
	Stats(ctx context.Context, tenantSlug string) (*models.FeedbackStats, error)

	// Recent returns the latest n rows across all tenants, newest first.
	// This feeds the internal quality dashboard and is the single
	// intentionally cross-tenant read in the system.
	Recent(ctx context.Context, n int) ([]models.Feedback, error)
}
