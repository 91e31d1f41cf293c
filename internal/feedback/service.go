package feedback

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/tenant"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/usage"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Service validates and records feedback submissions.
type Service struct {
	store Store
	usage *usage.Reporter
}

func NewService(store Store, reporter *usage.Reporter) *Service {
	return &Service{store: store, usage: reporter}
}

type RecordRequest struct {
	TenantSlug string            `json:"tenant_slug"`
	Query      string            `json:"query"`
	DocumentID uuid.UUID         `json:"document_id"`
	Rating     models.Rating     `json:"rating"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Record appends one feedback row. Every submission is a new row, so a
// user rating the same query twice produces two records.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*models.Feedback, error) {
	if !tenant.ValidSlug(req.TenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, req.TenantSlug)
	}
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", models.ErrValidation)
	}
	if req.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("%w: document_id is required", models.ErrValidation)
	}
	if !req.Rating.Valid() {
		return nil, fmt.Errorf("%w: rating must be %q or %q", models.ErrValidation, models.RatingHelpful, models.RatingNotHelpful)
	}

	fb := &models.Feedback{
		ID:         uuid.New(),
		TenantSlug: req.TenantSlug,
		Query:      req.Query,
		DocumentID: req.DocumentID,
		Rating:     req.Rating,
		Metadata:   req.Metadata,
	}
	if err := s.store.Insert(ctx, fb); err != nil {
		return nil, err
	}
	s.usage.Incr(ctx, usage.MetricFeedbackRecorded, 1)
	return fb, nil
}

func (s *Service) Stats(ctx context.Context, tenantSlug string) (*models.FeedbackStats, error) {
	if !tenant.ValidSlug(tenantSlug) {
		return nil, fmt.Errorf("%w: invalid tenant slug %q", models.ErrValidation, tenantSlug)
	}
	return s.store.Stats(ctx, tenantSlug)
}

func (s *Service) Recent(ctx context.Context, n int) ([]models.Feedback, error) {
	if n <= 0 {
		n = defaultRecentLimit
	}
	if n > maxRecentLimit {
		n = maxRecentLimit
	}
	return s.store.Recent(ctx, n)
}
