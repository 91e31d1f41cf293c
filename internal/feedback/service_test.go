package feedback

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/cache"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/usage"
)

func newService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store, usage.NewReporter(cache.NewMemoryStore())), store
}

func TestRecordIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	docID := uuid.New()

	req := RecordRequest{
		TenantSlug: "acme",
		Query:      "what is the warranty?",
		DocumentID: docID,
		Rating:     models.RatingHelpful,
	}

	first, err := svc.Record(ctx, req)
	require.NoError(t, err)

	req.Rating = models.RatingNotHelpful
	second, err := svc.Record(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	stats, err := svc.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByRating.Helpful)
	assert.Equal(t, int64(1), stats.ByRating.NotHelpful)

	counts := stats.ByDocument[docID.String()]
	assert.Equal(t, int64(1), counts.Helpful)
	assert.Equal(t, int64(1), counts.NotHelpful)
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	docID := uuid.New()

	cases := []RecordRequest{
		{TenantSlug: "Bad Slug!", Query: "q", DocumentID: docID, Rating: models.RatingHelpful},
		{TenantSlug: "acme", DocumentID: docID, Rating: models.RatingHelpful},
		{TenantSlug: "acme", Query: "q", Rating: models.RatingHelpful},
		{TenantSlug: "acme", Query: "q", DocumentID: docID, Rating: "meh"},
	}
	for _, req := range cases {
		_, err := svc.Record(ctx, req)
		assert.ErrorIs(t, err, models.ErrValidation)
	}
}

func TestStatsAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Record(ctx, RecordRequest{
		TenantSlug: "acme", Query: "q", DocumentID: uuid.New(), Rating: models.RatingHelpful,
	})
	require.NoError(t, err)
	_, err = svc.Record(ctx, RecordRequest{
		TenantSlug: "globex", Query: "q", DocumentID: uuid.New(), Rating: models.RatingNotHelpful,
	})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Zero(t, stats.ByRating.NotHelpful)
}

func TestRecentIsCrossTenantAndNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Record(ctx, RecordRequest{
		TenantSlug: "acme", Query: "first", DocumentID: uuid.New(), Rating: models.RatingHelpful,
	})
	require.NoError(t, err)
	_, err = svc.Record(ctx, RecordRequest{
		TenantSlug: "globex", Query: "second", DocumentID: uuid.New(), Rating: models.RatingHelpful,
	})
	require.NoError(t, err)

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Query)
	assert.Equal(t, "globex", recent[0].TenantSlug)
	assert.Equal(t, "first", recent[1].Query)

	capped, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, "second", capped[0].Query)
}

func TestPurgeByDocument(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()
	docID := uuid.New()

	for range 3 {
		_, err := svc.Record(ctx, RecordRequest{
			TenantSlug: "acme", Query: "q", DocumentID: docID, Rating: models.RatingHelpful,
		})
		require.NoError(t, err)
	}
	_, err := svc.Record(ctx, RecordRequest{
		TenantSlug: "acme", Query: "q", DocumentID: uuid.New(), Rating: models.RatingHelpful,
	})
	require.NoError(t, err)

	purged := store.PurgeByDocument("acme", docID)
	assert.Equal(t, int64(3), purged)

	stats, err := svc.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}
