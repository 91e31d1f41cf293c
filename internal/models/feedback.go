package models

import (
	"time"

	"github.com/google/uuid"
)

type Rating string

const (
	RatingHelpful    Rating = "helpful"
	RatingNotHelpful Rating = "not_helpful"
)

func (r Rating) Valid() bool {
	return r == RatingHelpful || r == RatingNotHelpful
}

// Feedback ties a quality rating to a query and document. Rows are
// append-only; repeated submissions for the same query create new records
// so trends stay visible.
type Feedback struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	TenantSlug string            `json:"tenant_slug" db:"tenant_slug"`
	Query      string            `json:"query" db:"query"`
	DocumentID uuid.UUID         `json:"document_id" db:"document_id"`
	Rating     Rating            `json:"rating" db:"rating"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

type RatingCounts struct {
	Helpful    int64 `json:"helpful"`
	NotHelpful int64 `json:"not_helpful"`
}

type FeedbackStats struct {
	Total      int64                   `json:"total"`
	ByRating   RatingCounts            `json:"by_rating"`
	ByDocument map[string]RatingCounts `json:"by_document"`
}
