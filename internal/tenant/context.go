package tenant

import (
	"context"
	"regexp"
)

// Tenants are opaque slugs owned by the external identity collaborator;
// the engine only uses them as isolation namespaces.

type contextKey string

const slugKey contextKey = "tenant_slug"

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

func WithSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, slugKey, slug)
}

func SlugFromContext(ctx context.Context) string {
	s, _ := ctx.Value(slugKey).(string)
	return s
}
