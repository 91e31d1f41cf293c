package cache

import (
	"context"
	"time"
)

// Store is a namespaced key-value cache with TTL, counters, and
// prefix-scoped invalidation. Writes are idempotent upserts; concurrent
// writers for the same key are last-write-wins.
type Store interface {
	// Get unmarshals the value at key into dest. Returns false on a miss
	// or an expired entry.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPrefix removes every entry whose key starts with prefix and
	// returns how many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	// Clear wipes the whole namespace, counters included.
	Clear(ctx context.Context) (int64, error)

	// Len counts live entries in the namespace.
	Len(ctx context.Context) (int64, error)

	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Counter(ctx context.Context, key string) (int64, error)
}
