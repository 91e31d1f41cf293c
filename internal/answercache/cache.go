package answercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/cache"
)

// ScopeAll is the document scope used for queries spanning every document
// in the tenant.
const ScopeAll = "none"

// Key identifies one cached answer. Every field participates in the hash,
// so two tenants asking the same question, or one tenant asking with
// different retrieval parameters, never share an entry.
type Key struct {
	Tenant        string
	DocumentScope string // document UUID, or ScopeAll
	Query         string
	Mode          string
	TopK          int
	Threshold     float64
	Strictness    int
}

// NewKey builds a Key with the query normalized and the scope resolved.
func NewKey(tenant string, documentID uuid.UUID, query, mode string, topK int, threshold float64, strictness int) Key {
	scope := ScopeAll
	if documentID != uuid.Nil {
		scope = documentID.String()
	}
	return Key{
		Tenant:        tenant,
		DocumentScope: scope,
		Query:         NormalizeQuery(query),
		Mode:          mode,
		TopK:          topK,
		Threshold:     threshold,
		Strictness:    strictness,
	}
}

// NormalizeQuery folds case and collapses runs of whitespace so
// insignificant formatting differences hit the same entry.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// canonical serializes the key with a fixed field order. The explicit
// field labels and separators rule out collisions from concatenation
// ambiguity.
func (k Key) canonical() string {
	return fmt.Sprintf("t=%s|d=%s|q=%s|m=%s|k=%d|th=%g|s=%d",
		k.Tenant, k.DocumentScope, k.Query, k.Mode, k.TopK, k.Threshold, k.Strictness)
}

// storageKey keeps tenant and document scope as plaintext prefixes so
// invalidation can delete by prefix without enumerating hashes.
func (k Key) storageKey() string {
	sum := sha256.Sum256([]byte(k.canonical()))
	return k.Tenant + ":" + k.DocumentScope + ":" + hex.EncodeToString(sum[:])
}

// Cache memoizes full query responses. Values are whatever the caller
// hands in; the engine stores its response type and reads it back with
// the same type.
type Cache struct {
	store cache.Store
	ttl   time.Duration
}

func New(store cache.Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key Key, dest any) (bool, error) {
	return c.store.Get(ctx, key.storageKey(), dest)
}

func (c *Cache) Set(ctx context.Context, key Key, value any) error {
	return c.store.Set(ctx, key.storageKey(), value, c.ttl)
}

// InvalidateDocument drops every entry scoped to the document plus every
// all-documents entry for the tenant, since those answers may have drawn
// on the document's chunks.
func (c *Cache) InvalidateDocument(ctx context.Context, tenant string, documentID uuid.UUID) (int64, error) {
	scoped, err := c.store.DeleteByPrefix(ctx, tenant+":"+documentID.String()+":")
	if err != nil {
		return 0, fmt.Errorf("invalidate document scope: %w", err)
	}
	all, err := c.store.DeleteByPrefix(ctx, tenant+":"+ScopeAll+":")
	if err != nil {
		return scoped, fmt.Errorf("invalidate tenant scope: %w", err)
	}
	return scoped + all, nil
}

func (c *Cache) Clear(ctx context.Context) (int64, error) {
	return c.store.Clear(ctx)
}

func (c *Cache) Entries(ctx context.Context) (int64, error) {
	return c.store.Len(ctx)
}
