package models

import "errors"

// Sentinel errors for the engine's failure taxonomy. Services wrap these
// with fmt.Errorf("...: %w", err); the HTTP layer matches with errors.Is.
var (
	// ErrValidation marks a malformed request. Never retried.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound marks an unknown document/tenant combination.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a per-document lock is held by another
	// reprocess or delete. Callers retry after backoff.
	ErrConflict = errors.New("document is being modified")

	// ErrStorage marks a durable-store failure. Fatal for the current
	// request; writes are transactional so existing data stays intact.
	ErrStorage = errors.New("storage failure")

	// ErrEmbeddingUnavailable is surfaced after bounded retries against the
	// embedding provider. Ingestion marks the affected chunks and continues;
	// queries fall back to lexical-only retrieval.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrGenerationUnavailable means answer synthesis degraded to raw
	// evidence because the generation provider could not be reached.
	ErrGenerationUnavailable = errors.New("generation provider unavailable")
)
