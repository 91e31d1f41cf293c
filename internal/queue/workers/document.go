package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/queue"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/rag"
)

// DocumentWorker runs the chunk-embed-index sequence for documents whose
// ingestion was deferred to the queue. Process and reprocess tasks share
// one handler: both rebuild the chunk set from the stored raw text.
type DocumentWorker struct {
	engine *rag.Engine
}

func NewDocumentWorker(engine *rag.Engine) *DocumentWorker {
	return &DocumentWorker{engine: engine}
}

func (w *DocumentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	slog.Info("processing document", "task", t.Type(), "document_id", docID, "tenant", payload.TenantSlug)

	result, err := w.engine.Reprocess(ctx, payload.TenantSlug, docID)
	switch {
	case errors.Is(err, models.ErrConflict):
		// Another worker or an API call holds the document lock; let
		// asynq retry with backoff.
		return fmt.Errorf("document %s busy: %w", docID, err)
	case errors.Is(err, models.ErrNotFound):
		// Deleted between enqueue and execution. Nothing to do.
		slog.Warn("document gone before processing", "document_id", docID)
		return nil
	case err != nil:
		return fmt.Errorf("process document %s: %w", docID, err)
	}

	slog.Info("document processed",
		"document_id", docID,
		"chunks", result.ChunkCount,
		"failed", result.ChunksFailed,
		"status", result.Status)
	return nil
}
