package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/queue"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/rag"
)

type DocumentHandler struct {
	engine *rag.Engine
	queue  *queue.Client // nil when no queue backend is configured
}

func NewDocumentHandler(engine *rag.Engine, qc *queue.Client) *DocumentHandler {
	return &DocumentHandler{engine: engine, queue: qc}
}

type ingestRequest struct {
	TenantSlug string            `json:"tenant_slug"`
	Title      string            `json:"title"`
	Source     string            `json:"source,omitempty"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Async      bool              `json:"async,omitempty"`
}

// Ingest accepts a document and indexes it. With async set and a queue
// available, the document is stored pending and processed by a worker;
// otherwise processing happens inline.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ingest := rag.IngestRequest{
		TenantSlug: req.TenantSlug,
		Title:      req.Title,
		Source:     req.Source,
		Text:       req.Text,
		Metadata:   req.Metadata,
	}

	if req.Async && h.queue != nil {
		result, err := h.engine.Stash(r.Context(), ingest)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.queue.EnqueueDocumentProcess(queue.DocumentTaskPayload{
			DocumentID: result.DocumentID.String(),
			TenantSlug: req.TenantSlug,
		}); err != nil {
			writeError(w, fmt.Errorf("enqueue processing: %w", err))
			return
		}
		writeJSON(w, http.StatusAccepted, result)
		return
	}

	result, err := h.engine.Ingest(r.Context(), ingest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	docs, err := h.engine.Documents(r.Context(), r.URL.Query().Get("tenant"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid document id", models.ErrValidation))
		return
	}

	doc, err := h.engine.Document(r.Context(), r.URL.Query().Get("tenant"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type reprocessRequest struct {
	TenantSlug string `json:"tenant_slug"`
	Async      bool   `json:"async,omitempty"`
}

func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid document id", models.ErrValidation))
		return
	}

	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Async && h.queue != nil {
		if err := h.queue.EnqueueDocumentReprocess(queue.DocumentTaskPayload{
			DocumentID: id.String(),
			TenantSlug: req.TenantSlug,
		}); err != nil {
			writeError(w, fmt.Errorf("enqueue reprocessing: %w", err))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"document_id": id.String(), "status": "queued"})
		return
	}

	result, err := h.engine.Reprocess(r.Context(), req.TenantSlug, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid document id", models.ErrValidation))
		return
	}

	summary, err := h.engine.Delete(r.Context(), r.URL.Query().Get("tenant"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
