package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/models"
	"github.com/DemianGo/laravel-rag-vertex-full-sub004/internal/rag"
)

type QueryHandler struct {
	engine *rag.Engine
}

func NewQueryHandler(engine *rag.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

type queryRequest struct {
	TenantSlug    string           `json:"tenant_slug"`
	DocumentID    string           `json:"document_id,omitempty"` // UUID, "all", or empty
	Query         string           `json:"query"`
	Mode          string           `json:"mode,omitempty"`
	TopK          int              `json:"top_k,omitempty"`
	Threshold     float64          `json:"threshold,omitempty"`
	Strictness    int              `json:"strictness,omitempty"`
	IncludeAnswer *bool            `json:"include_answer,omitempty"`
	Limits        *rag.QueryLimits `json:"limits,omitempty"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	docID := uuid.Nil
	if req.DocumentID != "" && req.DocumentID != "all" {
		parsed, err := uuid.Parse(req.DocumentID)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid document_id %q", models.ErrValidation, req.DocumentID))
			return
		}
		docID = parsed
	}

	limits := rag.QueryLimits{CitationsEnabled: true}
	if req.Limits != nil {
		limits = *req.Limits
	}

	result, err := h.engine.Query(r.Context(), rag.QueryRequest{
		TenantSlug:    req.TenantSlug,
		DocumentID:    docID,
		Query:         req.Query,
		Mode:          req.Mode,
		TopK:          req.TopK,
		Threshold:     req.Threshold,
		Strictness:    req.Strictness,
		IncludeAnswer: req.IncludeAnswer,
		Limits:        limits,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
