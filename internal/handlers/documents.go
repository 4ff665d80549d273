package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"companion-ai/internal/contextutil"
	"companion-ai/internal/indexer"
	"companion-ai/internal/storage"
)

// DocumentsHandler handles HTTP requests for document ingestion and deletion.
type DocumentsHandler struct {
	pipeline *indexer.Pipeline
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(pipeline *indexer.Pipeline) *DocumentsHandler {
	return &DocumentsHandler{pipeline: pipeline}
}

// IngestRequest represents the HTTP request payload for document ingestion.
//
// swagger:model IngestRequest
type IngestRequest struct {
	OrgID      string `json:"org_id"`
	SourceID   string `json:"source_id,omitempty"`
	URI        string `json:"uri"`
	SourceType string `json:"source_type,omitempty"`
	// Content is the raw markdown content of the document.
	Content string `json:"content"`
}

// IngestResponse represents the HTTP response payload for document ingestion.
//
// swagger:model IngestResponse
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Chunks     int    `json:"chunks"`
	// Skipped is true when the content hash was unchanged and nothing was re-indexed.
	Skipped bool `json:"skipped"`
}

// Ingest handles document ingestion requests.
//
// swagger:route POST /api/v1/documents ingestDocument
//
// # Ingest a document into the knowledge base
//
// Extracts text, chunks it, embeds the chunks and indexes them for retrieval.
// Re-submitting unchanged content is a no-op.
//
// ---
// responses:
//
//	'200':
//	  description: Document ingested (or skipped as unchanged)
//	  schema:
//	    "$ref": "#/definitions/IngestResponse"
//	'400':
//	  description: Bad request (missing fields or empty content)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.OrgID == "" {
		writeError(w, http.StatusBadRequest, "Org ID is required")
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "URI is required")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	result, err := h.pipeline.IngestDocument(ctx, indexer.IngestRequest{
		OrgID:      req.OrgID,
		SourceID:   req.SourceID,
		URI:        req.URI,
		SourceType: req.SourceType,
		Content:    []byte(req.Content),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to ingest document", "uri", req.URI, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to ingest document")
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		DocumentID: result.DocumentID,
		Title:      result.Title,
		Chunks:     result.Chunks,
		Skipped:    result.Skipped,
	})
}

// Delete handles document deletion requests.
//
// swagger:route DELETE /api/v1/documents/{id} deleteDocument
//
// # Delete a document from the knowledge base
//
// Removes the document, its chunks and its vectors. The document must belong
// to the org given in the org_id query parameter.
//
// ---
// responses:
//
//	'204':
//	  description: Document deleted
//	'404':
//	  description: Document not found in this org
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	documentID := chi.URLParam(r, "id")
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "org_id query parameter is required")
		return
	}

	if err := h.pipeline.DeleteDocument(ctx, orgID, documentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		logger.ErrorContext(ctx, "failed to delete document", "document_id", documentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
