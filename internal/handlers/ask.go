package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"companion-ai/internal/contextutil"
	"companion-ai/internal/rag"
)

// AskHandler handles HTTP requests for grounded question answering.
type AskHandler struct {
	ragEngine rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(ragEngine rag.Engine) *AskHandler {
	return &AskHandler{ragEngine: ragEngine}
}

// AskRequest represents the HTTP request payload for a grounded query.
// This mirrors rag.AnswerRequest but is defined here for HTTP layer separation.
//
// swagger:model AskRequest
type AskRequest struct {
	Query         string   `json:"query"`
	OrgID         string   `json:"org_id"`
	UserID        string   `json:"user_id,omitempty"`
	MaxChunks     int      `json:"max_chunks,omitempty"`
	SourceTypes   []string `json:"source_types,omitempty"`
	IncludeRecent bool     `json:"include_recent,omitempty"`
}

// AskResponse represents the HTTP response payload for a grounded query.
//
// swagger:model AskResponse
type AskResponse struct {
	// The generated answer, grounded in the retrieved context
	Answer string `json:"answer"`

	// Citations referencing the chunks backing the answer, in rank order
	Citations []rag.Citation `json:"citations"`

	// Number of chunks used as context
	RetrievedChunks int `json:"retrieved_chunks"`

	// Confidence score in [0, 1]
	Confidence float64 `json:"confidence"`
}

// ServeHTTP handles HTTP requests for grounded queries.
//
// swagger:route POST /api/v1/ask askQuestion
//
// # Ask a question over the organization's knowledge base
//
// Retrieves relevant chunks scoped to the caller's organization and generates
// a grounded answer with citations and a confidence score.
//
// ---
// responses:
//
//	'200':
//	  description: Answer with citations (possibly a degraded fallback)
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Bad request (missing query or org_id)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		logger.WarnContext(ctx, "empty query in request")
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	if req.OrgID == "" {
		logger.WarnContext(ctx, "missing org ID in request")
		writeError(w, http.StatusBadRequest, "Org ID is required")
		return
	}

	if req.MaxChunks < 0 {
		req.MaxChunks = 0
	}

	ragResp, err := h.ragEngine.Answer(ctx, rag.AnswerRequest{
		Query:         req.Query,
		OrgID:         req.OrgID,
		UserID:        req.UserID,
		MaxChunks:     req.MaxChunks,
		SourceTypes:   req.SourceTypes,
		IncludeRecent: req.IncludeRecent,
	})
	if err != nil {
		logger.ErrorContext(ctx, "grounded query failed", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to process query")
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:          ragResp.Answer,
		Citations:       ragResp.Citations,
		RetrievedChunks: ragResp.RetrievedChunks,
		Confidence:      ragResp.Confidence,
	})
}
