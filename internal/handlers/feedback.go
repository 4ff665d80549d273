package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"companion-ai/internal/contextutil"
	"companion-ai/internal/storage"
)

// feedbackRelevance maps a feedback type to the signed relevance delta folded
// into the user's interaction history.
var feedbackRelevance = map[string]float64{
	"good":       1.0,
	"helpful":    0.5,
	"irrelevant": -0.5,
	"bad":        -1.0,
}

// FeedbackHandler handles HTTP requests recording answer feedback.
type FeedbackHandler struct {
	feedbackRepo storage.FeedbackStore
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedbackRepo storage.FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{feedbackRepo: feedbackRepo}
}

// FeedbackRequest represents the HTTP request payload for feedback submission.
//
// swagger:model FeedbackRequest
type FeedbackRequest struct {
	OrgID      string `json:"org_id"`
	UserID     string `json:"user_id"`
	DocumentID string `json:"doc_id"`
	// Type is one of "good", "helpful", "irrelevant", "bad".
	Type string `json:"type"`
}

// FeedbackResponse represents the HTTP response payload for feedback submission.
//
// swagger:model FeedbackResponse
type FeedbackResponse struct {
	ID string `json:"id"`
}

// ServeHTTP handles feedback submission requests.
//
// swagger:route POST /api/v1/feedback submitFeedback
//
// # Record feedback on a retrieved document
//
// Stores the feedback signal and updates the user's interaction history so
// future retrievals are weighted accordingly.
//
// ---
// responses:
//
//	'200':
//	  description: Feedback recorded
//	  schema:
//	    "$ref": "#/definitions/FeedbackResponse"
//	'400':
//	  description: Bad request (missing fields or unknown feedback type)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *FeedbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.OrgID == "" || req.UserID == "" || req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "org_id, user_id and doc_id are required")
		return
	}

	relevance, ok := feedbackRelevance[req.Type]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown feedback type")
		return
	}

	record := &storage.FeedbackRecord{
		ID:         uuid.New().String(),
		OrgID:      req.OrgID,
		UserID:     req.UserID,
		DocumentID: req.DocumentID,
		Type:       req.Type,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.feedbackRepo.Insert(ctx, record); err != nil {
		logger.ErrorContext(ctx, "failed to store feedback", "document_id", req.DocumentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store feedback")
		return
	}

	// Interaction history is secondary to the feedback row itself.
	if err := h.feedbackRepo.RecordAccess(ctx, req.OrgID, req.UserID, req.DocumentID, relevance); err != nil {
		logger.WarnContext(ctx, "failed to update interaction history", "document_id", req.DocumentID, "error", err)
	}

	writeJSON(w, http.StatusOK, FeedbackResponse{ID: record.ID})
}
