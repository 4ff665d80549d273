package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FeedbackStore defines the interface for feedback and interaction storage.
type FeedbackStore interface {
	// Insert records a single feedback signal.
	Insert(ctx context.Context, fb *FeedbackRecord) error
	// ListByDocument returns all feedback for a document within the org, newest first,
	// created at or after since.
	ListByDocument(ctx context.Context, orgID, documentID string, since time.Time) ([]FeedbackRecord, error)
	// ListByUser returns all feedback a specific user gave on a document, newest first,
	// created at or after since.
	ListByUser(ctx context.Context, orgID, userID, documentID string, since time.Time) ([]FeedbackRecord, error)
	// GetInteraction returns the interaction row for (org, user, document).
	// Returns ErrNotFound if the user never interacted with the document.
	GetInteraction(ctx context.Context, orgID, userID, documentID string) (*InteractionRecord, error)
	// RecordAccess increments the access counter and folds the given relevance
	// signal into the stored score.
	RecordAccess(ctx context.Context, orgID, userID, documentID string, relevance float64) error
}

// FeedbackRepo provides methods for feedback and interaction operations.
// It implements the FeedbackStore interface.
type FeedbackRepo struct {
	db *sql.DB
}

// NewFeedbackRepo creates a new FeedbackRepo.
func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

// Insert records a single feedback signal.
func (r *FeedbackRepo) Insert(ctx context.Context, fb *FeedbackRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO feedback (id, org_id, user_id, document_id, type, created_at) VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)",
		fb.ID, fb.OrgID, fb.UserID, fb.DocumentID, fb.Type,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ListByDocument returns all feedback for a document within the org, newest first.
func (r *FeedbackRepo) ListByDocument(ctx context.Context, orgID, documentID string, since time.Time) ([]FeedbackRecord, error) {
	return r.queryFeedback(ctx,
		"SELECT id, org_id, user_id, document_id, type, created_at FROM feedback WHERE org_id = ? AND document_id = ? AND created_at >= ? ORDER BY created_at DESC",
		orgID, documentID, since.UTC().Format("2006-01-02 15:04:05"))
}

// ListByUser returns all feedback a specific user gave on a document, newest first.
func (r *FeedbackRepo) ListByUser(ctx context.Context, orgID, userID, documentID string, since time.Time) ([]FeedbackRecord, error) {
	return r.queryFeedback(ctx,
		"SELECT id, org_id, user_id, document_id, type, created_at FROM feedback WHERE org_id = ? AND user_id = ? AND document_id = ? AND created_at >= ? ORDER BY created_at DESC",
		orgID, userID, documentID, since.UTC().Format("2006-01-02 15:04:05"))
}

func (r *FeedbackRepo) queryFeedback(ctx context.Context, query string, args ...any) ([]FeedbackRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []FeedbackRecord
	for rows.Next() {
		var fb FeedbackRecord
		var createdAtStr string
		if err := rows.Scan(&fb.ID, &fb.OrgID, &fb.UserID, &fb.DocumentID, &fb.Type, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.CreatedAt, err = parseSQLiteTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}
		records = append(records, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// GetInteraction returns the interaction row for (org, user, document).
// Returns ErrNotFound if the user never interacted with the document.
func (r *FeedbackRepo) GetInteraction(ctx context.Context, orgID, userID, documentID string) (*InteractionRecord, error) {
	var in InteractionRecord
	var lastAccessedStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT org_id, user_id, document_id, access_count, relevance_score, last_accessed_at FROM interactions WHERE org_id = ? AND user_id = ? AND document_id = ?",
		orgID, userID, documentID,
	).Scan(&in.OrgID, &in.UserID, &in.DocumentID, &in.AccessCount, &in.RelevanceScore, &lastAccessedStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query interaction: %w", err)
	}

	in.LastAccessedAt, err = parseSQLiteTime(lastAccessedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_accessed_at timestamp: %w", err)
	}

	return &in, nil
}

// RecordAccess increments the access counter and folds the given relevance
// signal into the stored score. The stored score is an exponential moving
// average so old signals decay as new ones arrive.
func (r *FeedbackRepo) RecordAccess(ctx context.Context, orgID, userID, documentID string, relevance float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO interactions (org_id, user_id, document_id, access_count, relevance_score, last_accessed_at)
		 VALUES (?, ?, ?, 1, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (org_id, user_id, document_id) DO UPDATE SET
			access_count = access_count + 1,
			relevance_score = relevance_score * 0.8 + excluded.relevance_score * 0.2,
			last_accessed_at = CURRENT_TIMESTAMP`,
		orgID, userID, documentID, relevance,
	)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}
