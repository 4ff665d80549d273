package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_stores.go -package=mocks companion-ai/internal/storage DocumentStore,ChunkStore,FeedbackStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// GetByID gets a document by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// GetBySource gets a document by org, source and URI. Returns ErrNotFound if not found.
	GetBySource(ctx context.Context, orgID, sourceID, uri string) (*DocumentRecord, error)
	// Upsert inserts a new document or updates an existing one keyed by (org_id, source_id, uri).
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// Delete removes a document. Chunks cascade.
	Delete(ctx context.Context, id string) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	return r.queryOne(ctx,
		"SELECT id, org_id, source_id, uri, title, source_type, hash, updated_at FROM documents WHERE id = ?",
		id)
}

// GetBySource gets a document by org, source and URI. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetBySource(ctx context.Context, orgID, sourceID, uri string) (*DocumentRecord, error) {
	return r.queryOne(ctx,
		"SELECT id, org_id, source_id, uri, title, source_type, hash, updated_at FROM documents WHERE org_id = ? AND source_id = ? AND uri = ?",
		orgID, sourceID, uri)
}

func (r *DocumentRepo) queryOne(ctx context.Context, query string, args ...any) (*DocumentRecord, error) {
	var doc DocumentRecord
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&doc.ID, &doc.OrgID, &doc.SourceID, &doc.URI, &doc.Title, &doc.SourceType, &doc.Hash, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.UpdatedAt, err = parseSQLiteTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}

	return &doc, nil
}

// Upsert inserts a new document or updates an existing one.
// Conflicts on (org_id, source_id, uri) update title, source_type, hash and updated_at.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, org_id, source_id, uri, title, source_type, hash, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (org_id, source_id, uri) DO UPDATE SET
			title = excluded.title,
			source_type = excluded.source_type,
			hash = excluded.hash,
			updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.OrgID, doc.SourceID, doc.URI, doc.Title, doc.SourceType, doc.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Delete removes a document by ID. Chunks are removed by the foreign key cascade.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// parseSQLiteTime parses the DATETIME formats SQLite emits.
func parseSQLiteTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
