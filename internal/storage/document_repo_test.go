package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return db
}

func TestDocumentRepo_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)

	doc := &DocumentRecord{
		ID:         "doc-1",
		OrgID:      "org-1",
		SourceID:   "upload",
		URI:        "docs/onboarding.md",
		Title:      "Onboarding",
		SourceType: "upload",
		Hash:       "abc123",
	}

	if err := repo.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Onboarding" {
		t.Errorf("GetByID() Title = %v, want Onboarding", got.Title)
	}
	if got.OrgID != "org-1" {
		t.Errorf("GetByID() OrgID = %v, want org-1", got.OrgID)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("GetByID() UpdatedAt should not be zero")
	}
}

func TestDocumentRepo_UpsertConflictUpdates(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)

	doc := &DocumentRecord{
		ID:         "doc-1",
		OrgID:      "org-1",
		SourceID:   "upload",
		URI:        "docs/policy.md",
		Title:      "Policy v1",
		SourceType: "upload",
		Hash:       "hash-1",
	}
	if err := repo.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Same (org, source, uri) with a new ID should update, not duplicate.
	updated := &DocumentRecord{
		ID:         "doc-2",
		OrgID:      "org-1",
		SourceID:   "upload",
		URI:        "docs/policy.md",
		Title:      "Policy v2",
		SourceType: "upload",
		Hash:       "hash-2",
	}
	if err := repo.Upsert(context.Background(), updated); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}

	got, err := repo.GetBySource(context.Background(), "org-1", "upload", "docs/policy.md")
	if err != nil {
		t.Fatalf("GetBySource() error = %v", err)
	}
	if got.ID != "doc-1" {
		t.Errorf("Upsert() conflict should keep original ID, got %v", got.ID)
	}
	if got.Title != "Policy v2" {
		t.Errorf("Upsert() conflict should update title, got %v", got.Title)
	}
	if got.Hash != "hash-2" {
		t.Errorf("Upsert() conflict should update hash, got %v", got.Hash)
	}
}

func TestDocumentRepo_GetBySource_OrgScoped(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)

	doc := &DocumentRecord{
		ID:         "doc-1",
		OrgID:      "org-1",
		SourceID:   "upload",
		URI:        "docs/shared-name.md",
		SourceType: "upload",
		Hash:       "h",
	}
	if err := repo.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Another org must not see org-1's document.
	_, err := repo.GetBySource(context.Background(), "org-2", "upload", "docs/shared-name.md")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBySource() for other org = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_Delete_CascadesChunks(t *testing.T) {
	db := newTestDB(t)
	docRepo := NewDocumentRepo(db)
	chunkRepo := NewChunkRepo(db)

	doc := &DocumentRecord{
		ID:         "doc-1",
		OrgID:      "org-1",
		SourceID:   "upload",
		URI:        "docs/a.md",
		SourceType: "upload",
		Hash:       "h",
	}
	if err := docRepo.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	chunk := &ChunkRecord{ID: "chunk-1", DocumentID: "doc-1", OrgID: "org-1", ChunkIndex: 0, Text: "text"}
	if err := chunkRepo.Insert(context.Background(), chunk); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := docRepo.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	ids, err := chunkRepo.ListIDsByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListIDsByDocument() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Delete() should cascade to chunks, got %d remaining", len(ids))
	}
}
