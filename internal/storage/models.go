package storage

import "time"

// DocumentRecord represents an ingested document in the database.
type DocumentRecord struct {
	ID         string // UUID
	OrgID      string // Owning organization (tenant boundary)
	SourceID   string // External source identifier (connector, upload, etc.)
	URI        string // Canonical location of the source content
	Title      string
	SourceType string // e.g. "upload", "web", "wiki"
	Hash       string // SHA256 hex of the raw content; unchanged hash skips re-ingestion
	UpdatedAt  time.Time
}

// ChunkRecord represents a chunk of document text, indexed for vector search.
type ChunkRecord struct {
	ID             string // UUID (same as vector store point ID)
	DocumentID     string // Foreign key to documents.id
	OrgID          string // Denormalized tenant ID for scoped lookups
	ChunkIndex     int    // Index within document (starts at 0)
	Text           string
	TokenCount     int    // Estimated token count of Text
	EmbeddingModel string // Model that produced the stored vector; empty until embedded
}

// FeedbackRecord represents a single feedback signal on a document.
type FeedbackRecord struct {
	ID         string
	OrgID      string
	UserID     string
	DocumentID string
	Type       string // "good", "helpful", "irrelevant", "bad"
	CreatedAt  time.Time
}

// InteractionRecord tracks a user's interaction history with a document.
type InteractionRecord struct {
	OrgID          string
	UserID         string
	DocumentID     string
	AccessCount    int
	RelevanceScore float64 // Signed personal relevance in [-1, 1]
	LastAccessedAt time.Time
}
