package rag

import "time"

// RetrievalCandidate is a chunk pulled from the vector index for one query.
// It never outlives the query: the reranker and feedback adjuster mutate only
// the Score field, BaseScore stays the raw similarity.
type RetrievalCandidate struct {
	ChunkID    string
	DocumentID string
	Text       string
	Title      string
	URI        string
	SourceType string
	ChunkIndex int
	// BaseScore is the raw vector similarity in [-1, 1].
	BaseScore float64
	// Score starts equal to BaseScore and accumulates rerank boosts and
	// feedback adjustments.
	Score float64
	// LastModified is zero when the source carries no modification time,
	// which disables the recency boost for this candidate.
	LastModified time.Time
}

// Citation is a caller-facing reference to a chunk backing an answer.
// Array order is rank order.
type Citation struct {
	DocumentID string  `json:"doc_id"`
	ChunkID    string  `json:"chunk_id"`
	URI        string  `json:"uri"`
	Title      string  `json:"title"`
	Span       string  `json:"span"`
	Score      float64 `json:"score"`
}

// AnswerRequest represents a grounded-answer query.
type AnswerRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
	// OrgID scopes retrieval to one tenant. Required.
	OrgID string `json:"org_id"`
	// UserID enables personalized feedback weighting. Optional.
	UserID string `json:"user_id,omitempty"`
	// MaxChunks is the desired number of context chunks. Defaults to 5, capped at 20.
	MaxChunks int `json:"max_chunks,omitempty"`
	// SourceTypes restricts retrieval to the given source types.
	SourceTypes []string `json:"source_types,omitempty"`
	// IncludeRecent restricts retrieval to recently updated documents.
	IncludeRecent bool `json:"include_recent,omitempty"`
}

// AnswerResponse is the fixed response shape of the orchestrator. Callers
// always get this shape, even when every backend call failed.
type AnswerResponse struct {
	Answer          string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	RetrievedChunks int        `json:"retrieved_chunks"`
	Confidence      float64    `json:"confidence"`
}
