package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"

	"companion-ai/internal/contextutil"
	"companion-ai/internal/llm"
	"companion-ai/internal/storage"
	"companion-ai/internal/vectorstore"
)

const (
	// Chunking defaults tuned for 512-token embedding models.
	chunkMaxTokens     = 400
	chunkOverlapTokens = 50
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	OrgID      string
	SourceID   string
	URI        string
	SourceType string
	Content    []byte
}

// IngestResult reports what the pipeline did with a document.
type IngestResult struct {
	DocumentID string
	Title      string
	Chunks     int
	Skipped    bool // content hash unchanged, nothing re-indexed
}

// Pipeline orchestrates the ingestion of documents into SQLite and Qdrant.
type Pipeline struct {
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	embedder    *llm.EmbeddingsClient
	vectorStore vectorstore.VectorStore
	collection  string
	// embeddingModel is the model the collection was built with. Vectors
	// tagged with any other model are refused so mock and real embeddings
	// never mix in one collection.
	embeddingModel string
	extractor      *MarkdownExtractor
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	embedder *llm.EmbeddingsClient,
	vectorStore vectorstore.VectorStore,
	collection string,
	embeddingModel string,
) *Pipeline {
	return &Pipeline{
		docRepo:        docRepo,
		chunkRepo:      chunkRepo,
		embedder:       embedder,
		vectorStore:    vectorStore,
		collection:     collection,
		embeddingModel: embeddingModel,
		extractor:      NewMarkdownExtractor(),
	}
}

// IngestDocument ingests a single document: hash check, chunking, embedding,
// then storage in both SQLite and the vector store. Re-ingesting a changed
// document deletes its old chunks first.
func (p *Pipeline) IngestDocument(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.OrgID == "" {
		return nil, fmt.Errorf("org ID is required")
	}
	if req.URI == "" {
		return nil, fmt.Errorf("document URI is required")
	}

	hash := sha256.Sum256(req.Content)
	hashHex := fmt.Sprintf("%x", hash)

	existing, err := p.docRepo.GetBySource(ctx, req.OrgID, req.SourceID, req.URI)
	if err != nil && err != storage.ErrNotFound {
		return nil, fmt.Errorf("failed to check existing document: %w", err)
	}

	if existing != nil && existing.Hash == hashHex {
		logger.DebugContext(ctx, "skipping unchanged document", "uri", req.URI, "hash", hashHex)
		return &IngestResult{DocumentID: existing.ID, Title: existing.Title, Skipped: true}, nil
	}

	title, plain := p.extractor.Extract(req.Content, req.URI)

	chunks := ChunkText(plain, chunkMaxTokens, chunkOverlapTokens)
	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "uri", req.URI)
		return nil, fmt.Errorf("document produced no indexable content")
	}

	docID := uuid.New().String()
	if existing != nil {
		docID = existing.ID
	}

	doc := &storage.DocumentRecord{
		ID:         docID,
		OrgID:      req.OrgID,
		SourceID:   req.SourceID,
		URI:        req.URI,
		Title:      title,
		SourceType: req.SourceType,
		Hash:       hashHex,
	}
	if err := p.docRepo.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	if existing != nil {
		if err := p.deleteChunks(ctx, docID); err != nil {
			return nil, err
		}
	}

	results, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	now := time.Now().Unix()
	var chunkRecords []*storage.ChunkRecord
	var points []vectorstore.Point

	for i, res := range results {
		if res.Err != nil {
			logger.WarnContext(ctx, "skipping chunk that failed to embed", "uri", req.URI, "chunk_index", i, "error", res.Err)
			continue
		}
		if res.Embedding.Model != p.embeddingModel {
			logger.WarnContext(ctx, "skipping chunk embedded with wrong model",
				"uri", req.URI, "chunk_index", i, "model", res.Embedding.Model, "expected", p.embeddingModel)
			continue
		}

		chunkID := uuid.New().String()

		chunkRecords = append(chunkRecords, &storage.ChunkRecord{
			ID:             chunkID,
			DocumentID:     docID,
			OrgID:          req.OrgID,
			ChunkIndex:     i,
			Text:           chunks[i],
			TokenCount:     estimateTokens(chunks[i]),
			EmbeddingModel: res.Embedding.Model,
		})

		points = append(points, vectorstore.Point{
			ID:  chunkID,
			Vec: res.Embedding.Values,
			Meta: map[string]any{
				"org_id":      req.OrgID,
				"document_id": docID,
				"source_id":   req.SourceID,
				"source_type": req.SourceType,
				"uri":         req.URI,
				"title":       title,
				"chunk_index": i,
				"updated_at":  now,
			},
		})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("all %d chunks failed to embed", len(chunks))
	}

	for _, chunkRecord := range chunkRecords {
		if err := p.chunkRepo.Insert(ctx, chunkRecord); err != nil {
			return nil, fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	logger.InfoContext(ctx, "ingested document", "uri", req.URI, "chunks", len(points), "title", title)
	return &IngestResult{DocumentID: docID, Title: title, Chunks: len(points)}, nil
}

// DeleteDocument removes a document, its chunks, and its vectors.
// The document must belong to the given org.
func (p *Pipeline) DeleteDocument(ctx context.Context, orgID, documentID string) error {
	if orgID == "" {
		return fmt.Errorf("org ID is required")
	}

	doc, err := p.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if doc.OrgID != orgID {
		return storage.ErrNotFound
	}

	if err := p.deleteChunks(ctx, documentID); err != nil {
		return err
	}

	if err := p.docRepo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

// deleteChunks removes a document's chunks from both stores.
func (p *Pipeline) deleteChunks(ctx context.Context, documentID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	chunkIDs, err := p.chunkRepo.ListIDsByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list chunk IDs: %w", err)
	}
	if len(chunkIDs) == 0 {
		return nil
	}

	if err := p.vectorStore.Delete(ctx, p.collection, chunkIDs); err != nil {
		// Stale vectors get overwritten or orphaned; the relational store
		// stays the source of truth.
		logger.WarnContext(ctx, "failed to delete vectors", "count", len(chunkIDs), "error", err)
	}

	if err := p.chunkRepo.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	return nil
}
