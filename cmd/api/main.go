package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"companion-ai/internal/config"
	"companion-ai/internal/http"
	"companion-ai/internal/indexer"
	"companion-ai/internal/llm"
	"companion-ai/internal/rag"
	"companion-ai/internal/storage"
	"companion-ai/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API provides multi-tenant RAG (Retrieval-Augmented Generation)
// functionality over an organization's ingested documents: grounded question
// answering with citations, document ingestion and feedback-weighted
// retrieval.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Companion AI API
//   description: |
//     Grounded question answering over ingested organizational documents.
//     Documents are chunked, embedded and indexed per organization; answers
//     carry citations and a confidence score, and user feedback reshapes
//     future retrieval ranking.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	feedbackRepo := storage.NewFeedbackRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbedding, err := embedder.EmbedText(ctx, "test")
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbedding.Values) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbedding.Values))
	}

	// The collection is bound to one embedding model. With no embedding
	// service configured the embedder produces mock vectors, so the
	// collection must be tagged accordingly.
	embeddingModel := cfg.EmbeddingModelName
	if cfg.EmbeddingBaseURL == "" {
		embeddingModel = llm.MockModel
		slog.Warn("No embedding service configured, using deterministic mock embeddings")
	}
	slog.Info("Embedding client validated", "model", embeddingModel, "vector_size", cfg.QdrantVectorSize)

	// Create ingestion pipeline
	pipeline := indexer.NewPipeline(
		docRepo,
		chunkRepo,
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		embeddingModel,
	)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Create feedback adjuster and RAG engine
	adjuster := rag.NewAdjuster(feedbackRepo)
	ragEngine := rag.NewEngine(
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		chunkRepo,
		adjuster,
		llmClient,
	)
	slog.Info("RAG engine initialized")

	// Create router with dependencies
	router := http.NewRouter(&http.Deps{
		RAGEngine:      ragEngine,
		Pipeline:       pipeline,
		FeedbackRepo:   feedbackRepo,
		VectorStore:    vectorStore,
		CollectionName: cfg.QdrantCollection,
	})

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
