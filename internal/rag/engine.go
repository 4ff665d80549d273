package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"companion-ai/internal/contextutil"
	"companion-ai/internal/llm"
	"companion-ai/internal/storage"
	"companion-ai/internal/vectorstore"
)

const (
	defaultMaxChunks = 5
	maxMaxChunks     = 20

	// Retrieval is deliberately overbroad so the reranker has headroom to
	// discard weak matches.
	retrievalFactor = 2

	insufficientKnowledgeAnswer = "I couldn't find anything relevant in the knowledge base to answer that. " +
		"Try rephrasing the question, or add the documents that cover this topic."

	degradedAnswer = "I wasn't able to generate an answer right now. Please try again in a moment."

	systemPrompt = "You are a knowledge assistant that answers questions using only the provided context " +
		"from the organization's documents. If the context doesn't contain enough information to answer, " +
		"say so. Cite document titles when possible."
)

// QueryEmbedder turns query text into a vector.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) (llm.Embedding, error)
}

// CompletionClient generates a text completion from chat messages.
type CompletionClient interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Engine provides grounded question answering over the indexed documents.
type Engine interface {
	// Answer retrieves relevant chunks for the query and generates a
	// grounded answer with citations and a confidence score.
	Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error)
}

// groundedEngine implements the Engine interface.
type groundedEngine struct {
	embedder    QueryEmbedder
	vectorStore vectorstore.VectorStore
	collection  string
	chunkRepo   storage.ChunkStore
	adjuster    *Adjuster
	llmClient   CompletionClient
}

// NewEngine creates a new grounded-answer engine.
func NewEngine(
	embedder QueryEmbedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	chunkRepo storage.ChunkStore,
	adjuster *Adjuster,
	llmClient CompletionClient,
) Engine {
	return &groundedEngine{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		chunkRepo:   chunkRepo,
		adjuster:    adjuster,
		llmClient:   llmClient,
	}
}

// Answer runs the pipeline: embed, retrieve, adjust, rerank, complete, cite.
// Backend failures degrade to a canned response with confidence 0; only
// caller mistakes (empty query, missing org) surface as errors.
func (e *groundedEngine) Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Query) == "" {
		return AnswerResponse{}, fmt.Errorf("query is required")
	}
	if req.OrgID == "" {
		return AnswerResponse{}, fmt.Errorf("org ID is required")
	}

	maxChunks := req.MaxChunks
	if maxChunks <= 0 {
		maxChunks = defaultMaxChunks
	}
	if maxChunks > maxMaxChunks {
		maxChunks = maxMaxChunks
	}

	logger.InfoContext(ctx, "grounded answer query started",
		"org_id", req.OrgID, "max_chunks", maxChunks, "source_types", req.SourceTypes)

	queryEmbedding, err := e.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return degradedResponse(), nil
	}

	filters := vectorstore.Filters{
		OrgID:       req.OrgID,
		SourceTypes: req.SourceTypes,
	}
	if req.IncludeRecent {
		filters.UpdatedAfter = time.Now().Add(-recencyWindow)
	}

	results, err := e.vectorStore.Search(ctx, e.collection, queryEmbedding.Values, maxChunks*retrievalFactor, filters)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return degradedResponse(), nil
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "no candidates retrieved")
		return AnswerResponse{
			Answer:     insufficientKnowledgeAnswer,
			Citations:  []Citation{},
			Confidence: 0,
		}, nil
	}

	candidates := e.buildCandidates(ctx, results)
	if len(candidates) == 0 {
		logger.WarnContext(ctx, "all candidates dropped while loading chunk texts")
		return AnswerResponse{
			Answer:     insufficientKnowledgeAnswer,
			Citations:  []Citation{},
			Confidence: 0,
		}, nil
	}

	candidates = e.adjuster.AdjustScores(ctx, req.OrgID, req.UserID, candidates)

	final := Rerank(req.Query, candidates, maxChunks, time.Now())

	answer, err := e.llmClient.ChatWithMessages(ctx, e.buildMessages(req.Query, final), llm.ChatParams{
		Temperature: 0.7,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to get completion", "error", err)
		return degradedResponse(), nil
	}

	e.adjuster.RecordRetrieval(ctx, req.OrgID, req.UserID, uniqueDocumentIDs(final))

	confidence := scoreConfidence(final, maxChunks)

	logger.InfoContext(ctx, "grounded answer query completed",
		"chunks_used", len(final), "confidence", confidence, "answer_length", len(answer))

	return AnswerResponse{
		Answer:          answer,
		Citations:       BuildCitations(final),
		RetrievedChunks: len(final),
		Confidence:      confidence,
	}, nil
}

// buildCandidates resolves search results into candidates, loading chunk text
// from the relational store. Results whose chunk row is missing are dropped.
func (e *groundedEngine) buildCandidates(ctx context.Context, results []vectorstore.SearchResult) []RetrievalCandidate {
	logger := contextutil.LoggerFromContext(ctx)

	candidates := make([]RetrievalCandidate, 0, len(results))
	for _, result := range results {
		chunk, err := e.chunkRepo.GetByID(ctx, result.PointID)
		if err != nil {
			logger.WarnContext(ctx, "failed to fetch chunk text", "chunk_id", result.PointID, "error", err)
			continue
		}

		title, _ := result.Meta["title"].(string)
		uri, _ := result.Meta["uri"].(string)
		sourceType, _ := result.Meta["source_type"].(string)

		candidates = append(candidates, RetrievalCandidate{
			ChunkID:      chunk.ID,
			DocumentID:   chunk.DocumentID,
			Text:         chunk.Text,
			Title:        title,
			URI:          uri,
			SourceType:   sourceType,
			ChunkIndex:   chunk.ChunkIndex,
			BaseScore:    float64(result.Score),
			Score:        float64(result.Score),
			LastModified: metaTime(result.Meta["updated_at"]),
		})
	}

	return candidates
}

// buildMessages assembles the completion prompt from the final candidates.
func (e *groundedEngine) buildMessages(query string, candidates []RetrievalCandidate) []llm.Message {
	var contextBuilder strings.Builder
	for _, c := range candidates {
		contextBuilder.WriteString(fmt.Sprintf("[%s] %s\n", c.Title, c.Text))
	}

	userMessage := fmt.Sprintf("Question: %s\n\nContext:\n%s", query, contextBuilder.String())

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	}
}

// scoreConfidence rewards both strong matches and having filled the requested
// chunk budget.
func scoreConfidence(final []RetrievalCandidate, desired int) float64 {
	if len(final) == 0 || desired <= 0 {
		return 0
	}

	var sum float64
	for _, c := range final {
		sum += c.Score
	}
	avg := sum / float64(len(final))
	fill := float64(len(final)) / float64(desired)

	return clamp(avg*0.8+fill*0.2, 0, 1)
}

func degradedResponse() AnswerResponse {
	return AnswerResponse{
		Answer:     degradedAnswer,
		Citations:  []Citation{},
		Confidence: 0,
	}
}

func uniqueDocumentIDs(candidates []RetrievalCandidate) []string {
	seen := make(map[string]bool, len(candidates))
	var ids []string
	for _, c := range candidates {
		if !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			ids = append(ids, c.DocumentID)
		}
	}
	return ids
}

// metaTime reads a unix timestamp out of vector store metadata. The payload
// round-trip can hand back several numeric types.
func metaTime(v any) time.Time {
	switch ts := v.(type) {
	case int64:
		return time.Unix(ts, 0)
	case int:
		return time.Unix(int64(ts), 0)
	case float64:
		return time.Unix(int64(ts), 0)
	default:
		return time.Time{}
	}
}
