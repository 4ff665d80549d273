package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"companion-ai/internal/contextutil"
)

const (
	// MockModel tags embeddings produced by the deterministic fallback.
	MockModel = "mock"

	// maxEmbedChars caps the text sent to the embeddings API.
	maxEmbedChars = 8000

	// maxBatchSize caps how many texts go into a single provider call.
	maxBatchSize = 10
)

// ErrDimensionMismatch is returned when two vectors of different lengths are compared.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedding is a vector tagged with the model that produced it.
// Vectors from different models are not comparable.
type Embedding struct {
	Model  string
	Values []float32
}

// BatchResult holds the outcome for one item of a batch embedding call.
type BatchResult struct {
	Embedding Embedding
	Err       error
}

// EmbeddingsClient is a client for an OpenAI-compatible embeddings API.
// When BaseURL is empty, or the provider fails, it falls back to a
// deterministic mock embedding so the rest of the pipeline keeps working.
type EmbeddingsClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExpectedSize int // Expected vector size for validation
	client       *http.Client
	limiter      *rate.Limiter
}

// NewEmbeddingsClient creates a new embeddings client.
// expectedSize is the expected vector size (from QDRANT_VECTOR_SIZE config).
// All embeddings returned will be validated against this size.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		client:       http.DefaultClient,
		// Pace provider calls: 2 batch requests per second, no bursts.
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
}

// EmbeddingsRequest represents the request payload for embeddings API.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// EmbedText generates an embedding for a single text.
// Text is whitespace-normalized and truncated to the provider's input ceiling.
// Provider failures fall back to the deterministic mock embedding.
func (c *EmbeddingsClient) EmbedText(ctx context.Context, text string) (Embedding, error) {
	normalized := normalizeText(text)
	if normalized == "" {
		return Embedding{}, fmt.Errorf("empty input text")
	}

	if c.BaseURL == "" {
		return c.mockEmbedding(normalized), nil
	}

	vecs, err := c.callProvider(ctx, []string{normalized})
	if err != nil {
		logger := contextutil.LoggerFromContext(ctx)
		logger.WarnContext(ctx, "embeddings provider failed, using mock embedding", "error", err)
		return c.mockEmbedding(normalized), nil
	}

	return Embedding{Model: c.Model, Values: vecs[0]}, nil
}

// EmbedBatch generates embeddings for multiple texts. Inputs are split into
// provider-sized batches and calls are paced by the rate limiter. The result
// slice is index-aligned with texts: each item carries its own embedding or
// error, so one bad input never fails the whole batch.
func (c *EmbeddingsClient) EmbedBatch(ctx context.Context, texts []string) ([]BatchResult, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	results := make([]BatchResult, len(texts))

	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		c.embedBatch(ctx, texts[start:end], results[start:end])
	}

	return results, nil
}

// embedBatch fills out one provider-sized slice of results.
func (c *EmbeddingsClient) embedBatch(ctx context.Context, texts []string, results []BatchResult) {
	normalized := make([]string, len(texts))
	valid := make([]int, 0, len(texts))
	inputs := make([]string, 0, len(texts))

	for i, text := range texts {
		normalized[i] = normalizeText(text)
		if normalized[i] == "" {
			results[i] = BatchResult{Err: fmt.Errorf("empty input text")}
			continue
		}
		valid = append(valid, i)
		inputs = append(inputs, normalized[i])
	}

	if len(inputs) == 0 {
		return
	}

	if c.BaseURL == "" {
		for _, i := range valid {
			results[i] = BatchResult{Embedding: c.mockEmbedding(normalized[i])}
		}
		return
	}

	vecs, err := c.callProvider(ctx, inputs)
	if err != nil {
		logger := contextutil.LoggerFromContext(ctx)
		logger.WarnContext(ctx, "embeddings provider failed, using mock embeddings", "count", len(inputs), "error", err)
		for _, i := range valid {
			results[i] = BatchResult{Embedding: c.mockEmbedding(normalized[i])}
		}
		return
	}

	for pos, i := range valid {
		results[i] = BatchResult{Embedding: Embedding{Model: c.Model, Values: vecs[pos]}}
	}
}

// callProvider performs the HTTP embeddings call and validates the response.
func (c *EmbeddingsClient) callProvider(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)

	payload := EmbeddingsRequest{
		Model: c.Model,
		Input: texts,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var embeddingsResp EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	result := make([][]float32, len(embeddingsResp.Data))
	for i, data := range embeddingsResp.Data {
		if len(data.Embedding) != c.ExpectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), c.ExpectedSize)
		}

		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[i] = vec
	}

	return result, nil
}

// mockEmbedding produces a deterministic unit vector seeded by the text
// content. The same text always yields the same vector, so dev and test
// environments get stable similarity behavior without a provider.
func (c *EmbeddingsClient) mockEmbedding(text string) Embedding {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))

	rng := rand.New(rand.NewSource(seed))
	values := make([]float32, c.ExpectedSize)
	for i := range values {
		values[i] = float32(rng.Float64()*2 - 1)
	}

	l2Normalize(values)
	return Embedding{Model: MockModel, Values: values}
}

// l2Normalize scales the vector to unit length in place.
// Zero vectors are left untouched.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// CosineSimilarity computes cosine similarity between two vectors.
// Vectors of different dimensions are a hard failure, not a silent zero.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vectors", ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// normalizeText collapses runs of whitespace and truncates to the input ceiling.
func normalizeText(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if len(normalized) > maxEmbedChars {
		normalized = normalized[:maxEmbedChars]
	}
	return normalized
}
