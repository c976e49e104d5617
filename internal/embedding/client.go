// Package embedding provides embedding generation services.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoEmbedding is returned when the API answers without a vector for an input.
var ErrNoEmbedding = errors.New("no embedding returned")

// Embedder defines the interface for embedding generation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Client provides embedding generation against an OpenAI-compatible
// /embeddings endpoint (OpenRouter by default).
type Client struct {
	client    openai.Client
	model     string
	dimension atomic.Int64
}

// Config holds embedding client configuration.
type Config struct {
	APIKey    string
	Model     string // e.g., "sentence-transformers/paraphrase-multilingual-minilm-l12-v2"
	BaseURL   string // Default: https://openrouter.ai/api/v1
	Dimension int    // Default: 384
	Timeout   time.Duration
}

// NewClient creates a new embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}

	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/paraphrase-multilingual-minilm-l12-v2"
	}

	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(timeout),
		option.WithHeader("HTTP-Referer", "https://spherical.ai"),
		option.WithHeader("X-Title", "Shop Assistant"),
	)

	c := &Client{
		client: client,
		model:  cfg.Model,
	}
	c.dimension.Store(int64(cfg.Dimension))
	return c, nil
}

// Embed generates embeddings for the given texts, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	// The API may return data out of order; Index is authoritative.
	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(embeddings) {
			continue
		}
		vec := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vec[i] = float32(v)
		}
		embeddings[idx] = vec
	}

	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("input %d: %w", i, ErrNoEmbedding)
		}
	}

	// Track the dimension the model actually produces
	c.dimension.Store(int64(len(embeddings[0])))

	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, ErrNoEmbedding
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for texts in sequential batches.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	return EmbedInBatches(ctx, c, texts, batchSize)
}

// Model returns the model being used.
func (c *Client) Model() string {
	return c.model
}

// Dimension returns the embedding dimension.
func (c *Client) Dimension() int {
	return int(c.dimension.Load())
}

// EmbedInBatches splits texts into batches of batchSize and embeds them in order.
func EmbedInBatches(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 64
	}

	embeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}

		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}

// MockClient produces deterministic embeddings without network access.
// Texts sharing words land close together, which is enough for ranking tests.
type MockClient struct {
	dimension int
}

// NewMockClient creates a mock client.
func NewMockClient(dimension int) *MockClient {
	if dimension <= 0 {
		dimension = 384
	}
	return &MockClient{dimension: dimension}
}

// Embed hashes each lower-cased word into a bucket and L2-normalizes the result.
func (c *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, c.dimension)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,;:!?")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%uint32(c.dimension)] += 1
		}
		embeddings[i] = Normalize(vec)
	}
	return embeddings, nil
}

// EmbedSingle generates a mock embedding for a single text.
func (c *MockClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Model returns the mock model name.
func (c *MockClient) Model() string {
	return "mock-embedding-model"
}

// Dimension returns the embedding dimension.
func (c *MockClient) Dimension() int {
	return c.dimension
}

// Normalize scales v to unit length in place. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Ensure implementations satisfy interface.
var (
	_ Embedder = (*Client)(nil)
	_ Embedder = (*MockClient)(nil)
)
