package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings
	DefaultModel = string(openai.SmallEmbedding3)
	// DefaultDimensions is the expected dimension of embeddings from text-embedding-3-small
	DefaultDimensions = 1536
	// DefaultBatchSize caps how many texts go into one embeddings request
	DefaultBatchSize = 32
)

var (
	// ErrEmptyText is returned when no non-empty text is given
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the API key is not set
	ErrNoAPIKey = errors.New("embedding API key not set")
)

// EmbeddingAPI defines the interface for batched embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Client generates document and query embeddings through an OpenAI-compatible
// API. Asymmetric retrieval models take a role prefix per text; for OpenAI
// models both prefixes stay empty.
type Client struct {
	api            EmbeddingAPI
	dimensions     int
	batchSize      int
	documentPrefix string
	queryPrefix    string
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey, baseURL, model string) *OpenAIAdapter {
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

// CreateEmbeddings calls the embeddings API for a batch of texts.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Dimensions     int
	BatchSize      int
	DocumentPrefix string
	QueryPrefix    string
}

// NewClient creates an embedding client with explicit configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClientWithAPI(NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.Model), cfg), nil
}

// NewClientWithAPI creates an embedding client on top of a custom API, used by
// tests to substitute a fake.
func NewClientWithAPI(api EmbeddingAPI, cfg Config) *Client {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Client{
		api:            api,
		dimensions:     dimensions,
		batchSize:      batchSize,
		documentPrefix: cfg.DocumentPrefix,
		queryPrefix:    cfg.QueryPrefix,
	}
}

// EmbedDocuments embeds texts in document role, batching requests. The result
// is index-aligned with the input.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
		prefixed[i] = c.documentPrefix + t
	}

	embeddings := make([][]float32, 0, len(prefixed))
	for start := 0; start < len(prefixed); start += c.batchSize {
		end := start + c.batchSize
		if end > len(prefixed) {
			end = len(prefixed)
		}
		batch, err := c.api.CreateEmbeddings(ctx, prefixed[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		for _, e := range batch {
			if len(e) != c.dimensions {
				return nil, ErrWrongDimensions
			}
		}
		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}

// EmbedQuery embeds a single search query in query role.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, ErrEmptyText
	}

	batch, err := c.api.CreateEmbeddings(ctx, []string{c.queryPrefix + query})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(batch) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(batch))
	}
	if len(batch[0]) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return batch[0], nil
}

// Dimensions reports the expected embedding width.
func (c *Client) Dimensions() int {
	return c.dimensions
}
