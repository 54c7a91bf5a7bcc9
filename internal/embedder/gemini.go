package embedder

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiProvider implements Embedder using the Gemini API embedding models
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
	cache     *Cache
	retry     RetryConfig
}

// NewGeminiProvider creates a Gemini embedder. An empty apiKey falls back to GEMINI_API_KEY.
func NewGeminiProvider(ctx context.Context, apiKey string, cache *Cache) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvGeminiAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvGeminiAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{
		client:    client,
		model:     DefaultGeminiModel,
		dimension: GeminiDimension,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

// WithModel overrides the default model and its dimension
func (g *GeminiProvider) WithModel(model string, dimension int) {
	if model != "" {
		g.model = model
	}
	if dimension > 0 {
		g.dimension = dimension
	}
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if g.cache != nil {
		if emb, ok := g.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := g.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	contents := make([]*genai.Content, len(req.Texts))
	for i, text := range req.Texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := retryWithBackoff(ctx, g.retry, func() (*genai.EmbedContentResponse, error) {
		return g.client.Models.EmbedContent(ctx, model, contents, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, g.retry.MaxRetries, err)
	}
	if resp == nil || len(resp.Embeddings) != len(req.Texts) {
		return nil, fmt.Errorf("%w: unexpected embedding count", ErrProviderFailed)
	}

	embeddings := make([]*Embedding, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", ErrProviderFailed, i)
		}
		emb := &Embedding{
			Vector:    e.Values,
			Dimension: len(e.Values),
			Provider:  ProviderGemini,
			Model:     model,
			Hash:      ComputeHash(req.Texts[i]),
		}
		if g.cache != nil {
			g.cache.Set(emb.Hash, emb)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderGemini,
		Model:      model,
	}, nil
}

func (g *GeminiProvider) Dimension() int {
	return g.dimension
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	return nil
}
