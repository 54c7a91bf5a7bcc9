package embedder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvProvider selects the embedding backend when Config.Provider is empty
const EnvProvider = "WHYCONTEXT_EMBEDDING_PROVIDER"

// Config holds embedding generator configuration
type Config struct {
	Provider  string // jina, openai, gemini, local; empty auto-detects
	Model     string // empty uses the provider default
	Dimension int    // target dimension; 0 uses the provider default
	CacheDir  string // directory for the on-disk memo; empty disables it
	CacheSize int    // in-memory memo capacity
	APIKey    string
	Normalize bool
	BatchSize int

	Logger logrus.FieldLogger
}

// DefaultConfig returns the local-model configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderLocal,
		Model:     DefaultLocalModel,
		Dimension: LocalDimension,
		CacheSize: DefaultCacheSize,
		Normalize: true,
		BatchSize: DefaultBatchSize,
	}
}

// NewBackend constructs the embedding backend named by cfg.Provider.
// The returned backend does its own memoization only if cache is non-nil.
func NewBackend(ctx context.Context, cfg Config, cache *Cache) (Embedder, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		p.WithModel(cfg.Model, cfg.Dimension)
		return p, nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		p.WithModel(cfg.Model, cfg.Dimension)
		return p, nil
	case ProviderGemini:
		p, err := NewGeminiProvider(ctx, cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		p.WithModel(cfg.Model, cfg.Dimension)
		return p, nil
	case ProviderLocal:
		dim := cfg.Dimension
		if dim == 0 {
			dim = LocalDimension
		}
		p, err := NewLocalProviderWithDimension(dim, cache)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvGeminiAPIKey) != "" {
		return ProviderGemini
	}

	return ProviderLocal
}
