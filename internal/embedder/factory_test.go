package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		jinaKey   string
		openaiKey string
		geminiKey string
		expected  string
	}{
		{name: "explicit provider", provider: "OpenAI", expected: ProviderOpenAI},
		{name: "jina key present", jinaKey: "k", expected: ProviderJina},
		{name: "openai key present", openaiKey: "k", expected: ProviderOpenAI},
		{name: "gemini key present", geminiKey: "k", expected: ProviderGemini},
		{name: "jina takes precedence", jinaKey: "k", openaiKey: "k", geminiKey: "k", expected: ProviderJina},
		{name: "fallback to local", expected: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvProvider, tt.provider)
			t.Setenv(EnvJinaAPIKey, tt.jinaKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)
			t.Setenv(EnvGeminiAPIKey, tt.geminiKey)

			assert.Equal(t, tt.expected, DetectProvider())
		})
	}
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("local with custom dimension", func(t *testing.T) {
		backend, err := NewBackend(ctx, Config{Provider: ProviderLocal, Dimension: 64, Model: "hashed"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 64, backend.Dimension())
		assert.Equal(t, "hashed", backend.Model())
	})

	t.Run("openai with model override", func(t *testing.T) {
		backend, err := NewBackend(ctx, Config{Provider: ProviderOpenAI, APIKey: "k", Model: "text-embedding-3-large", Dimension: 3072}, nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, backend.Provider())
		assert.Equal(t, 3072, backend.Dimension())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewBackend(ctx, Config{Provider: "word2vec"}, nil)
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("auto-detect falls back to local", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvJinaAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "")
		t.Setenv(EnvGeminiAPIKey, "")

		backend, err := NewBackend(ctx, Config{}, nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, backend.Provider())
		assert.Equal(t, LocalDimension, backend.Dimension())
	})
}
