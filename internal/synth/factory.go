package synth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Synthesizer providers
const (
	ProviderExtractive = "extractive"
	ProviderGemini     = "gemini"
)

// Config selects and configures a synthesizer
type Config struct {
	Provider string
	Model    string
	APIKey   string
}

// New builds the configured synthesizer. An empty provider means extractive.
func New(ctx context.Context, cfg Config, logger logrus.FieldLogger) (Synthesizer, error) {
	switch cfg.Provider {
	case "", ProviderExtractive:
		return NewExtractive(), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown synthesizer provider: %s", cfg.Provider)
	}
}
