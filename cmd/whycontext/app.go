package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/archaeology"
	"github.com/dshills/whycontext-mcp/internal/cache"
	"github.com/dshills/whycontext-mcp/internal/config"
	"github.com/dshills/whycontext-mcp/internal/embedder"
	"github.com/dshills/whycontext-mcp/internal/logging"
	"github.com/dshills/whycontext-mcp/internal/synth"
	"github.com/dshills/whycontext-mcp/internal/vectorindex"
)

// Files under index.dir
const (
	indexBlobName     = "index.bin"
	indexMetadataName = "metadata.db"
)

// app holds the components shared by every command
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	provider *archaeology.Provider
	embedder *embedder.Generator
}

// newApp loads configuration and wires the provider with its optional backends
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	syn, err := synth.New(ctx, synth.Config{
		Provider: cfg.Synth.Provider,
		Model:    cfg.Synth.Model,
		APIKey:   cfg.Synth.APIKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	opts := []archaeology.Option{
		archaeology.WithCacheSize(cfg.CacheSize),
		archaeology.WithQueryTimeout(cfg.QueryTimeout),
		archaeology.WithHistoryLimit(cfg.HistoryLimit),
		archaeology.WithSynthesizer(syn),
		archaeology.WithSemantic(cfg.Semantic.Enabled),
		archaeology.WithSemanticCache(cfg.SemanticCache.Enabled),
		archaeology.WithSemanticCacheConfig(cache.SemanticConfig{
			MaxEntries: cfg.SemanticCache.Size,
			Threshold:  cfg.SemanticCache.Threshold,
			TTL:        cfg.SemanticCache.TTL,
		}),
		archaeology.WithLogger(logger),
	}

	a := &app{cfg: cfg, logger: logger}
	if cfg.Semantic.Enabled || cfg.SemanticCache.Enabled {
		a.embedder = embedder.NewGenerator(ctx, embedder.Config{
			Provider:  cfg.Embedding.Provider,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			CacheDir:  cfg.ResolvePath(cfg.Embedding.CacheDir),
			APIKey:    cfg.Embedding.APIKey,
			Normalize: true,
			Logger:    logger,
		})
		opts = append(opts, archaeology.WithEmbedder(a.embedder))
	}

	if cfg.Semantic.Enabled {
		indexDir := cfg.ResolvePath(cfg.Index.Dir)
		idx, err := vectorindex.New(vectorindex.Config{
			Dimension:    a.embedder.Dimension(),
			Metric:       cfg.Index.Metric,
			IndexPath:    filepath.Join(indexDir, indexBlobName),
			MetadataPath: filepath.Join(indexDir, indexMetadataName),
			Disabled:     cfg.Index.Disabled,
			Logger:       logger,
		})
		if err != nil {
			_ = a.embedder.Close()
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		opts = append(opts, archaeology.WithVectorIndex(idx))
	}

	a.provider, err = archaeology.New(cfg.RepoPath, opts...)
	if err != nil {
		if a.embedder != nil {
			_ = a.embedder.Close()
		}
		return nil, err
	}
	return a, nil
}

// Close stops the provider and releases the embedding backend
func (a *app) Close() error {
	err := a.provider.Close()
	if a.embedder != nil {
		err = errors.Join(err, a.embedder.Close())
	}
	return err
}
