package embedder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/storage"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// CacheFileName is the SQLite memo file created under Config.CacheDir
const CacheFileName = "embeddings.db"

// maxCommitFiles caps how many changed files are folded into a commit's embedding text
const maxCommitFiles = 5

// Generator maps text to fixed-dimension vectors on top of a backend.
//
// When the backend cannot be constructed the generator runs degraded:
// ModelLoaded reports false and every embedding is the zero vector of
// the configured dimension. Vectors are memoized in memory by content hash
// and, when a cache directory is configured, in a SQLite file that survives
// restarts.
type Generator struct {
	cfg       Config
	backend   Embedder
	loadErr   error
	dimension int
	cache     *Cache
	logger    logrus.FieldLogger

	storeOnce sync.Once
	store     storage.Storage

	mu      sync.Mutex
	pending map[string]*Embedding

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats describes memo effectiveness
type Stats struct {
	Size        int     `json:"cache_size"`
	Hits        int64   `json:"cache_hits"`
	Misses      int64   `json:"cache_misses"`
	HitRate     float64 `json:"hit_rate"`
	Evictions   int64   `json:"evictions"`
	MemoryBytes int64   `json:"memory_bytes"`
}

// ModelInfo describes the active backend
type ModelInfo struct {
	Loaded    bool   `json:"loaded"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model_name"`
	Dimension int    `json:"dimension"`
	Normalize bool   `json:"normalize"`
	Error     string `json:"error,omitempty"`
}

// NewGenerator builds the backend named in cfg. Backend construction failures
// are logged and leave the generator in degraded mode rather than failing.
func NewGenerator(ctx context.Context, cfg Config) *Generator {
	cfg = withDefaults(cfg)
	backend, err := NewBackend(ctx, cfg, nil)
	return newGenerator(cfg, backend, err)
}

// NewGeneratorWithBackend wraps an existing backend. A nil backend yields a degraded generator.
func NewGeneratorWithBackend(cfg Config, backend Embedder) *Generator {
	cfg = withDefaults(cfg)
	var err error
	if backend == nil {
		err = ErrNoProviderEnabled
	}
	return newGenerator(cfg, backend, err)
}

func withDefaults(cfg Config) Config {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		cfg.Logger = l
	}
	return cfg
}

func newGenerator(cfg Config, backend Embedder, err error) *Generator {
	g := &Generator{
		cfg:     cfg,
		cache:   NewCache(cfg.CacheSize),
		logger:  cfg.Logger.WithField("component", "embedder"),
		pending: make(map[string]*Embedding),
	}

	if err != nil || backend == nil {
		g.loadErr = err
		g.dimension = cfg.Dimension
		if g.dimension <= 0 {
			g.dimension = LocalDimension
		}
		g.logger.WithError(err).Warn("embedding backend unavailable, using zero vectors")
		return g
	}

	g.backend = backend
	g.dimension = backend.Dimension()
	g.logger.WithFields(logrus.Fields{
		"provider":  backend.Provider(),
		"model":     backend.Model(),
		"dimension": g.dimension,
	}).Debug("embedding backend loaded")
	return g
}

// ModelLoaded reports whether a real backend is available
func (g *Generator) ModelLoaded() bool {
	return g.backend != nil
}

// Dimension returns the length of every vector this generator produces
func (g *Generator) Dimension() int {
	return g.dimension
}

// EmbedQuery embeds a single text. It never fails: degraded mode and backend
// errors both yield the zero vector.
func (g *Generator) EmbedQuery(ctx context.Context, text string) []float32 {
	if !g.ModelLoaded() {
		return g.zeros()
	}
	return g.embedTexts(ctx, []string{text})[0]
}

// EmbedBatch embeds texts in order, batching backend calls
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}
	if !g.ModelLoaded() {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = g.zeros()
		}
		return out
	}
	return g.embedTexts(ctx, texts)
}

// EmbedCommits embeds commit records and returns their vector index document ids
func (g *Generator) EmbedCommits(ctx context.Context, commits []types.Commit) ([][]float32, []string) {
	texts := make([]string, len(commits))
	ids := make([]string, len(commits))
	for i, c := range commits {
		texts[i] = CommitText(c)
		ids[i] = c.DocID()
	}
	return g.EmbedBatch(ctx, texts), ids
}

// CommitText renders the text embedded for a commit
func CommitText(c types.Commit) string {
	parts := []string{"Commit: " + strings.TrimSpace(c.Message)}
	if len(c.FilesChanged) > 0 {
		files := c.FilesChanged
		if len(files) > maxCommitFiles {
			files = files[:maxCommitFiles]
		}
		parts = append(parts, "Files: "+strings.Join(files, ", "))
	}
	if c.Author != "" {
		parts = append(parts, "Author: "+c.Author)
	}
	return strings.Join(parts, " | ")
}

func (g *Generator) embedTexts(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))
	var missing []int

	for i, text := range texts {
		if text == "" {
			out[i] = g.zeros()
			continue
		}
		hashes[i] = ComputeHash(text)
		if vec, ok := g.lookup(ctx, hashes[i]); ok {
			g.hits.Add(1)
			out[i] = vec
			continue
		}
		g.misses.Add(1)
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(missing) {
			end = len(missing)
		}
		idxs := missing[start:end]

		batch := make([]string, len(idxs))
		for j, idx := range idxs {
			batch[j] = texts[idx]
		}

		resp, err := g.backend.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: batch})
		if err == nil && len(resp.Embeddings) != len(batch) {
			err = fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(resp.Embeddings), len(batch))
		}
		if err != nil {
			g.logger.WithError(err).WithField("texts", len(batch)).Warn("embedding failed, using zero vectors")
			for _, idx := range idxs {
				out[idx] = g.zeros()
			}
			continue
		}

		for j, emb := range resp.Embeddings {
			idx := idxs[j]
			if len(emb.Vector) != g.dimension {
				g.logger.WithError(ErrDimensionMismatch).WithFields(logrus.Fields{
					"expected": g.dimension,
					"actual":   len(emb.Vector),
				}).Warn("discarding embedding")
				out[idx] = g.zeros()
				continue
			}
			vec := emb.Vector
			if g.cfg.Normalize {
				vec = NormalizeVector(vec)
			}
			out[idx] = vec
			g.remember(hashes[idx], vec)
		}
	}

	return out
}

func (g *Generator) lookup(ctx context.Context, hash string) ([]float32, bool) {
	if emb, ok := g.cache.Get(hash); ok {
		return emb.Vector, true
	}

	store := g.diskStore()
	if store == nil {
		return nil, false
	}
	row, err := store.GetEmbedding(ctx, hash, g.model())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			g.logger.WithError(err).Debug("embedding memo lookup failed")
		}
		return nil, false
	}
	if row.Dimension != g.dimension {
		return nil, false
	}
	vec := storage.DeserializeVector(row.Vector)
	g.cache.Set(hash, &Embedding{Vector: vec, Dimension: row.Dimension, Provider: row.Provider, Model: row.Model, Hash: hash})
	return vec, true
}

func (g *Generator) remember(hash string, vec []float32) {
	emb := &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  g.backend.Provider(),
		Model:     g.model(),
		Hash:      hash,
	}
	g.cache.Set(hash, emb)

	if g.cfg.CacheDir == "" {
		return
	}
	g.mu.Lock()
	g.pending[hash] = emb
	g.mu.Unlock()
}

// diskStore opens the SQLite memo on first use. Open failures disable it.
func (g *Generator) diskStore() storage.Storage {
	if g.cfg.CacheDir == "" {
		return nil
	}
	g.storeOnce.Do(func() {
		if err := os.MkdirAll(g.cfg.CacheDir, 0o755); err != nil {
			g.logger.WithError(err).Warn("cannot create embedding cache directory")
			return
		}
		path := filepath.Join(g.cfg.CacheDir, CacheFileName)
		store, err := storage.NewSQLiteStorage(path)
		if err != nil {
			g.logger.WithError(err).WithField("path", path).Warn("cannot open embedding cache")
			return
		}
		g.store = store
	})
	return g.store
}

// SaveCache flushes newly computed embeddings to the on-disk memo
func (g *Generator) SaveCache(ctx context.Context) error {
	store := g.diskStore()
	if store == nil {
		return nil
	}

	g.mu.Lock()
	pending := g.pending
	g.pending = make(map[string]*Embedding)
	g.mu.Unlock()

	for hash, emb := range pending {
		err := store.UpsertEmbedding(ctx, &storage.Embedding{
			Hash:      hash,
			Model:     emb.Model,
			Provider:  emb.Provider,
			Vector:    storage.SerializeVector(emb.Vector),
			Dimension: emb.Dimension,
		})
		if err != nil {
			return fmt.Errorf("failed to save embedding %s: %w", hash, err)
		}
	}

	if len(pending) > 0 {
		g.logger.WithField("count", len(pending)).Debug("saved embeddings")
	}
	return nil
}

// ClearCache drops every memoized embedding, in memory and on disk, and resets counters
func (g *Generator) ClearCache(ctx context.Context) error {
	g.cache.Clear()
	g.hits.Store(0)
	g.misses.Store(0)

	g.mu.Lock()
	g.pending = make(map[string]*Embedding)
	g.mu.Unlock()

	if store := g.diskStore(); store != nil {
		return store.DeleteEmbeddings(ctx)
	}
	return nil
}

// Stats returns memo statistics
func (g *Generator) Stats() Stats {
	hits := g.hits.Load()
	misses := g.misses.Load()
	size := g.cache.Size()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:        size,
		Hits:        hits,
		Misses:      misses,
		HitRate:     hitRate,
		Evictions:   g.cache.Evictions(),
		MemoryBytes: int64(size) * int64(g.dimension*4+64),
	}
}

// ModelInfo describes the backend in use
func (g *Generator) ModelInfo() ModelInfo {
	info := ModelInfo{
		Loaded:    g.ModelLoaded(),
		Model:     g.model(),
		Dimension: g.dimension,
		Normalize: g.cfg.Normalize,
	}
	if g.backend != nil {
		info.Provider = g.backend.Provider()
	} else if g.loadErr != nil {
		info.Error = g.loadErr.Error()
	} else {
		info.Error = "model not loaded"
	}
	return info
}

// Close flushes the memo and releases the backend
func (g *Generator) Close() error {
	var errs []error
	if err := g.SaveCache(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if g.store != nil {
		if err := g.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.backend != nil {
		if err := g.backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Generator) model() string {
	if g.backend != nil {
		return g.backend.Model()
	}
	if g.cfg.Model != "" {
		return g.cfg.Model
	}
	return DefaultLocalModel
}

func (g *Generator) zeros() []float32 {
	return make([]float32, g.dimension)
}
