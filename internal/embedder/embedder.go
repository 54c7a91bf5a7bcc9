package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedding is the vector for one commit document or query text
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // ComputeHash of the source text
}

func (e *Embedding) clone() *Embedding {
	out := *e
	out.Vector = make([]float32, len(e.Vector))
	copy(out.Vector, e.Vector)
	return &out
}

// EmbeddingRequest asks for one vector
type EmbeddingRequest struct {
	Text  string
	Model string // empty uses the backend default
}

// BatchEmbeddingRequest asks for one vector per text, in order
type BatchEmbeddingRequest struct {
	Texts []string
	Model string
}

// BatchEmbeddingResponse holds vectors aligned with the request texts
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder is a single embedding backend. The Generator wraps one and adds
// memoization, normalization and degraded-mode fallbacks.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)
	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// Cache is the in-process embedding memo keyed by content hash. Values are
// copied on the way in and out so callers cannot corrupt shared vectors.
type Cache struct {
	entries   *lru.Cache[string, *Embedding]
	evictions atomic.Int64
}

// NewCache creates a memo holding at most maxLen vectors; non-positive sizes use DefaultCacheSize
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	c := &Cache{}
	entries, err := lru.NewWithEvict(maxLen, func(string, *Embedding) {
		c.evictions.Add(1)
	})
	if err != nil {
		// only fails for a non-positive size
		panic(fmt.Sprintf("failed to create embedding cache: %v", err))
	}
	c.entries = entries
	return c
}

// Get returns a copy of the memoized embedding
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.entries.Get(hash)
	if !ok {
		return nil, false
	}
	return emb.clone(), true
}

// Set memoizes a copy of emb
func (c *Cache) Set(hash string, emb *Embedding) {
	if emb == nil {
		return
	}
	c.entries.Add(hash, emb.clone())
}

// Size returns the number of memoized vectors
func (c *Cache) Size() int {
	return c.entries.Len()
}

// Evictions counts entries dropped for capacity since the last Clear
func (c *Cache) Evictions() int64 {
	return c.evictions.Load()
}

// Clear empties the memo and resets the eviction counter
func (c *Cache) Clear() {
	c.entries.Purge()
	c.evictions.Store(0)
}

// ComputeHash is the hex SHA-256 of text, the memo key for both tiers
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest rejects blank text
func ValidateRequest(req EmbeddingRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects empty or oversized batches and blank texts
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: %d texts, max %d", ErrBatchTooLarge, len(req.Texts), MaxBatchSize)
	}
	for i, text := range req.Texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
