package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/whycontext-mcp/internal/vectorindex"
)

// vectorEmbedder returns fixed vectors per normalized text, zeros otherwise
type vectorEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

func (e *vectorEmbedder) EmbedQuery(ctx context.Context, text string) []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.vectors[text]; ok {
		return v
	}
	return make([]float32, e.dim)
}

func unitVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSemanticCache(t *testing.T, emb QueryEmbedder, cfg SemanticConfig) (*SemanticCache, *fakeClock) {
	t.Helper()
	if !vectorindex.VectorIndexAvailable {
		t.Skip("vector index backend compiled out")
	}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.now = clock.Now
	c, err := NewSemanticCache(emb, cfg)
	require.NoError(t, err)
	return c, clock
}

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Why was JWT chosen?", "why was jwt chosen?"},
		{"  What's   the reason?? ", "what is the reason??"},
		{"Why didn't we use sessions!", "why did not we use sessions"},
		{"auth.py: why", "auth py why"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuestion(tt.in), tt.in)
	}
}

func TestNewSemanticCache_Validation(t *testing.T) {
	_, err := NewSemanticCache(nil, SemanticConfig{})
	assert.ErrorIs(t, err, ErrNoEmbedder)

	emb := &vectorEmbedder{dim: 3}
	_, err = NewSemanticCache(emb, SemanticConfig{Threshold: 1.5})
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	c, err := NewSemanticCache(emb, SemanticConfig{})
	if !vectorindex.VectorIndexAvailable {
		assert.ErrorIs(t, err, ErrSemanticUnavailable)
		return
	}
	require.NoError(t, err)
	stats := c.Stats()
	assert.Equal(t, DefaultSemanticSize, stats.MaxSize)
	assert.Equal(t, DefaultSimilarityThreshold, stats.Threshold)
}

func TestSemanticCache_SimilarQuestionHits(t *testing.T) {
	emb := &vectorEmbedder{dim: 3, vectors: map[string][]float32{
		"why was jwt chosen?":    {1, 0, 0},
		"why was jwt picked?":    {0.95, 0.05, 0},
		"who wrote the readme?":  {0, 1, 0},
		"why is jwt used here?":  {0.7, 0.7, 0},
		"what is the retry cap?": {0, 0, 1},
	}}
	c, _ := newSemanticCache(t, emb, SemanticConfig{})
	ctx := context.Background()

	c.Put(ctx, "auth.py", "Why was JWT chosen?", ctxWithAnswer("stateless tokens"))
	assert.Equal(t, 1, c.Len())

	got, similarity, ok := c.Get(ctx, "auth.py", "Why was JWT picked?")
	require.True(t, ok)
	assert.Equal(t, "stateless tokens", got.Answer)
	assert.Greater(t, similarity, DefaultSimilarityThreshold)

	_, _, ok = c.Get(ctx, "auth.py", "Why is JWT used here?")
	assert.False(t, ok, "below threshold")
	_, _, ok = c.Get(ctx, "auth.py", "Who wrote the README?")
	assert.False(t, ok)
	_, _, ok = c.Get(ctx, "users.py", "Why was JWT chosen?")
	assert.False(t, ok, "other files never match")
	_, _, ok = c.Get(ctx, "auth.py", "unknown text")
	assert.False(t, ok, "zero embedding misses")

	stats := c.Stats()
	assert.Equal(t, 5, stats.TotalQueries)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 4, stats.Misses)
	assert.InDelta(t, 0.2, stats.HitRate(), 1e-9)
	assert.InDelta(t, similarity, stats.AvgSimilarity, 1e-9)
}

func TestSemanticCache_ValuesAreCopied(t *testing.T) {
	emb := &vectorEmbedder{dim: 2, vectors: map[string][]float32{"why?": {1, 0}}}
	c, _ := newSemanticCache(t, emb, SemanticConfig{})
	ctx := context.Background()

	original := ctxWithAnswer("one")
	c.Put(ctx, "auth.py", "why?", original)
	original.Answer = "mutated"

	got, _, ok := c.Get(ctx, "auth.py", "why?")
	require.True(t, ok)
	assert.Equal(t, "one", got.Answer)
	got.Sources[0].CommitSHA = "changed"

	again, _, ok := c.Get(ctx, "auth.py", "why?")
	require.True(t, ok)
	assert.Equal(t, "abc", again.Sources[0].CommitSHA)
}

func TestSemanticCache_ReplacesSameQuestion(t *testing.T) {
	emb := &vectorEmbedder{dim: 2, vectors: map[string][]float32{"why jwt?": {1, 0}}}
	c, _ := newSemanticCache(t, emb, SemanticConfig{})
	ctx := context.Background()

	c.Put(ctx, "auth.py", "Why JWT?", ctxWithAnswer("first"))
	c.Put(ctx, "auth.py", "why   jwt?", ctxWithAnswer("second"))
	assert.Equal(t, 1, c.Len())

	got, _, ok := c.Get(ctx, "auth.py", "WHY JWT?")
	require.True(t, ok)
	assert.Equal(t, "second", got.Answer)
}

func TestSemanticCache_ZeroEmbeddingNotStored(t *testing.T) {
	c, _ := newSemanticCache(t, &vectorEmbedder{dim: 2}, SemanticConfig{})
	c.Put(context.Background(), "auth.py", "why?", ctxWithAnswer("x"))
	assert.Zero(t, c.Len())
}

func TestSemanticCache_TTL(t *testing.T) {
	emb := &vectorEmbedder{dim: 2, vectors: map[string][]float32{"why?": {1, 0}}}
	c, clock := newSemanticCache(t, emb, SemanticConfig{TTL: time.Minute})
	ctx := context.Background()

	c.Put(ctx, "auth.py", "why?", ctxWithAnswer("x"))
	clock.Advance(30 * time.Second)
	_, _, ok := c.Get(ctx, "auth.py", "why?")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, _, ok = c.Get(ctx, "auth.py", "why?")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entries are dropped on lookup")
	assert.Equal(t, 1, c.Stats().Evictions)
}

func TestSemanticCache_EvictionKeepsFrequentlyUsed(t *testing.T) {
	const dim = 8
	emb := &vectorEmbedder{dim: dim, vectors: map[string][]float32{}}
	for i := 0; i < 6; i++ {
		emb.vectors[fmt.Sprintf("q%d", i)] = unitVector(dim, i)
	}
	c, clock := newSemanticCache(t, emb, SemanticConfig{MaxEntries: 5})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Put(ctx, "auth.py", fmt.Sprintf("q%d", i), ctxWithAnswer(fmt.Sprintf("a%d", i)))
		clock.Advance(time.Minute)
	}
	for i := 0; i < 3; i++ {
		_, _, ok := c.Get(ctx, "auth.py", "q0")
		require.True(t, ok)
	}

	c.Put(ctx, "auth.py", "q5", ctxWithAnswer("a5"))

	// capacity 5 keeps 4 of the old entries, then adds the new one
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, 1, c.Stats().Evictions)
	got, _, ok := c.Get(ctx, "auth.py", "q0")
	require.True(t, ok, "frequently used entry survives")
	assert.Equal(t, "a0", got.Answer)
	_, _, ok = c.Get(ctx, "auth.py", "q5")
	assert.True(t, ok)
	_, _, ok = c.Get(ctx, "auth.py", "q1")
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestSemanticCache_Clear(t *testing.T) {
	emb := &vectorEmbedder{dim: 2, vectors: map[string][]float32{"why?": {1, 0}}}
	c, _ := newSemanticCache(t, emb, SemanticConfig{})
	ctx := context.Background()

	c.Put(ctx, "auth.py", "why?", ctxWithAnswer("x"))
	_, _, _ = c.Get(ctx, "auth.py", "why?")
	c.Clear()

	assert.Zero(t, c.Len())
	_, _, ok := c.Get(ctx, "auth.py", "why?")
	assert.False(t, ok)
	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalQueries, "counters survive Clear")
	assert.Zero(t, stats.Size)

	c.Put(ctx, "auth.py", "why?", ctxWithAnswer("y"))
	got, _, ok := c.Get(ctx, "auth.py", "why?")
	require.True(t, ok)
	assert.Equal(t, "y", got.Answer)
}

func TestSemanticCache_ConcurrentAccess(t *testing.T) {
	const dim = 16
	emb := &vectorEmbedder{dim: dim, vectors: map[string][]float32{}}
	for i := 0; i < dim; i++ {
		emb.vectors[fmt.Sprintf("q%d", i)] = unitVector(dim, i)
	}
	c, _ := newSemanticCache(t, emb, SemanticConfig{MaxEntries: 8})
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q := fmt.Sprintf("q%d", (g+i)%dim)
				c.Put(ctx, "auth.py", q, ctxWithAnswer(q))
				c.Get(ctx, "auth.py", q)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 8)
	stats := c.Stats()
	assert.Equal(t, 400, stats.TotalQueries)
	assert.Equal(t, stats.TotalQueries, stats.Hits+stats.Misses)
}
