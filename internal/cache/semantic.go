package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/vectorindex"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// Semantic cache defaults
const (
	DefaultSemanticSize        = 500
	DefaultSimilarityThreshold = 0.85
	DefaultSemanticTTL         = time.Hour

	// share of capacity kept when scored eviction runs
	semanticKeepRatio = 0.8
)

// Common errors
var (
	ErrNoEmbedder          = errors.New("semantic cache requires an embedder")
	ErrSemanticUnavailable = errors.New("vector search unavailable")
	ErrInvalidThreshold    = errors.New("similarity threshold must be in [0, 1]")
)

// QueryEmbedder turns question text into a vector. A zero vector means the
// embedding is unavailable.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) []float32
}

// SemanticConfig configures a SemanticCache
type SemanticConfig struct {
	MaxEntries int           // 0 uses DefaultSemanticSize
	Threshold  float64       // minimum similarity for a hit; 0 uses DefaultSimilarityThreshold
	TTL        time.Duration // 0 uses DefaultSemanticTTL
	Logger     logrus.FieldLogger

	now func() time.Time
}

// SemanticStats describes semantic cache traffic. Counters survive Clear.
type SemanticStats struct {
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	TotalQueries  int     `json:"total_queries"`
	Size          int     `json:"cache_size"`
	MaxSize       int     `json:"max_cache_size"`
	Evictions     int     `json:"evictions"`
	AvgSimilarity float64 `json:"avg_similarity"`
	Threshold     float64 `json:"similarity_threshold"`
}

// HitRate is hits over lookups, 0 before any lookup
func (s SemanticStats) HitRate() float64 {
	if s.TotalQueries == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(s.TotalQueries)
}

// ToMap exposes the counters and the derived hit rate
func (s SemanticStats) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"hits":                 s.Hits,
		"misses":               s.Misses,
		"total_queries":        s.TotalQueries,
		"hit_rate":             s.HitRate(),
		"cache_size":           s.Size,
		"max_cache_size":       s.MaxSize,
		"evictions":            s.Evictions,
		"avg_similarity":       s.AvgSimilarity,
		"similarity_threshold": s.Threshold,
	}
}

type semanticEntry struct {
	id         string
	file       string
	question   string // normalized
	value      *types.ArchaeologicalContext
	accesses   int
	created    time.Time
	lastAccess time.Time
}

// SemanticCache answers a question from a cached answer to a differently
// worded question about the same file. Lookups only compare questions asked
// about the same file.
type SemanticCache struct {
	cfg      SemanticConfig
	embedder QueryEmbedder
	index    *vectorindex.Index
	logger   logrus.FieldLogger

	mu      sync.Mutex
	entries map[string]*semanticEntry // by index document id
	byFile  map[string][]string
	seq     uint64
	stats   SemanticStats
}

// NewSemanticCache creates an empty semantic cache. It fails when no embedder
// is given or the vector search backend is compiled out.
func NewSemanticCache(emb QueryEmbedder, cfg SemanticConfig) (*SemanticCache, error) {
	if emb == nil {
		return nil, ErrNoEmbedder
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultSemanticSize
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSimilarityThreshold
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, cfg.Threshold)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSemanticTTL
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}

	idx, err := vectorindex.New(vectorindex.Config{Metric: vectorindex.MetricCosine, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}
	if !idx.Available() {
		return nil, ErrSemanticUnavailable
	}

	return &SemanticCache{
		cfg:      cfg,
		embedder: emb,
		index:    idx,
		logger:   cfg.Logger.WithField("component", "semantic_cache"),
		entries:  make(map[string]*semanticEntry),
		byFile:   make(map[string][]string),
		stats:    SemanticStats{MaxSize: cfg.MaxEntries, Threshold: cfg.Threshold},
	}, nil
}

// Get returns a copy of the cached answer whose question is most similar to
// question, with its similarity, when that similarity reaches the threshold
// and the entry has not expired. Every call counts as one hit or one miss.
func (c *SemanticCache) Get(ctx context.Context, file, question string) (*types.ArchaeologicalContext, float64, bool) {
	c.mu.Lock()
	ids := append([]string(nil), c.byFile[file]...)
	c.mu.Unlock()

	var hits []vectorindex.Result
	if len(ids) > 0 {
		if vec := c.embed(ctx, question); vec != nil {
			hits = c.index.SearchWithin(vec, 1, ids)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalQueries++

	if len(hits) == 0 || hits[0].Score < c.cfg.Threshold {
		c.stats.Misses++
		return nil, 0, false
	}
	entry, ok := c.entries[hits[0].ID]
	if !ok {
		// evicted while the lookup ran
		c.stats.Misses++
		return nil, 0, false
	}
	now := c.cfg.now()
	if now.Sub(entry.created) > c.cfg.TTL {
		c.drop(entry)
		c.index.Rebuild()
		c.stats.Evictions++
		c.stats.Misses++
		return nil, 0, false
	}

	entry.accesses++
	entry.lastAccess = now
	c.stats.Hits++
	c.stats.AvgSimilarity += (hits[0].Score - c.stats.AvgSimilarity) / float64(c.stats.Hits)
	c.logger.WithField("similarity", hits[0].Score).Debug("semantic cache hit")
	return entry.value.Clone(), hits[0].Score, true
}

// Put remembers value as the answer to question about file. A question that
// normalizes to one already cached for file replaces that entry.
func (c *SemanticCache) Put(ctx context.Context, file, question string, value *types.ArchaeologicalContext) {
	if value == nil {
		return
	}
	vec := c.embed(ctx, question)
	if vec == nil {
		return
	}
	normalized := NormalizeQuestion(question)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.cfg.now()

	for _, id := range c.byFile[file] {
		entry := c.entries[id]
		if entry.question != normalized {
			continue
		}
		if err := c.index.UpdateDocument(id, vec); err != nil {
			c.logger.WithError(err).Warn("failed to update semantic cache entry")
			return
		}
		entry.value = value.Clone()
		entry.created = now
		entry.lastAccess = now
		return
	}

	if len(c.entries) >= c.cfg.MaxEntries {
		c.evict(now)
	}

	c.seq++
	id := fmt.Sprintf("q_%d", c.seq)
	if err := c.index.AddDocuments([][]float32{vec}, []string{id}); err != nil {
		c.logger.WithError(err).Warn("failed to add semantic cache entry")
		return
	}
	c.entries[id] = &semanticEntry{
		id:         id,
		file:       file,
		question:   normalized,
		value:      value.Clone(),
		created:    now,
		lastAccess: now,
	}
	c.byFile[file] = append(c.byFile[file], id)
	c.stats.Size = len(c.entries)
}

// evict drops expired entries, then, if still full, keeps the best scoring
// share by a blend of recency and access frequency. Caller holds mu.
func (c *SemanticCache) evict(now time.Time) {
	evicted := 0
	for _, entry := range c.entries {
		if now.Sub(entry.created) > c.cfg.TTL {
			c.drop(entry)
			evicted++
		}
	}

	if len(c.entries) >= c.cfg.MaxEntries {
		maxAccess := 1
		for _, entry := range c.entries {
			if entry.accesses > maxAccess {
				maxAccess = entry.accesses
			}
		}

		type scored struct {
			entry *semanticEntry
			score float64
		}
		ranked := make([]scored, 0, len(c.entries))
		for _, entry := range c.entries {
			recency := 1.0 / (1.0 + now.Sub(entry.lastAccess).Hours())
			frequency := float64(entry.accesses) / float64(maxAccess)
			ranked = append(ranked, scored{entry: entry, score: 0.6*recency + 0.4*frequency})
		}
		// more recently used first among equal scores
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].score != ranked[j].score {
				return ranked[i].score > ranked[j].score
			}
			return ranked[i].entry.lastAccess.After(ranked[j].entry.lastAccess)
		})

		keep := int(float64(c.cfg.MaxEntries) * semanticKeepRatio)
		for _, r := range ranked[keep:] {
			c.drop(r.entry)
			evicted++
		}
	}

	if evicted > 0 {
		c.index.Rebuild()
		c.stats.Evictions += evicted
		c.logger.WithField("evicted", evicted).Debug("semantic cache eviction")
	}
	c.stats.Size = len(c.entries)
}

// drop removes entry from the maps and tombstones its vector. Caller holds mu.
func (c *SemanticCache) drop(entry *semanticEntry) {
	c.index.Remove(entry.id)
	delete(c.entries, entry.id)
	ids := c.byFile[entry.file]
	for i, id := range ids {
		if id == entry.id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(c.byFile, entry.file)
	} else {
		c.byFile[entry.file] = ids
	}
	c.stats.Size = len(c.entries)
}

// Clear drops every entry. Counters are kept.
func (c *SemanticCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Reset()
	c.entries = make(map[string]*semanticEntry)
	c.byFile = make(map[string][]string)
	c.stats.Size = 0
}

// Len returns the number of cached entries
func (c *SemanticCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters
func (c *SemanticCache) Stats() SemanticStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// embed returns the unit vector for the normalized question, or nil when the
// embedder has nothing usable
func (c *SemanticCache) embed(ctx context.Context, question string) []float32 {
	vec := c.embedder.EmbedQuery(ctx, NormalizeQuestion(question))
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

var (
	contractions = strings.NewReplacer(
		"what's", "what is", "isn't", "is not", "aren't", "are not",
		"won't", "will not", "can't", "cannot", "didn't", "did not",
		"doesn't", "does not", "haven't", "have not", "hasn't", "has not",
		"weren't", "were not", "wouldn't", "would not", "couldn't", "could not",
		"shouldn't", "should not",
	)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s?]`)
)

// NormalizeQuestion lowercases question, expands common contractions and
// strips punctuation other than question marks
func NormalizeQuestion(question string) string {
	q := contractions.Replace(strings.ToLower(question))
	q = punctuation.ReplaceAllString(q, " ")
	return strings.Join(strings.Fields(q), " ")
}
