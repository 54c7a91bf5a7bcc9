package archaeology

import (
	"github.com/dshills/whycontext-mcp/internal/cache"
	"github.com/dshills/whycontext-mcp/internal/embedder"
	"github.com/dshills/whycontext-mcp/internal/vectorindex"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// GetCacheStats returns a snapshot of the counters with the live cache size
func (p *Provider) GetCacheStats() types.CacheStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.CacheSize = p.cache.Len()
	return p.stats
}

// ClearCache empties both cache tiers. Lifetime counters are kept.
func (p *Provider) ClearCache() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.cache.Clear()
	if p.l2 != nil {
		p.l2.Clear()
	}
	p.stats.CacheSize = 0
	p.logger.Info("cache cleared")
}

// TierStats splits cache traffic between the exact-match and semantic tiers.
// Overall counts a semantic hit as a hit, matching GetCacheStats.
type TierStats struct {
	Overall  types.CacheStats     `json:"overall"`
	L1Hits   int                  `json:"l1_hits"`
	L1Misses int                  `json:"l1_misses"`
	L2Hits   int                  `json:"l2_hits"`
	L2Misses int                  `json:"l2_misses"`
	Semantic *cache.SemanticStats `json:"semantic,omitempty"`
}

// L1HitRate is exact-match hits over all queries
func (s TierStats) L1HitRate() float64 {
	return ratio(s.L1Hits, s.Overall.TotalQueries)
}

// L2HitRate is semantic hits over semantic lookups
func (s TierStats) L2HitRate() float64 {
	return ratio(s.L2Hits, s.L2Hits+s.L2Misses)
}

// ToMap extends the overall counters with the per-tier split
func (s TierStats) ToMap() map[string]interface{} {
	m := s.Overall.ToMap()
	m["l1_hits"] = s.L1Hits
	m["l1_misses"] = s.L1Misses
	m["l1_hit_rate"] = s.L1HitRate()
	m["l2_hits"] = s.L2Hits
	m["l2_misses"] = s.L2Misses
	m["l2_hit_rate"] = s.L2HitRate()
	m["combined_hit_rate"] = s.Overall.HitRate()
	m["semantic_cache_enabled"] = s.Semantic != nil
	if s.Semantic != nil {
		m["semantic"] = s.Semantic.ToMap()
	}
	return m
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0.0
	}
	return float64(n) / float64(d)
}

// GetTierStats returns the overall counters split by cache tier
func (p *Provider) GetTierStats() TierStats {
	ts := TierStats{Overall: p.GetCacheStats()}
	if p.l2 != nil {
		sem := p.l2.Stats()
		ts.Semantic = &sem
		ts.L2Hits = sem.Hits
		ts.L2Misses = sem.Misses
	}
	ts.L1Hits = ts.Overall.Hits - ts.L2Hits
	ts.L1Misses = ts.Overall.Misses + ts.L2Hits
	return ts
}

func (p *Provider) recordHit() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.RecordHit()
}

func (p *Provider) recordMiss() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.RecordMiss()
}

func (p *Provider) recordQueryTime(ms float64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.RecordQueryTime(ms)
	p.stats.CacheSize = p.cache.Len()
}

// Status summarizes provider health for reporting
type Status struct {
	RepoPath     string               `json:"repo_path"`
	State        string               `json:"state"`
	Initialized  bool                 `json:"initialized"`
	InitError    string               `json:"init_error,omitempty"`
	TotalCommits int                  `json:"total_commits"`
	Capabilities Capabilities         `json:"capabilities"`
	Index        *vectorindex.Stats   `json:"vector_index,omitempty"`
	Embedding    *embedder.ModelInfo  `json:"embedding,omitempty"`
	EmbedCache   *embedder.Stats      `json:"embedding_cache,omitempty"`
	L2Cache      *cache.SemanticStats `json:"semantic_cache,omitempty"`
}

// Status returns a point-in-time health summary
func (p *Provider) Status() Status {
	st := Status{
		RepoPath:     p.repoPath,
		State:        p.State().String(),
		Initialized:  p.IsInitialized(),
		Capabilities: p.caps,
	}
	if msg, ok := p.InitError(); ok {
		st.InitError = msg
	}
	if hist, _, _ := p.collaborators(); hist != nil {
		st.TotalCommits = hist.TotalCommits
	}
	if p.opts.index != nil {
		stats := p.opts.index.Stats()
		st.Index = &stats
	}
	if p.opts.embedder != nil {
		info := p.opts.embedder.ModelInfo()
		stats := p.opts.embedder.Stats()
		st.Embedding = &info
		st.EmbedCache = &stats
	}
	if p.l2 != nil {
		stats := p.l2.Stats()
		st.L2Cache = &stats
	}
	return st
}
