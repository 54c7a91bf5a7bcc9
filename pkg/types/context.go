package types

import (
	"time"
)

// HighConfidenceThreshold is the confidence at or above which an answer is considered reliable
const HighConfidenceThreshold = 0.7

// Source types reported by citations
const (
	SourceCommit      = "commit"
	SourcePullRequest = "pr"
	SourceIssue       = "issue"
)

// Citation is a synthesizer's reference to a commit supporting part of an answer
type Citation struct {
	CommitSHA      string
	CommitMessage  string
	Author         string
	CommitDate     time.Time
	SourceType     string
	RelevanceScore float64
	Excerpt        string
	URL            string
}

// ContextSource is a commit (or PR/issue) cited by an archaeological context.
// Values are immutable once built.
type ContextSource struct {
	CommitSHA      string    `json:"commit_sha"`
	CommitMessage  string    `json:"commit_message"`
	Author         string    `json:"author"`
	Date           time.Time `json:"date"`
	SourceType     string    `json:"source_type"`
	RelevanceScore float64   `json:"relevance_score"`
	Excerpt        string    `json:"excerpt"`
	URL            string    `json:"url,omitempty"`
}

// ContextSourceFromCitation adapts a synthesizer citation
func ContextSourceFromCitation(c Citation) ContextSource {
	sourceType := c.SourceType
	if sourceType == "" {
		sourceType = SourceCommit
	}
	return ContextSource{
		CommitSHA:      c.CommitSHA,
		CommitMessage:  c.CommitMessage,
		Author:         c.Author,
		Date:           c.CommitDate,
		SourceType:     sourceType,
		RelevanceScore: Clamp01(c.RelevanceScore),
		Excerpt:        c.Excerpt,
		URL:            c.URL,
	}
}

// Validate checks if the source is valid
func (s ContextSource) Validate() error {
	if s.CommitSHA == "" {
		return ErrMissingCommitSHA
	}
	if s.RelevanceScore < 0 || s.RelevanceScore > 1 {
		return ErrInvalidRelevance
	}
	return nil
}

// ArchaeologicalContext is a synthesized, cited answer to a historical question about a file
type ArchaeologicalContext struct {
	FilePath    string          `json:"file_path"`
	Question    string          `json:"question"`
	Answer      string          `json:"answer"`
	Sources     []ContextSource `json:"sources"`
	Confidence  float64         `json:"confidence"`
	Cached      bool            `json:"cached"`
	QueryTimeMs float64         `json:"query_time_ms"`
	Timestamp   time.Time       `json:"timestamp"`
	QueryID     string          `json:"query_id,omitempty"`
}

// HasHighConfidence reports whether confidence reaches HighConfidenceThreshold
func (c *ArchaeologicalContext) HasHighConfidence() bool {
	return c.Confidence >= HighConfidenceThreshold
}

// SourceCount returns the number of sources supporting the answer
func (c *ArchaeologicalContext) SourceCount() int {
	return len(c.Sources)
}

// Clone returns a deep copy so cached values cannot be mutated through returned pointers
func (c *ArchaeologicalContext) Clone() *ArchaeologicalContext {
	if c == nil {
		return nil
	}
	dst := *c
	if c.Sources != nil {
		dst.Sources = make([]ContextSource, len(c.Sources))
		copy(dst.Sources, c.Sources)
	}
	return &dst
}

// Validate checks if the context is valid
func (c *ArchaeologicalContext) Validate() error {
	if c.FilePath == "" {
		return ErrEmptyFilePath
	}
	if c.Question == "" {
		return ErrEmptyQuestion
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return ErrInvalidConfidence
	}
	if c.QueryTimeMs < 0 {
		return ErrNegativeQueryTime
	}
	for _, s := range c.Sources {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CacheStats tracks cache performance for a provider.
// Hits, Misses and TotalQueries are lifetime counters and survive cache clears.
type CacheStats struct {
	Hits           int     `json:"hits"`
	Misses         int     `json:"misses"`
	TotalQueries   int     `json:"total_queries"`
	CacheSize      int     `json:"cache_size"`
	MaxCacheSize   int     `json:"max_cache_size"`
	AvgQueryTimeMs float64 `json:"avg_query_time_ms"`

	timedSamples int
}

// HitRate returns hits/total_queries, or 0 when no queries were made
func (s CacheStats) HitRate() float64 {
	if s.TotalQueries == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(s.TotalQueries)
}

// RecordHit counts a cache hit
func (s *CacheStats) RecordHit() {
	s.TotalQueries++
	s.Hits++
}

// RecordMiss counts a cache miss
func (s *CacheStats) RecordMiss() {
	s.TotalQueries++
	s.Misses++
}

// RecordQueryTime rolls a latency sample into the running average
func (s *CacheStats) RecordQueryTime(ms float64) {
	s.timedSamples++
	s.AvgQueryTimeMs += (ms - s.AvgQueryTimeMs) / float64(s.timedSamples)
}

// Validate checks counter invariants
func (s CacheStats) Validate() error {
	if s.Hits+s.Misses != s.TotalQueries {
		return ErrCacheStatsInvariants
	}
	return nil
}

// ToMap exposes all counters plus the derived hit rate for external reporting
func (s CacheStats) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"hits":              s.Hits,
		"misses":            s.Misses,
		"total_queries":     s.TotalQueries,
		"hit_rate":          s.HitRate(),
		"avg_query_time_ms": s.AvgQueryTimeMs,
		"cache_size":        s.CacheSize,
		"max_cache_size":    s.MaxCacheSize,
	}
}

// Clamp01 clamps v to [0, 1]
func Clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
