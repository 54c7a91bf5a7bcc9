package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/whycontext-mcp/internal/vectorindex"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// Search limits
const (
	DefaultLimit = 20
	MaxLimit     = 100

	cacheSize = 1000
)

// ErrEmptyQuestion is returned for blank questions
var ErrEmptyQuestion = errors.New("question cannot be empty")

// QueryEmbedder embeds query text
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) []float32
}

// SearchRequest contains parameters for a narrowing search
type SearchRequest struct {
	FilePath string
	Question string
	Limit    int // default 20, capped at 100
}

// SearchResponse contains candidate commits and metadata
type SearchResponse struct {
	Candidates []string // commit SHAs, best first
	Hits       []vectorindex.Result
	Duration   time.Duration
	CacheHit   bool
}

// Searcher maps questions to candidate commits through the vector index
type Searcher struct {
	embedder QueryEmbedder
	index    *vectorindex.Index
	cache    *lru.Cache[[32]byte, *SearchResponse]
}

// NewSearcher creates a new Searcher instance
func NewSearcher(emb QueryEmbedder, index *vectorindex.Index) *Searcher {
	cache, err := lru.New[[32]byte, *SearchResponse](cacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{embedder: emb, index: index, cache: cache}
}

// QueryText renders the text embedded for a question about a file
func QueryText(filePath, question string) string {
	return "File: " + filePath + " Question: " + question
}

// Search returns the commits most similar to the question. It only fails on
// an invalid request; every degraded path yields an empty response.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	empty := &SearchResponse{Candidates: []string{}, Hits: []vectorindex.Result{}}
	if s.index == nil || s.embedder == nil || !s.index.Available() || s.index.Size() == 0 {
		empty.Duration = time.Since(startTime)
		return empty, nil
	}

	key := cacheKey(req)
	if cached, ok := s.cache.Get(key); ok {
		resp := copyResponse(cached)
		resp.CacheHit = true
		resp.Duration = time.Since(startTime)
		return resp, nil
	}

	query := s.embedder.EmbedQuery(ctx, QueryText(req.FilePath, req.Question))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isZero(query) {
		empty.Duration = time.Since(startTime)
		return empty, nil
	}

	hits := s.index.Search(query, req.Limit)
	resp := &SearchResponse{
		Candidates: make([]string, 0, len(hits)),
		Hits:       hits,
	}
	for _, hit := range hits {
		if sha, ok := types.SHAFromDocID(hit.ID); ok {
			resp.Candidates = append(resp.Candidates, sha)
		}
	}

	if len(resp.Candidates) > 0 {
		s.cache.Add(key, copyResponse(resp))
	}
	resp.Duration = time.Since(startTime)
	return resp, nil
}

// ClearCache drops memoized responses, required after the index changes
func (s *Searcher) ClearCache() {
	s.cache.Purge()
}

// validateRequest checks the request and applies limit defaults
func validateRequest(req *SearchRequest) error {
	if req.Question == "" {
		return ErrEmptyQuestion
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

func cacheKey(req SearchRequest) [32]byte {
	return sha256.Sum256([]byte(req.FilePath + "\x00" + req.Question + "\x00" + strconv.Itoa(req.Limit)))
}

func copyResponse(r *SearchResponse) *SearchResponse {
	out := &SearchResponse{
		Candidates: make([]string, len(r.Candidates)),
		Hits:       make([]vectorindex.Result, len(r.Hits)),
	}
	copy(out.Candidates, r.Candidates)
	copy(out.Hits, r.Hits)
	return out
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
