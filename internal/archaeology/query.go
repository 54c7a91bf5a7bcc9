package archaeology

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/searcher"
	"github.com/dshills/whycontext-mcp/internal/synth"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// UnavailablePrefix starts every degraded answer
const UnavailablePrefix = "Archaeological context unavailable: "

// CacheKey returns the 64-character hex SHA-256 of the normalized path and the
// question. The path is length-prefixed so no two pairs share an encoding.
func CacheKey(filePath, question string) string {
	path := NormalizePath(filePath)
	h := sha256.New()
	h.Write(binary.AppendUvarint(nil, uint64(len(path))))
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(question))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizePath cleans a repository-relative path to forward-slash form
func NormalizePath(filePath string) string {
	if filePath == "" {
		return ""
	}
	p := filepath.ToSlash(filepath.Clean(filePath))
	return strings.TrimPrefix(p, "./")
}

// relativePath maps absolute paths under the repository root to relative ones
func (p *Provider) relativePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		if rel, err := filepath.Rel(p.repoPath, filePath); err == nil && !strings.HasPrefix(rel, "..") {
			return NormalizePath(rel)
		}
	}
	return NormalizePath(filePath)
}

// GetContextSync is GetContext without a caller context
func (p *Provider) GetContextSync(filePath, question string) *types.ArchaeologicalContext {
	return p.GetContext(context.Background(), filePath, question)
}

// GetContext answers question about filePath. It always returns a populated
// context: failures and timeouts produce a degraded answer with zero confidence.
// Work abandoned by a timed-out caller keeps running and caches its result.
func (p *Provider) GetContext(ctx context.Context, filePath, question string) *types.ArchaeologicalContext {
	start := time.Now()
	queryID := uuid.NewString()
	file := p.relativePath(filePath)
	logger := p.logger.WithFields(logrus.Fields{"query_id": queryID, "file": file})

	if file == "" || strings.TrimSpace(question) == "" {
		p.recordMiss()
		err := types.NewError(types.KindArgument, "file path and question are required", nil)
		return degraded(filePath, question, err, start, queryID)
	}

	key := CacheKey(file, question)
	if cached, ok := p.cache.Get(key); ok {
		p.recordHit()
		cached.Cached = true
		cached.QueryID = queryID
		cached.QueryTimeMs = sinceMs(start)
		logger.Debug("cache hit")
		return cached
	}
	if similar, ok := p.lookupSimilar(ctx, logger, key, file, question); ok {
		p.recordHit()
		similar.Cached = true
		similar.QueryID = queryID
		similar.QueryTimeMs = sinceMs(start)
		return similar
	}
	p.recordMiss()

	if p.lifetime.Err() != nil {
		err := types.NewError(types.KindInitialization, "provider closed", nil)
		return degraded(file, question, err, start, queryID)
	}

	if p.State() == StateInitFailed {
		if msg, ok := p.InitError(); ok {
			logger.Debug("initialization failed earlier, returning degraded answer")
			return degradedText(file, question, msg, start, queryID)
		}
	}

	results := make(chan *types.ArchaeologicalContext, 1)
	started := p.spawn(func() {
		results <- p.answer(p.lifetime, logger, key, file, question, start, queryID)
	})
	if !started {
		err := types.NewError(types.KindInitialization, "provider closed", nil)
		return degraded(file, question, err, start, queryID)
	}

	var deadline <-chan time.Time
	if p.opts.queryTimeout > 0 {
		timer := time.NewTimer(p.opts.queryTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case result := <-results:
		return result
	case <-deadline:
		logger.WithField("timeout", p.opts.queryTimeout.String()).Warn("query timed out")
		err := types.NewError(types.KindTimeout, fmt.Sprintf("query timed out after %s", p.opts.queryTimeout), nil)
		return degraded(file, question, err, start, queryID)
	case <-ctx.Done():
		logger.WithError(ctx.Err()).Warn("query cancelled")
		err := types.NewError(types.KindTimeout, "query cancelled", ctx.Err())
		return degraded(file, question, err, start, queryID)
	}
}

// answer runs a cache miss to completion and caches successful results
func (p *Provider) answer(ctx context.Context, logger logrus.FieldLogger, key, file, question string, start time.Time, queryID string) *types.ArchaeologicalContext {
	if err := p.ensureInitialized(ctx); err != nil {
		return degraded(file, question, err, start, queryID)
	}

	hist, syn, srch := p.collaborators()
	if hist == nil || syn == nil {
		err := types.NewError(types.KindInitialization, "provider was reset during the query", nil)
		return degraded(file, question, err, start, queryID)
	}

	var candidates []string
	if srch != nil {
		resp, err := srch.Search(ctx, searcher.SearchRequest{
			FilePath: file,
			Question: question,
			Limit:    searcher.DefaultLimit,
		})
		if err != nil {
			logger.WithError(err).Warn("semantic narrowing failed")
		} else {
			candidates = resp.Candidates
		}
	}

	ans, err := syn.SynthesizeAnswer(ctx, fmt.Sprintf("For file '%s': %s", file, question), hist, candidates)
	if err != nil {
		logger.WithError(err).Error("synthesis failed")
		return degraded(file, question, types.NewError(types.KindInitialization, "answer synthesis failed", err), start, queryID)
	}

	result := fromAnswer(file, question, ans)
	result.QueryID = queryID
	result.Timestamp = time.Now()
	result.QueryTimeMs = sinceMs(start)

	p.cache.Put(key, result)
	if p.l2 != nil {
		p.l2.Put(ctx, file, question, result)
	}
	p.recordQueryTime(result.QueryTimeMs)

	logger.WithFields(logrus.Fields{
		"confidence":  result.Confidence,
		"sources":     result.SourceCount(),
		"candidates":  len(candidates),
		"duration_ms": result.QueryTimeMs,
	}).Info("answered query")
	return result
}

// lookupSimilar consults the semantic cache after an exact miss and promotes
// a hit into the exact-match cache under key. The lookup shares the query budget.
func (p *Provider) lookupSimilar(ctx context.Context, logger logrus.FieldLogger, key, file, question string) (*types.ArchaeologicalContext, bool) {
	if p.l2 == nil {
		return nil, false
	}
	if p.opts.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.queryTimeout)
		defer cancel()
	}

	similar, similarity, ok := p.l2.Get(ctx, file, question)
	if !ok {
		return nil, false
	}
	logger.WithFields(logrus.Fields{
		"similarity": similarity,
		"matched":    similar.Question,
	}).Debug("semantic cache hit")
	similar.Question = question
	p.cache.Put(key, similar)
	return similar, true
}

func (p *Provider) collaborators() (*types.History, synth.Synthesizer, *searcher.Searcher) {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	return p.history, p.synth, p.searcher
}

func fromAnswer(file, question string, ans *types.Answer) *types.ArchaeologicalContext {
	sources := make([]types.ContextSource, 0, len(ans.Citations))
	for _, c := range ans.Citations {
		if c.CommitSHA == "" {
			continue
		}
		sources = append(sources, types.ContextSourceFromCitation(c))
	}
	return &types.ArchaeologicalContext{
		FilePath:   file,
		Question:   question,
		Answer:     ans.Answer,
		Sources:    sources,
		Confidence: types.Clamp01(ans.Confidence),
	}
}

func degraded(file, question string, err error, start time.Time, queryID string) *types.ArchaeologicalContext {
	return degradedText(file, question, err.Error(), start, queryID)
}

func degradedText(file, question, reason string, start time.Time, queryID string) *types.ArchaeologicalContext {
	return &types.ArchaeologicalContext{
		FilePath:    file,
		Question:    question,
		Answer:      UnavailablePrefix + reason,
		Sources:     []types.ContextSource{},
		Confidence:  0,
		QueryTimeMs: sinceMs(start),
		Timestamp:   time.Now(),
		QueryID:     queryID,
	}
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
