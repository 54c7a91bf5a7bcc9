package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/whycontext-mcp/internal/vectorindex"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// DefaultBatchSize is the number of commits embedded per batch
const DefaultBatchSize = 100

// ErrIndexingInProgress is returned when another build holds the lock
var ErrIndexingInProgress = errors.New("indexing already in progress")

// CommitEmbedder turns commits into vectors and their document ids
type CommitEmbedder interface {
	EmbedCommits(ctx context.Context, commits []types.Commit) ([][]float32, []string)
}

// Indexer builds the commit vector index from mined history
type Indexer struct {
	embedder CommitEmbedder
	index    *vectorindex.Index
	lock     IndexLock
	logger   logrus.FieldLogger

	// Worker pool configuration
	workers   int
	batchSize int
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int // Number of concurrent embedding batches (default: runtime.NumCPU())
	BatchSize int // Commits per embedding batch (default: 100)
	Logger    logrus.FieldLogger
}

// Statistics contains statistics about an indexing run
type Statistics struct {
	CommitsIndexed int
	CommitsSkipped int // already present in the index
	CommitsFailed  int // embedding fell back to the zero vector
	Batches        int
	Loaded         bool // index was restored from disk
	Duration       time.Duration
}

// New creates an indexer writing into index. A nil config uses defaults.
func New(emb CommitEmbedder, index *vectorindex.Index, config *Config) *Indexer {
	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := config.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &Indexer{
		embedder:  emb,
		index:     index,
		logger:    logger.WithField("component", "indexer"),
		workers:   workers,
		batchSize: batchSize,
	}
}

// LoadOrBuild restores the persisted index and adds any commits it is missing.
// A missing, stale or corrupt index is rebuilt from history and saved.
func (idx *Indexer) LoadOrBuild(ctx context.Context, history *types.History) (*Statistics, error) {
	if !idx.index.Available() {
		return &Statistics{}, nil
	}

	loaded := false
	err := idx.index.Load(ctx)
	switch {
	case err == nil:
		loaded = true
	case errors.Is(err, vectorindex.ErrNoPath):
		// in-memory only
	case errors.Is(err, vectorindex.ErrIndexNotFound),
		errors.Is(err, vectorindex.ErrConfigMismatch),
		errors.Is(err, vectorindex.ErrCorruptIndex):
		idx.logger.WithError(err).Info("rebuilding vector index")
		idx.index.Reset()
	default:
		return nil, fmt.Errorf("failed to load vector index: %w", err)
	}

	stats, err := idx.IndexHistory(ctx, history)
	if err != nil {
		return nil, err
	}
	stats.Loaded = loaded

	if stats.CommitsIndexed > 0 || !loaded {
		if err := idx.index.Save(ctx); err != nil && !errors.Is(err, vectorindex.ErrNoPath) {
			return stats, fmt.Errorf("failed to save vector index: %w", err)
		}
	}
	return stats, nil
}

// IndexHistory embeds every commit not already in the index and adds it.
// Batches are embedded concurrently and added in history order.
func (idx *Indexer) IndexHistory(ctx context.Context, history *types.History) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	startTime := time.Now()
	stats := &Statistics{}
	if history == nil {
		stats.Duration = time.Since(startTime)
		return stats, nil
	}

	pending := make([]types.Commit, 0, len(history.Commits))
	seen := make(map[string]struct{}, len(history.Commits))
	for _, c := range history.Commits {
		if c.SHA == "" {
			continue
		}
		if _, dup := seen[c.SHA]; dup {
			continue
		}
		seen[c.SHA] = struct{}{}
		if idx.index.Contains(c.DocID()) {
			stats.CommitsSkipped++
			continue
		}
		pending = append(pending, c)
	}

	batches := split(pending, idx.batchSize)
	vectors := make([][][]float32, len(batches))
	ids := make([][]string, len(batches))
	var failed atomic.Int32

	// Use errgroup for concurrent embedding with error propagation
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, batch := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vecs, docIDs := idx.embedder.EmbedCommits(gctx, batch)
			if len(vecs) != len(docIDs) {
				return fmt.Errorf("embedder returned %d vectors for %d commits", len(vecs), len(docIDs))
			}
			// zero vectors carry no signal, leave those commits out
			keptVecs := vecs[:0]
			keptIDs := docIDs[:0]
			for j, v := range vecs {
				if isZero(v) {
					failed.Add(1)
					continue
				}
				keptVecs = append(keptVecs, v)
				keptIDs = append(keptIDs, docIDs[j])
			}
			vectors[i], ids[i] = keptVecs, keptIDs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range batches {
		if err := idx.index.AddDocuments(vectors[i], ids[i]); err != nil {
			return nil, fmt.Errorf("failed to add batch %d: %w", i, err)
		}
		stats.CommitsIndexed += len(ids[i])
	}
	stats.Batches = len(batches)
	stats.CommitsFailed = int(failed.Load())
	stats.Duration = time.Since(startTime)

	idx.logger.WithFields(logrus.Fields{
		"indexed":     stats.CommitsIndexed,
		"skipped":     stats.CommitsSkipped,
		"failed":      stats.CommitsFailed,
		"duration_ms": stats.Duration.Milliseconds(),
	}).Info("indexed commit history")
	return stats, nil
}

func split(commits []types.Commit, size int) [][]types.Commit {
	var batches [][]types.Commit
	for i := 0; i < len(commits); i += size {
		end := i + size
		if end > len(commits) {
			end = len(commits)
		}
		batches = append(batches, commits[i:end])
	}
	return batches
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
