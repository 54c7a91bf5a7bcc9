package vectorindex

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/storage"
)

// Supported metrics
const (
	MetricCosine = "cosine"
	MetricIP     = "ip"
	MetricL2     = "l2"
)

// DefaultDimension matches the default embedding model
const DefaultDimension = 384

// Common errors
var (
	ErrMisaligned     = errors.New("vectors and ids must have the same length")
	ErrDuplicateID    = errors.New("duplicate document id")
	ErrEmptyID        = errors.New("document id cannot be empty")
	ErrDimension      = errors.New("vector dimension mismatch")
	ErrUnknownMetric  = errors.New("unknown metric")
	ErrNoPath         = errors.New("index path not configured")
	ErrIndexNotFound  = errors.New("index not found")
	ErrCorruptIndex   = errors.New("corrupt index")
	ErrConfigMismatch = errors.New("persisted index does not match configuration")
)

// Config configures an Index
type Config struct {
	Dimension    int    // 0 adopts the dimension of the first added vector
	Metric       string // cosine (default), ip or l2
	IndexPath    string // binary vector blob
	MetadataPath string // SQLite sidecar
	Disabled     bool

	Logger logrus.FieldLogger
}

// Result is a single search hit
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Stats describes index contents and usage
type Stats struct {
	Available     bool   `json:"available"`
	Size          int    `json:"total_documents"`
	Active        int    `json:"active_documents"`
	Removed       int    `json:"removed_documents"`
	Dimension     int    `json:"dimension"`
	Metric        string `json:"metric"`
	TotalSearches int64  `json:"searches_performed"`
	MemoryBytes   int64  `json:"memory_bytes"`
}

// snapshot is an immutable view of the index contents
type snapshot struct {
	dimension int
	vectors   [][]float32
	ids       []string
	removed   []bool
	positions map[string]int
}

func emptySnapshot(dimension int) *snapshot {
	return &snapshot{dimension: dimension, positions: make(map[string]int)}
}

func (s *snapshot) activeCount() int {
	n := 0
	for _, r := range s.removed {
		if !r {
			n++
		}
	}
	return n
}

// Index is a flat exhaustive-search vector index
type Index struct {
	cfg       Config
	available bool
	logger    logrus.FieldLogger

	writeMu sync.Mutex // serializes writers
	current atomic.Pointer[snapshot]

	degradedSize  atomic.Int64
	totalSearches atomic.Int64
}

// New creates an empty index
func New(cfg Config) (*Index, error) {
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	switch cfg.Metric {
	case MetricCosine, MetricIP, MetricL2:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, cfg.Metric)
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("%w: negative dimension %d", ErrDimension, cfg.Dimension)
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}

	idx := &Index{
		cfg:       cfg,
		available: VectorIndexAvailable && !cfg.Disabled,
		logger:    cfg.Logger.WithField("component", "vectorindex"),
	}
	idx.current.Store(emptySnapshot(cfg.Dimension))

	if !idx.available {
		idx.logger.Warn("vector index backend unavailable, semantic search disabled")
	}
	return idx, nil
}

// Available reports whether searches can return results
func (x *Index) Available() bool {
	return x.available
}

// Size returns the number of documents added, including removed ones
func (x *Index) Size() int {
	if !x.available {
		return int(x.degradedSize.Load())
	}
	return len(x.current.Load().ids)
}

// Dimension returns the vector dimension, 0 if not yet known
func (x *Index) Dimension() int {
	return x.current.Load().dimension
}

// AddDocuments appends vectors with their positionally aligned ids.
// Ids must be unique within the batch and against existing documents.
func (x *Index) AddDocuments(vectors [][]float32, ids []string) error {
	if !x.available {
		x.degradedSize.Add(int64(len(ids)))
		return nil
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors, %d ids", ErrMisaligned, len(vectors), len(ids))
	}
	if len(ids) == 0 {
		return nil
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	old := x.current.Load()
	dim := old.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}

	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: position %d", ErrEmptyID, i)
		}
		if _, ok := old.positions[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
		if len(vectors[i]) != dim || dim == 0 {
			return fmt.Errorf("%w: %s has %d, want %d", ErrDimension, id, len(vectors[i]), dim)
		}
	}

	next := &snapshot{
		dimension: dim,
		vectors:   make([][]float32, len(old.vectors), len(old.vectors)+len(vectors)),
		ids:       make([]string, len(old.ids), len(old.ids)+len(ids)),
		removed:   make([]bool, len(old.removed), len(old.removed)+len(ids)),
		positions: make(map[string]int, len(old.positions)+len(ids)),
	}
	copy(next.vectors, old.vectors)
	copy(next.ids, old.ids)
	copy(next.removed, old.removed)
	for id, pos := range old.positions {
		next.positions[id] = pos
	}

	for i, id := range ids {
		vec := make([]float32, dim)
		copy(vec, vectors[i])
		next.positions[id] = len(next.ids)
		next.vectors = append(next.vectors, vec)
		next.ids = append(next.ids, id)
		next.removed = append(next.removed, false)
	}

	x.current.Store(next)
	x.logger.WithFields(logrus.Fields{"added": len(ids), "total": len(next.ids)}).Debug("added documents")
	return nil
}

// Search returns up to k hits ordered by descending score, ties by insertion order.
// It never fails: degraded mode, an empty index and a mismatched query all yield no results.
func (x *Index) Search(query []float32, k int) []Result {
	return x.search(query, k, nil)
}

// SearchWithin is Search restricted to the given document ids
func (x *Index) SearchWithin(query []float32, k int, ids []string) []Result {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return x.search(query, k, allowed)
}

// SearchBatch runs Search for each query against the same point-in-time
// contents. The result has one entry per query, in order.
func (x *Index) SearchBatch(queries [][]float32, k int) [][]Result {
	out := make([][]Result, len(queries))
	snap := x.current.Load()
	for i, q := range queries {
		out[i] = x.searchSnapshot(snap, q, k, nil)
	}
	return out
}

func (x *Index) search(query []float32, k int, allowed map[string]struct{}) []Result {
	return x.searchSnapshot(x.current.Load(), query, k, allowed)
}

func (x *Index) searchSnapshot(snap *snapshot, query []float32, k int, allowed map[string]struct{}) []Result {
	results := []Result{}
	if !x.available || k <= 0 {
		return results
	}

	if len(snap.ids) == 0 {
		return results
	}
	if len(query) != snap.dimension {
		x.logger.WithFields(logrus.Fields{
			"expected": snap.dimension,
			"actual":   len(query),
		}).Warn("query dimension mismatch")
		return results
	}

	for pos, vec := range snap.vectors {
		if snap.removed[pos] {
			continue
		}
		id := snap.ids[pos]
		if allowed != nil {
			if _, ok := allowed[id]; !ok {
				continue
			}
		}
		results = append(results, Result{ID: id, Score: x.score(query, vec)})
	}

	// results are already in insertion order, so a stable sort keeps ties ordered
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	x.totalSearches.Add(1)
	return results
}

func (x *Index) score(query, vec []float32) float64 {
	if x.cfg.Metric == MetricL2 {
		return 1.0 / (1.0 + storage.L2Distance(query, vec))
	}
	return storage.InnerProduct(query, vec)
}

// Contains reports whether id is present and not removed
func (x *Index) Contains(id string) bool {
	snap := x.current.Load()
	pos, ok := snap.positions[id]
	return ok && !snap.removed[pos]
}

// Remove tombstones id so it no longer appears in results.
// Returns false if id is unknown or already removed.
func (x *Index) Remove(id string) bool {
	if !x.available {
		return false
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	old := x.current.Load()
	pos, ok := old.positions[id]
	if !ok || old.removed[pos] {
		return false
	}

	next := *old
	next.removed = make([]bool, len(old.removed))
	copy(next.removed, old.removed)
	next.removed[pos] = true
	x.current.Store(&next)
	return true
}

// UpdateDocument replaces the vector stored for id, keeping its position so
// tie order is unchanged. A removed id is revived; an unknown id is added.
func (x *Index) UpdateDocument(id string, vector []float32) error {
	if !x.available {
		return nil
	}
	if id == "" {
		return ErrEmptyID
	}

	x.writeMu.Lock()
	old := x.current.Load()
	pos, ok := old.positions[id]
	if !ok {
		x.writeMu.Unlock()
		return x.AddDocuments([][]float32{vector}, []string{id})
	}
	defer x.writeMu.Unlock()

	if len(vector) != old.dimension {
		return fmt.Errorf("%w: %s has %d, want %d", ErrDimension, id, len(vector), old.dimension)
	}

	next := *old
	next.vectors = make([][]float32, len(old.vectors))
	copy(next.vectors, old.vectors)
	vec := make([]float32, len(vector))
	copy(vec, vector)
	next.vectors[pos] = vec
	next.removed = make([]bool, len(old.removed))
	copy(next.removed, old.removed)
	next.removed[pos] = false
	x.current.Store(&next)
	return nil
}

// Rebuild drops tombstoned documents, compacting positions
func (x *Index) Rebuild() {
	if !x.available {
		return
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	old := x.current.Load()
	next := emptySnapshot(old.dimension)
	for pos, id := range old.ids {
		if old.removed[pos] {
			continue
		}
		next.positions[id] = len(next.ids)
		next.vectors = append(next.vectors, old.vectors[pos])
		next.ids = append(next.ids, id)
		next.removed = append(next.removed, false)
	}
	x.current.Store(next)
}

// Reset empties the index
func (x *Index) Reset() {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	x.current.Store(emptySnapshot(x.cfg.Dimension))
	x.degradedSize.Store(0)
}

// Stats returns a point-in-time summary
func (x *Index) Stats() Stats {
	snap := x.current.Load()
	stats := Stats{
		Available:     x.available,
		Size:          x.Size(),
		Dimension:     snap.dimension,
		Metric:        x.cfg.Metric,
		TotalSearches: x.totalSearches.Load(),
	}
	if x.available {
		stats.Active = snap.activeCount()
		stats.Removed = len(snap.ids) - stats.Active
		stats.MemoryBytes = int64(len(snap.ids)) * int64(snap.dimension*4+100)
	} else {
		stats.Active = stats.Size
	}
	return stats
}
