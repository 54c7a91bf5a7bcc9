package archaeology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/cache"
	"github.com/dshills/whycontext-mcp/internal/embedder"
	"github.com/dshills/whycontext-mcp/internal/history"
	"github.com/dshills/whycontext-mcp/internal/indexer"
	"github.com/dshills/whycontext-mcp/internal/searcher"
	"github.com/dshills/whycontext-mcp/internal/synth"
	"github.com/dshills/whycontext-mcp/internal/vectorindex"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// Provider defaults
const (
	DefaultCacheSize    = 1000
	DefaultQueryTimeout = 2 * time.Second
)

// ErrInitInProgress is returned by Reset while initialization is running
var ErrInitInProgress = errors.New("initialization in progress")

// State is the provider's initialization state
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateInitFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateInitFailed:
		return "init_failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option configures a Provider
type Option func(*options)

type options struct {
	cacheSize    int
	queryTimeout time.Duration
	historyLimit int
	miner        history.Miner
	synthesizer  synth.Synthesizer
	embedder     *embedder.Generator
	index        *vectorindex.Index
	semantic     bool
	l2           bool
	l2Config     cache.SemanticConfig
	logger       logrus.FieldLogger
}

// WithCacheSize bounds the answer cache; 0 disables caching
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithQueryTimeout sets the per-query wall-clock budget; 0 disables it
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) { o.queryTimeout = d }
}

// WithHistoryLimit caps the commits mined by the default git miner
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithMiner replaces the default git miner
func WithMiner(m history.Miner) Option {
	return func(o *options) { o.miner = m }
}

// WithSynthesizer replaces the default extractive synthesizer
func WithSynthesizer(s synth.Synthesizer) Option {
	return func(o *options) { o.synthesizer = s }
}

// WithEmbedder supplies the generator used for semantic narrowing
func WithEmbedder(g *embedder.Generator) Option {
	return func(o *options) { o.embedder = g }
}

// WithVectorIndex supplies the commit index used for semantic narrowing
func WithVectorIndex(x *vectorindex.Index) Option {
	return func(o *options) { o.index = x }
}

// WithSemantic toggles semantic narrowing (on by default when an embedder and index are set)
func WithSemantic(enabled bool) Option {
	return func(o *options) { o.semantic = enabled }
}

// WithSemanticCache toggles the similar-question cache behind the exact-match
// cache (on by default when an embedder is set)
func WithSemanticCache(enabled bool) Option {
	return func(o *options) { o.l2 = enabled }
}

// WithSemanticCacheConfig sets the similar-question cache capacity, threshold and TTL
func WithSemanticCacheConfig(cfg cache.SemanticConfig) Option {
	return func(o *options) { o.l2Config = cfg }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// Capabilities reports which optional backends are usable, decided at construction
type Capabilities struct {
	EmbeddingBackendAvailable bool `json:"embedding_backend_available"`
	VectorIndexAvailable      bool `json:"vector_index_available"`
	SemanticEnabled           bool `json:"semantic_enabled"`
	SemanticCacheEnabled      bool `json:"semantic_cache_enabled"`
}

// Provider answers historical questions about files in one repository
type Provider struct {
	repoPath string
	opts     options
	caps     Capabilities
	cache    *cache.LRUCache
	l2       *cache.SemanticCache // nil when disabled
	logger   logrus.FieldLogger

	statsMu sync.Mutex
	stats   types.CacheStats

	initMu   sync.Mutex
	state    atomic.Int32
	initDone chan struct{} // closed when the running attempt finishes
	initErr  error
	history  *types.History
	synth    synth.Synthesizer
	searcher *searcher.Searcher

	// background work outlives callers but not the provider
	lifetime context.Context
	cancel   context.CancelFunc
	bgMu     sync.Mutex // orders workers.Add against Close
	workers  sync.WaitGroup
}

// New creates a provider for the repository at repoPath. An invalid root
// is the only error reported synchronously.
func New(repoPath string, opts ...Option) (*Provider, error) {
	o := options{
		cacheSize:    DefaultCacheSize,
		queryTimeout: DefaultQueryTimeout,
		historyLimit: history.DefaultLimit,
		semantic:     true,
		l2:           true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}

	root, err := validateRepoPath(repoPath)
	if err != nil {
		return nil, err
	}
	if o.cacheSize < 0 {
		return nil, types.NewError(types.KindConfiguration, fmt.Sprintf("cache size cannot be negative: %d", o.cacheSize), nil)
	}
	if o.queryTimeout < 0 {
		return nil, types.NewError(types.KindConfiguration, fmt.Sprintf("query timeout cannot be negative: %s", o.queryTimeout), nil)
	}

	caps := Capabilities{
		EmbeddingBackendAvailable: o.embedder != nil && o.embedder.ModelLoaded(),
		VectorIndexAvailable:      o.index != nil && o.index.Available(),
	}
	caps.SemanticEnabled = o.semantic && caps.EmbeddingBackendAvailable && caps.VectorIndexAvailable

	lifetime, cancel := context.WithCancel(context.Background())
	p := &Provider{
		repoPath: root,
		opts:     o,
		caps:     caps,
		cache:    cache.NewLRUCache(o.cacheSize),
		logger:   o.logger.WithField("component", "archaeology"),
		lifetime: lifetime,
		cancel:   cancel,
	}
	p.stats.MaxCacheSize = o.cacheSize

	// the semantic tier sits behind the exact-match cache, so a disabled cache disables both
	if o.l2 && o.cacheSize > 0 && caps.EmbeddingBackendAvailable {
		l2cfg := o.l2Config
		if l2cfg.Logger == nil {
			l2cfg.Logger = o.logger
		}
		l2, err := cache.NewSemanticCache(o.embedder, l2cfg)
		if err != nil {
			if errors.Is(err, cache.ErrInvalidThreshold) {
				cancel()
				return nil, types.NewError(types.KindConfiguration, "invalid semantic cache configuration", err)
			}
			p.logger.WithError(err).Warn("semantic cache unavailable")
		} else {
			p.l2 = l2
			p.caps.SemanticCacheEnabled = true
		}
	}

	p.logger.WithFields(logrus.Fields{
		"repo":           root,
		"cache_size":     o.cacheSize,
		"timeout":        o.queryTimeout.String(),
		"semantic":       caps.SemanticEnabled,
		"semantic_cache": p.l2 != nil,
	}).Debug("provider created")
	return p, nil
}

func validateRepoPath(repoPath string) (string, error) {
	if repoPath == "" {
		return "", types.NewError(types.KindConfiguration, "repository path cannot be empty", nil)
	}
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return "", types.NewError(types.KindConfiguration, "invalid repository path", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", types.NewError(types.KindConfiguration, fmt.Sprintf("repository path does not exist: %s", root), err)
	}
	if !info.IsDir() {
		return "", types.NewError(types.KindConfiguration, fmt.Sprintf("repository path is not a directory: %s", root), nil)
	}
	// .git is a file in worktrees and submodules
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return "", types.NewError(types.KindConfiguration, fmt.Sprintf("not a git repository: %s", root), err)
	}
	return root, nil
}

// RepoPath returns the absolute repository root
func (p *Provider) RepoPath() string {
	return p.repoPath
}

// Capabilities returns the backend flags decided at construction
func (p *Provider) Capabilities() Capabilities {
	return p.caps
}

// State returns the current initialization state
func (p *Provider) State() State {
	return State(p.state.Load())
}

// IsInitialized reports whether history has been mined successfully
func (p *Provider) IsInitialized() bool {
	return p.State() == StateInitialized
}

// InitError returns the recorded initialization error, if any
func (p *Provider) InitError() (string, bool) {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	if p.initErr == nil {
		return "", false
	}
	return p.initErr.Error(), true
}

// Reset returns a failed or initialized provider to the uninitialized state
// so the next query mines history again. Cached answers are kept.
func (p *Provider) Reset() error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.State() == StateInitializing {
		return ErrInitInProgress
	}
	p.state.Store(int32(StateUninitialized))
	p.initErr = nil
	p.initDone = nil
	p.history = nil
	p.synth = nil
	p.searcher = nil
	p.logger.Info("provider reset")
	return nil
}

// Warm initializes now instead of on the first query. ctx bounds only the
// wait: if it ends first, initialization carries on in the background.
func (p *Provider) Warm(ctx context.Context) error {
	return p.ensureInitialized(ctx)
}

// ensureInitialized runs initialization at most once; concurrent callers wait for
// the running attempt and share its outcome. The attempt runs under the provider
// lifetime, so a caller giving up never fails it.
func (p *Provider) ensureInitialized(ctx context.Context) error {
	p.initMu.Lock()
	switch p.State() {
	case StateInitialized:
		p.initMu.Unlock()
		return nil
	case StateInitFailed:
		err := p.initErr
		p.initMu.Unlock()
		return err
	case StateInitializing:
		done := p.initDone
		p.initMu.Unlock()
		return p.awaitInit(ctx, done)
	}

	done := make(chan struct{})
	if !p.spawn(func() { p.runInit(done) }) {
		p.initMu.Unlock()
		return types.NewError(types.KindInitialization, "provider closed", nil)
	}
	p.initDone = done
	p.state.Store(int32(StateInitializing))
	p.initMu.Unlock()

	return p.awaitInit(ctx, done)
}

func (p *Provider) runInit(done chan struct{}) {
	hist, syn, srch, err := p.initialize(p.lifetime)

	p.initMu.Lock()
	defer p.initMu.Unlock()
	if err != nil {
		p.initErr = err
		p.state.Store(int32(StateInitFailed))
	} else {
		p.history, p.synth, p.searcher = hist, syn, srch
		p.state.Store(int32(StateInitialized))
	}
	close(done)
}

func (p *Provider) awaitInit(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return p.initOutcome()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) initOutcome() error {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	return p.initErr
}

// spawn runs fn as tracked background work. It refuses once Close has begun.
func (p *Provider) spawn(fn func()) bool {
	p.bgMu.Lock()
	defer p.bgMu.Unlock()
	if p.lifetime.Err() != nil {
		return false
	}
	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		fn()
	}()
	return true
}

// initialize builds the collaborators. Panics are converted to errors.
func (p *Provider) initialize(ctx context.Context) (hist *types.History, syn synth.Synthesizer, srch *searcher.Searcher, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = types.NewError(types.KindInitialization, "initialization panicked", fmt.Errorf("%v", r))
		}
		if err != nil {
			p.logger.WithError(err).Error("initialization failed")
		}
	}()

	miner := p.opts.miner
	if miner == nil {
		miner = history.NewGitMiner(p.repoPath,
			history.WithLimit(p.opts.historyLimit),
			history.WithLogger(p.logger))
	}
	hist, err = miner.AnalyzeRepo(ctx)
	if err != nil {
		return nil, nil, nil, types.NewError(types.KindInitialization, "history mining failed", err)
	}
	if hist == nil {
		hist = types.NewHistory(nil)
	}

	syn = p.opts.synthesizer
	if syn == nil {
		syn = synth.NewExtractive()
	}

	if p.caps.SemanticEnabled {
		srch = p.buildSearcher(ctx, hist)
	}

	p.logger.WithFields(logrus.Fields{
		"commits":     hist.TotalCommits,
		"semantic":    srch != nil,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("provider initialized")
	return hist, syn, srch, nil
}

// buildSearcher loads or builds the commit index; failures only disable narrowing
func (p *Provider) buildSearcher(ctx context.Context, hist *types.History) *searcher.Searcher {
	ixr := indexer.New(p.opts.embedder, p.opts.index, &indexer.Config{Logger: p.logger})
	stats, err := ixr.LoadOrBuild(ctx, hist)
	if err != nil {
		p.logger.WithError(err).Warn("vector index unavailable, semantic narrowing disabled")
		return nil
	}
	p.logger.WithFields(logrus.Fields{
		"indexed": stats.CommitsIndexed,
		"loaded":  stats.Loaded,
	}).Debug("commit index ready")
	return searcher.NewSearcher(p.opts.embedder, p.opts.index)
}

// Close stops background work and flushes the embedding memo
func (p *Provider) Close() error {
	p.bgMu.Lock()
	p.cancel()
	p.bgMu.Unlock()
	p.workers.Wait()
	if p.opts.embedder != nil {
		return p.opts.embedder.SaveCache(context.Background())
	}
	return nil
}
