package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Creeper5261/Rikki-sub002/internal/cache"
	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// Cancel modes for source branches that outlive their deadline.
const (
	// CancelModeCancel cancels the branch context when a deadline passes.
	CancelModeCancel = "cancel"
	// CancelModeAbandon runs branches detached and stops waiting for them.
	CancelModeAbandon = "abandon"
)

// Orchestrator defaults.
const (
	DefaultTopK           = 5
	DefaultSourceTimeout  = 3500 * time.Millisecond
	DefaultOverallTimeout = 5 * time.Second
	DefaultSourceRetries  = 1
	DefaultRetryBackoff   = 120 * time.Millisecond
	DefaultResultCache    = 256
)

var errSourceTimeout = errors.New("source timed out")

// Config tunes an Orchestrator. Zero durations and sizes take the defaults.
// SourceRetries is used as given, so zero means a single attempt; start from
// DefaultConfig to get the default retry count.
type Config struct {
	SourceTimeout  time.Duration
	OverallTimeout time.Duration
	SourceRetries  int // negative counts as zero
	RetryBackoff   time.Duration
	CancelMode     string
	CacheSize      int
	// SnippetChars caps vector snippets built by NewHybrid.
	SnippetChars int
}

// DefaultConfig returns the default orchestrator settings.
func DefaultConfig() Config {
	return Config{
		SourceTimeout:  DefaultSourceTimeout,
		OverallTimeout: DefaultOverallTimeout,
		SourceRetries:  DefaultSourceRetries,
		RetryBackoff:   DefaultRetryBackoff,
		CancelMode:     CancelModeCancel,
		CacheSize:      DefaultResultCache,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = d.SourceTimeout
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = d.OverallTimeout
	}
	if c.SourceRetries < 0 {
		c.SourceRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.CancelMode != CancelModeAbandon {
		c.CancelMode = CancelModeCancel
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	return c
}

// Orchestrator runs the hybrid search over its sources. Sources are merged
// in the order given, so earlier sources win location collisions.
type Orchestrator struct {
	sources []Source
	cfg     Config
	cache   *cache.LRU[string, []ScoredHit]
}

var _ Searcher = (*Orchestrator)(nil)

// NewOrchestrator creates an orchestrator over sources in priority order.
// Nil sources are skipped.
func NewOrchestrator(cfg Config, sources ...Source) *Orchestrator {
	cfg = cfg.withDefaults()
	var kept []Source
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Orchestrator{
		sources: kept,
		cfg:     cfg,
		cache:   cache.NewWithClone[string, []ScoredHit](cfg.CacheSize, cloneScored),
	}
}

// NewHybrid wires the standard symbol, filename and vector sources. keywords,
// when set, backs the vector source while the document store is down or
// empty.
func NewHybrid(cfg Config, symbols SymbolFinder, files FileFinder, vectors VectorSearcher, keywords KeywordSearcher) *Orchestrator {
	var sources []Source
	if symbols != nil {
		sources = append(sources, NewSymbolSource(symbols))
	}
	if files != nil {
		sources = append(sources, NewFileSource(files))
	}
	if vectors != nil {
		vs := NewVectorSource(vectors, keywords)
		if cfg.SnippetChars > 0 {
			vs.snippetChars = cfg.SnippetChars
		}
		sources = append(sources, vs)
	}
	return NewOrchestrator(cfg, sources...)
}

// CacheKey is the result cache key for a search.
func CacheKey(root, query string, topK int) string {
	return fmt.Sprintf("%s|%s|%d",
		strings.ToLower(strings.TrimSpace(root)),
		strings.ToLower(strings.TrimSpace(query)),
		topK)
}

// Search returns at most topK scored hits for query under root. It never
// fails: unavailable sources contribute nothing.
func (o *Orchestrator) Search(ctx context.Context, root, query string, topK int) []ScoredHit {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	key := CacheKey(root, query, topK)
	if cached, ok := o.cache.Get(key); ok {
		slog.Info("search_hybrid_cache_hit",
			slog.String("root", root),
			slog.String("query", truncateQuery(query, 50)),
			slog.Int("hits", len(cached)))
		return cached
	}

	start := time.Now()
	fetchK := ComputeFetchK(query, topK)

	var merged []Hit
	for _, hits := range o.fanOut(ctx, root, query, fetchK) {
		merged = append(merged, hits...)
	}

	deduped := dedupAndHydrate(merged, root, fetchK)
	scored := Score(query, deduped)
	final := ApplyQualityFilter(query, scored, topK)

	slog.Info("search_hybrid_done",
		slog.String("root", root),
		slog.String("query", truncateQuery(query, 50)),
		slog.Int("fetch_k", fetchK),
		slog.Int("candidates", len(deduped)),
		slog.Int("hits", len(final)),
		slog.Duration("took", time.Since(start)))

	o.cache.Add(key, final)
	return final
}

// Purge drops every cached result.
func (o *Orchestrator) Purge() {
	o.cache.Purge()
}

// fanOut queries every source concurrently and returns their hits in
// source order. Sources still running when the overall deadline passes
// contribute nothing.
func (o *Orchestrator) fanOut(ctx context.Context, root, query string, fetchK int) [][]Hit {
	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.OverallTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(waitCtx)
	parent := gctx
	if o.cfg.CancelMode == CancelModeAbandon {
		parent = context.WithoutCancel(ctx)
	}

	var mu sync.Mutex
	results := make([][]Hit, len(o.sources))
	for i, src := range o.sources {
		g.Go(func() error {
			hits := o.fetch(parent, src, root, query, fetchK)
			mu.Lock()
			results[i] = hits
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-waitCtx.Done():
		slog.Warn("search_hybrid_timeout",
			slog.String("root", root),
			slog.String("mode", o.cfg.CancelMode),
			slog.Duration("limit", o.cfg.OverallTimeout))
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([][]Hit, len(results))
	copy(out, results)
	return out
}

// fetch runs one source with retries under the per-source deadline. Any
// failure yields an empty list.
func (o *Orchestrator) fetch(parent context.Context, src Source, root, query string, limit int) []Hit {
	start := time.Now()
	retry := apperrors.LinearRetryConfig(o.cfg.SourceRetries, o.cfg.RetryBackoff)
	run := func(ctx context.Context) ([]Hit, error) {
		return apperrors.RetryWithResult(ctx, retry, func() ([]Hit, error) {
			return src.Fetch(ctx, root, query, limit)
		})
	}

	var hits []Hit
	var err error
	if o.cfg.CancelMode == CancelModeAbandon {
		hits, err = runDetached(parent, o.cfg.SourceTimeout, run)
	} else {
		ctx, cancel := context.WithTimeout(parent, o.cfg.SourceTimeout)
		hits, err = run(ctx)
		cancel()
	}

	if err != nil {
		slog.Warn("search_source_failed",
			slog.String("source", src.Name()),
			slog.String("error", err.Error()),
			slog.Duration("took", time.Since(start)))
		return nil
	}
	slog.Debug("search_source_done",
		slog.String("source", src.Name()),
		slog.Int("hits", len(hits)),
		slog.Duration("took", time.Since(start)))
	return hits
}

// runDetached starts fn and waits for it at most timeout. A late fn keeps
// running and its result is dropped.
func runDetached(ctx context.Context, timeout time.Duration, fn func(context.Context) ([]Hit, error)) ([]Hit, error) {
	type result struct {
		hits []Hit
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		hits, err := fn(ctx)
		ch <- result{hits, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.hits, r.err
	case <-timer.C:
		return nil, errSourceTimeout
	}
}

func truncateQuery(q string, n int) string {
	r := []rune(q)
	if len(r) <= n {
		return q
	}
	return string(r[:n]) + "..."
}
