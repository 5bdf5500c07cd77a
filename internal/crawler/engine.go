package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/frontier"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
)

// ErrInvalidSeed is returned by Run when the seed is not an absolute http(s) URL.
var ErrInvalidSeed = errors.New("invalid seed url")

// Engine coordinates a pool of workers over one crawl.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	extractor Extractor
	reporter  Reporter
	visited   VisitedSet
	pauser    pauser
	logger    *zap.Logger
}

// NewEngine wires the collaborators for a crawl. The visited set must be
// fresh: it scopes deduplication to a single Run.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	extractor Extractor,
	reporter Reporter,
	visited VisitedSet,
	logger *zap.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("crawler config: %w", err)
	}
	if fetcher == nil || extractor == nil || reporter == nil || visited == nil {
		return nil, errors.New("fetcher, extractor, reporter and visited set are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		reporter:  reporter,
		visited:   visited,
		pauser:    timerPauser{},
		logger:    logger.Named("crawler"),
	}, nil
}

// crawlRun is the shared state of one Run, handed to every worker.
type crawlRun struct {
	frontier  *frontier.Queue[Task]
	pages     atomic.Int64
	admission admission
}

// claimPage reserves one slot of the page budget. It returns the slot's
// ordinal, or false once the budget is spent.
func (r *crawlRun) claimPage(limit int64) (int64, bool) {
	for {
		cur := r.pages.Load()
		if cur >= limit {
			return cur, false
		}
		if r.pages.CompareAndSwap(cur, cur+1) {
			return cur + 1, true
		}
	}
}

// Run crawls from the seed until the page budget is spent, the frontier
// drains, or ctx is cancelled. Cancellation stops the frontier; fetches
// already in flight finish on their own timeouts.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	seed, err := NormalizeURL(e.cfg.SeedURL)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if _, ok := ResolveURL(seed, seed); !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrInvalidSeed, e.cfg.SeedURL)
	}

	run := &crawlRun{
		frontier: frontier.New[Task](),
		admission: admission{
			maxDepth:      e.cfg.MaxDepth,
			allowedDomain: e.cfg.AllowedDomain,
			visited:       e.visited,
		},
	}
	if _, err := e.visited.Claim(ctx, seed); err != nil {
		return Stats{}, fmt.Errorf("claim seed: %w", err)
	}
	run.frontier.Push(Task{URL: seed, Depth: 0})

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.logger.Info("crawl cancelled; stopping frontier", zap.Error(ctx.Err()))
			run.frontier.Stop()
		case <-done:
		}
	}()

	workers := e.cfg.WorkerCount()
	e.logger.Info("crawl starting",
		zap.String("seed", seed),
		zap.String("allowed_domain", e.cfg.AllowedDomain),
		zap.Int("workers", workers),
		zap.Int("max_pages", e.cfg.MaxPages),
		zap.Int("max_depth", e.cfg.MaxDepth),
	)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runWorker(ctx, i, run)
		}()
	}
	wg.Wait()
	close(done)
	run.frontier.Stop()

	stats := Stats{
		PagesCrawled: run.pages.Load(),
		Duration:     time.Since(start),
	}
	if size, err := e.visited.Size(context.WithoutCancel(ctx)); err != nil {
		e.logger.Warn("visited set size unavailable", zap.Error(err))
	} else {
		stats.Visited = size
	}
	e.logger.Info("crawl finished",
		zap.Int64("pages_crawled", stats.PagesCrawled),
		zap.Int64("visited", stats.Visited),
		zap.Duration("elapsed", stats.Duration),
	)
	return stats, nil
}
