package crawler

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/metrics"
)

// worker drains the frontier for one Run.
type worker struct {
	engine  *Engine
	run     *crawlRun
	fetcher Fetcher
	logger  *zap.Logger
}

func (e *Engine) runWorker(ctx context.Context, id int, run *crawlRun) {
	logger := e.logger.Named("worker").With(zap.Int("worker", id))
	fetcher, session, err := e.openFetcher()
	if err != nil {
		logger.Error("worker could not open a fetch session; exiting", zap.Error(err))
		return
	}
	if closer, ok := fetcher.(io.Closer); ok && session {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("close fetch session", zap.Error(err))
			}
		}()
	}

	w := &worker{engine: e, run: run, fetcher: fetcher, logger: logger}
	w.loop(ctx)
}

// openFetcher returns the fetcher a worker should use and whether it is a
// worker-owned session.
func (e *Engine) openFetcher() (Fetcher, bool, error) {
	opener, ok := e.fetcher.(SessionOpener)
	if !ok {
		return e.fetcher, false, nil
	}
	session, err := opener.OpenSession()
	if err != nil {
		return nil, false, fmt.Errorf("open session: %w", err)
	}
	return session, true, nil
}

func (w *worker) loop(ctx context.Context) {
	for {
		task, ok := w.run.frontier.Pop()
		if !ok {
			w.logger.Debug("frontier closed; worker exiting")
			return
		}
		metrics.IncActiveWorkers()
		slot := w.process(ctx, task)
		metrics.DecActiveWorkers()
		if w.finish(slot) {
			return
		}
	}
}

// finish performs the bookkeeping that follows every task, crawled or not.
// It reports true when this worker ended the crawl by spending the budget.
func (w *worker) finish(slot int64) bool {
	if w.run.frontier.Done() {
		w.logger.Info("no queued or in-flight work left; frontier stopped")
	}
	metrics.SetFrontierDepth(w.run.frontier.Len())
	if slot > 0 && slot >= int64(w.engine.cfg.MaxPages) {
		w.logger.Info("page budget reached; stopping crawl", zap.Int64("pages_crawled", slot))
		w.run.frontier.Stop()
		return true
	}
	return false
}

// process handles one task and returns the page-budget slot it consumed,
// or 0 when the task was abandoned.
func (w *worker) process(ctx context.Context, task Task) int64 {
	cfg := w.engine.cfg
	logger := w.logger.With(zap.String("url", task.URL), zap.Int("depth", task.Depth))

	if task.Depth > cfg.MaxDepth {
		logger.Debug("task exceeds max depth; skipping")
		metrics.ObserveCrawl(task.URL, metrics.PageSkippedDepth, 0)
		return 0
	}
	if !InAllowedDomain(task.URL, cfg.AllowedDomain) {
		logger.Warn("url outside allowed domain; skipping", zap.String("allowed_domain", cfg.AllowedDomain))
		metrics.ObserveCrawl(task.URL, metrics.PageSkippedDomain, 0)
		return 0
	}

	w.engine.pauser.Pause(ctx, cfg.PolitenessDelay)
	resp, err := w.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		metrics.ObserveCrawl(task.URL, metrics.PageFetchError, 0)
		return 0
	}
	metrics.ObserveFetchDuration(resp.Duration)
	if resp.URL != "" && !InAllowedDomain(resp.URL, cfg.AllowedDomain) {
		logger.Warn("fetch ended outside allowed domain; skipping", zap.String("final_url", resp.URL))
		metrics.ObserveCrawl(task.URL, metrics.PageSkippedDomain, 0)
		return 0
	}

	slot, ok := w.run.claimPage(int64(cfg.MaxPages))
	if !ok {
		logger.Debug("page budget already spent; dropping fetched page")
		metrics.ObserveCrawl(task.URL, metrics.PageOverBudget, len(resp.Body))
		return 0
	}

	base := task.URL
	if resp.URL != "" {
		base = resp.URL
	}
	content, err := w.engine.extractor.Extract(resp.Body, base)
	if err != nil {
		logger.Warn("parse failed; treating page as empty", zap.Error(err))
		content = PageContent{}
	}
	links := uniqueLinks(content.Links)
	w.report(ctx, logger, PageResult{URL: task.URL, Title: content.Title, Links: links})

	res, err := w.run.admission.admit(ctx, task.Depth, links)
	if err != nil {
		logger.Warn("link admission failed", zap.Error(err))
	}
	for _, link := range res.offDomain {
		logger.Debug("link outside allowed domain rejected", zap.String("link", link))
	}
	queued := 0
	for _, next := range res.tasks {
		if w.run.frontier.Push(next) {
			queued++
		}
	}

	metrics.ObserveCrawl(task.URL, metrics.PageCrawled, len(resp.Body))
	logger.Info("page crawled",
		zap.String("title", content.Title),
		zap.Int("links", len(links)),
		zap.Int("queued", queued),
		zap.Int64("pages_crawled", slot),
	)
	return slot
}

func (w *worker) report(ctx context.Context, logger *zap.Logger, page PageResult) {
	if err := w.engine.reporter.Report(ctx, page); err != nil {
		logger.Warn("report failed", zap.Error(err))
		metrics.ObserveReport(false)
		return
	}
	metrics.ObserveReport(true)
}
