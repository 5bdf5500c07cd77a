// Package memory contains an in-memory reporter for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// Reporter records every page it is handed.
type Reporter struct {
	mu     sync.RWMutex
	pages  []crawler.PageResult
	logger *zap.Logger
}

// New returns a memory Reporter. A nil logger disables per-page logging.
func New(logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger}
}

// Report records page.
func (r *Reporter) Report(_ context.Context, page crawler.PageResult) error {
	r.mu.Lock()
	r.pages = append(r.pages, page)
	r.mu.Unlock()
	r.logger.Debug("page recorded",
		zap.String("url", page.URL),
		zap.String("title", page.Title),
		zap.Int("links", len(page.Links)),
	)
	return nil
}

// Pages returns a copy of the recorded pages in arrival order.
func (r *Reporter) Pages() []crawler.PageResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crawler.PageResult, len(r.pages))
	copy(out, r.pages)
	return out
}

// Len returns the number of recorded pages.
func (r *Reporter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}
