// Package memory provides an in-process page repository for local runs and tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

// PageStore keeps pages in maps guarded by an RWMutex.
type PageStore struct {
	mu    sync.RWMutex
	byURL map[string]*store.PageRecord
	byID  map[string]*store.PageRecord
}

// NewPageStore returns an empty PageStore.
func NewPageStore() *PageStore {
	return &PageStore{
		byURL: make(map[string]*store.PageRecord),
		byID:  make(map[string]*store.PageRecord),
	}
}

// UpsertPage stores rec keyed by URL, keeping the original ID and CreatedAt.
func (s *PageStore) UpsertPage(_ context.Context, rec store.PageRecord) (store.PageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byURL[rec.URL]; ok {
		existing.Title = rec.Title
		existing.Links = slices.Clone(rec.Links)
		existing.UpdatedAt = rec.UpdatedAt
		return clone(existing), nil
	}
	stored := clone(&rec)
	s.byURL[rec.URL] = &stored
	s.byID[rec.ID] = &stored
	return clone(&stored), nil
}

// RecentPages returns up to limit pages, newest update first.
func (s *PageStore) RecentPages(_ context.Context, limit int) ([]store.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.PageRecord, 0, len(s.byURL))
	for _, rec := range s.byURL {
		out = append(out, clone(rec))
	}
	slices.SortFunc(out, func(a, b store.PageRecord) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetPage looks a page up by ID.
func (s *PageStore) GetPage(_ context.Context, id string) (store.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return store.PageRecord{}, store.ErrNotFound
	}
	return clone(rec), nil
}

func clone(rec *store.PageRecord) store.PageRecord {
	out := *rec
	out.Links = slices.Clone(rec.Links)
	return out
}
