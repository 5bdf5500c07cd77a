package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("page not found")

// PageRecord is one crawled page as stored by the ingest API.
type PageRecord struct {
	// ID is assigned on first insert and kept across updates of the same URL.
	ID    string   `json:"id"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Links []string `json:"links"`
	// CreatedAt is when the URL was first ingested.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the URL was last ingested; listings sort on it.
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRepository persists pages keyed by URL.
type PageRepository interface {
	// UpsertPage inserts rec, or refreshes the title, links and UpdatedAt of
	// an existing record with the same URL. It returns the stored record.
	UpsertPage(ctx context.Context, rec PageRecord) (PageRecord, error)
	// RecentPages returns up to limit records, most recently updated first.
	RecentPages(ctx context.Context, limit int) ([]PageRecord, error)
	// GetPage returns the record with id or ErrNotFound.
	GetPage(ctx context.Context, id string) (PageRecord, error)
}
