// Package postgres provides a Postgres-backed page repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "pages"

// PageStoreConfig controls the Postgres connection pool used for page rows.
type PageStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PageStore writes and reads page rows in Postgres.
type PageStore struct {
	pool  pool
	table string
}

// NewPageStore creates a Postgres-backed PageStore using the provided config.
func NewPageStore(ctx context.Context, cfg PageStoreConfig) (*PageStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("ingest.database_url is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PageStore{pool: p, table: table}, nil
}

// NewPageStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPageStoreWithPool(p pool, table string) (*PageStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &PageStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the pool.
func (s *PageStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the page table and its listing index when missing.
func (s *PageStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id         TEXT PRIMARY KEY,
			url        TEXT NOT NULL UNIQUE,
			title      TEXT NOT NULL DEFAULT '',
			links      TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %[1]s_updated_at_idx ON %[1]s (updated_at DESC);`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure %s schema: %w", s.table, err)
	}
	return nil
}

// UpsertPage inserts rec or refreshes the row with the same URL.
func (s *PageStore) UpsertPage(ctx context.Context, rec store.PageRecord) (store.PageRecord, error) {
	links := rec.Links
	if links == nil {
		links = []string{}
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, url, title, links, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO UPDATE
		SET title = EXCLUDED.title, links = EXCLUDED.links, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`, s.table)

	out := rec
	out.Links = links
	err := s.pool.QueryRow(ctx, query, rec.ID, rec.URL, rec.Title, links, rec.CreatedAt, rec.UpdatedAt).
		Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return store.PageRecord{}, fmt.Errorf("upsert page: %w", err)
	}
	return out, nil
}

// RecentPages lists up to limit rows ordered by updated_at descending.
func (s *PageStore) RecentPages(ctx context.Context, limit int) ([]store.PageRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, url, title, links, created_at, updated_at
		FROM %s
		ORDER BY updated_at DESC
		LIMIT $1`, s.table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	pages := []store.PageRecord{}
	for rows.Next() {
		var rec store.PageRecord
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Title, &rec.Links, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

// GetPage fetches one row by ID.
func (s *PageStore) GetPage(ctx context.Context, id string) (store.PageRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, url, title, links, created_at, updated_at
		FROM %s
		WHERE id = $1`, s.table)
	var rec store.PageRecord
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&rec.ID, &rec.URL, &rec.Title, &rec.Links, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.PageRecord{}, store.ErrNotFound
		}
		return store.PageRecord{}, fmt.Errorf("get page: %w", err)
	}
	return rec, nil
}
