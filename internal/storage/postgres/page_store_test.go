package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

func TestUpsertPageReturnsStoredIdentity(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock, "pages")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	earlier := now.Add(-time.Hour)
	rec := store.PageRecord{
		ID:        "new-id",
		URL:       "http://example.test/",
		Title:     "Home",
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery(`INSERT INTO pages`).
		WithArgs(rec.ID, rec.URL, rec.Title, []string{}, rec.CreatedAt, rec.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("existing-id", earlier, now))

	got, err := s.UpsertPage(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "existing-id", got.ID)
	require.Equal(t, earlier, got.CreatedAt)
	require.Equal(t, []string{}, got.Links)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentPagesScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock, "")
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(`(?s)SELECT id, url, title, links, created_at, updated_at\s+FROM pages\s+ORDER BY updated_at DESC`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "title", "links", "created_at", "updated_at"}).
			AddRow("b", "http://example.test/b", "B", []string{"http://example.test/"}, ts, ts.Add(time.Second)).
			AddRow("a", "http://example.test/a", "A", []string{}, ts, ts))

	pages, err := s.RecentPages(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, "b", pages[0].ID)
	require.Equal(t, []string{"http://example.test/"}, pages[0].Links)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPageMapsNoRowsToNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock, "pages")
	require.NoError(t, err)

	mock.ExpectQuery(`(?s)SELECT .+FROM pages\s+WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = s.GetPage(context.Background(), "missing")
	require.True(t, errors.Is(err, store.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock, "crawl_pages")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crawl_pages").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPageStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPageStoreWithPool(nil, "pages")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewPageStoreWithPool(mock, "pages; DROP TABLE users")
	require.Error(t, err)

	_, err = NewPageStore(context.Background(), PageStoreConfig{})
	require.Error(t, err)
}
