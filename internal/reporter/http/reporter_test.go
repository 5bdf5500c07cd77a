package httpreporter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

type captured struct {
	mu          sync.Mutex
	contentType string
	userAgent   string
	body        []byte
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.contentType = r.Header.Get("Content-Type")
		c.userAgent = r.UserAgent()
		c.body = body
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestReporterPostsStructuredJSON(t *testing.T) {
	t.Parallel()

	srv, got := newCaptureServer(t, http.StatusCreated)
	r, err := New(Config{Endpoint: srv.URL, UserAgent: "test-agent"})
	require.NoError(t, err)

	page := crawler.PageResult{
		URL:   "http://example.test/",
		Title: `Quotes "and" \backslashes\ </script>`,
		Links: []string{"http://example.test/a"},
	}
	require.NoError(t, r.Report(context.Background(), page))

	got.mu.Lock()
	defer got.mu.Unlock()
	require.Equal(t, "application/json", got.contentType)
	require.Equal(t, "test-agent", got.userAgent)

	var decoded crawler.PageResult
	require.NoError(t, json.Unmarshal(got.body, &decoded))
	require.Equal(t, page, decoded)
}

func TestReporterSendsEmptyLinksAsArray(t *testing.T) {
	t.Parallel()

	srv, got := newCaptureServer(t, http.StatusOK)
	r, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	require.NoError(t, r.Report(context.Background(), crawler.PageResult{URL: "http://example.test/leaf"}))

	got.mu.Lock()
	defer got.mu.Unlock()
	require.JSONEq(t, `{"url":"http://example.test/leaf","title":"","links":[]}`, string(got.body))
}

func TestReporterReturnsErrorOnBadStatus(t *testing.T) {
	t.Parallel()

	srv, _ := newCaptureServer(t, http.StatusInternalServerError)
	r, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	err = r.Report(context.Background(), crawler.PageResult{URL: "http://example.test/"})
	require.ErrorContains(t, err, "unexpected status 500")
}

func TestReporterReturnsErrorWhenUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	r, err := New(Config{Endpoint: endpoint, Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	require.Error(t, r.Report(context.Background(), crawler.PageResult{URL: "http://example.test/"}))
}

func TestReporterIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	srv, _ := newCaptureServer(t, http.StatusOK)
	r, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Report(ctx, crawler.PageResult{URL: "http://example.test/"}))
}

func TestReporterAppliesTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	r, err := New(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	start := time.Now()
	require.Error(t, r.Report(context.Background(), crawler.PageResult{URL: "http://example.test/"}))
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	r, err := New(Config{})
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoint, r.endpoint)
	require.Equal(t, defaultTimeout, r.timeout)

	_, err = NewWithClient(Config{}, nil)
	require.Error(t, err)
}
