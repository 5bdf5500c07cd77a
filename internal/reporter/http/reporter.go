// Package httpreporter posts crawled pages as JSON to an ingestion endpoint.
package httpreporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

const (
	// DefaultEndpoint is where the bundled ingest API listens.
	DefaultEndpoint = "http://localhost:5000/api/pages"
	defaultTimeout  = 5 * time.Second
)

// Config controls delivery.
type Config struct {
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
}

// Reporter implements crawler.Reporter over HTTP POST.
type Reporter struct {
	client    *http.Client
	endpoint  string
	timeout   time.Duration
	userAgent string
}

// New builds a Reporter with its own HTTP client.
func New(cfg Config) (*Reporter, error) {
	return NewWithClient(cfg, &http.Client{})
}

// NewWithClient builds a Reporter around client (primarily for testing).
func NewWithClient(cfg Config, client *http.Client) (*Reporter, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reporter{
		client:    client,
		endpoint:  endpoint,
		timeout:   timeout,
		userAgent: cfg.UserAgent,
	}, nil
}

// Report sends page as application/json. Delivery is bounded by the
// reporter timeout and is not cut short when ctx is cancelled.
func (r *Reporter) Report(ctx context.Context, page crawler.PageResult) error {
	if page.Links == nil {
		page.Links = []string{}
	}
	payload, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post page: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post page: unexpected status %d", resp.StatusCode)
	}
	return nil
}
