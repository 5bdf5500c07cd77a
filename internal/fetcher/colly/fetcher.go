// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/policy/ratelimit"
)

const (
	defaultTimeout = 10 * time.Second
	maxRedirects   = 10
)

// ErrOffsiteRedirect is returned when a redirect leaves the allowed domain.
var ErrOffsiteRedirect = errors.New("redirect outside allowed domain")

// Config controls collector behavior.
type Config struct {
	// AllowedDomain, when set, confines redirects to that host.
	AllowedDomain     string
	UserAgent         string
	Timeout           time.Duration
	FollowRedirects   bool
	MaxBodyBytes      int
	RequestsPerSecond float64
}

// Fetcher implements crawler.Fetcher and crawler.SessionOpener using the
// Colly collector. Sessions share the per-host rate limiter but each owns
// its own HTTP transport.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. It fails only on configuration the collector cannot honour.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("fetch timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.MaxBodyBytes < 0 {
		return nil, fmt.Errorf("max body bytes must be >= 0 (got %d)", cfg.MaxBodyBytes)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	f := &Fetcher{cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond})
	}
	f.baseCollector = f.newCollector(newHTTPTransport())
	return f, nil
}

// OpenSession returns a Fetcher backed by a dedicated collector and transport.
func (f *Fetcher) OpenSession() (crawler.Fetcher, error) {
	transport := newHTTPTransport()
	return &Session{parent: f, collector: f.newCollector(transport), transport: transport}, nil
}

// Fetch executes a single HTTP GET on the shared collector.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	return f.fetch(ctx, f.baseCollector, rawURL)
}

func (f *Fetcher) newCollector(transport http.RoundTripper) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	}
	if f.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(f.cfg.UserAgent))
	}
	if f.cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(f.cfg.MaxBodyBytes))
	}
	c := colly.NewCollector(opts...)
	c.WithTransport(transport)
	c.SetRequestTimeout(f.cfg.Timeout)
	c.SetRedirectHandler(f.checkRedirect)
	return c
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if !f.cfg.FollowRedirects {
		return http.ErrUseLastResponse
	}
	if f.cfg.AllowedDomain != "" && !crawler.InAllowedDomain(req.URL.String(), f.cfg.AllowedDomain) {
		return fmt.Errorf("%w: %s", ErrOffsiteRedirect, req.URL.Hostname())
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, base *colly.Collector, rawURL string) (crawler.FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return crawler.FetchResponse{}, err
		}
	}
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	collector := base.Clone()
	f.configureCollectorHooks(collector, time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return crawler.FetchResponse{}, err
	}
	if result.StatusCode == 0 {
		return crawler.FetchResponse{}, errors.New("colly returned no response")
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// Session is a worker-owned fetcher.
type Session struct {
	parent    *Fetcher
	collector *colly.Collector
	transport *http.Transport
}

// Fetch executes a single HTTP GET on the session's collector.
func (s *Session) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	return s.parent.fetch(ctx, s.collector, rawURL)
}

// Close releases the session's idle connections.
func (s *Session) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
