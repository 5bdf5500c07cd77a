package crawler

import "context"

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// SessionOpener is implemented by fetchers that hand each worker its own
// connection state. A failed OpenSession retires that worker only.
type SessionOpener interface {
	OpenSession() (Fetcher, error)
}

// Extractor pulls the title and absolute links out of an HTML body.
type Extractor interface {
	Extract(body []byte, baseURL string) (PageContent, error)
}

// Reporter ships a crawled page to its sink. Errors are logged by the
// engine and never stop the crawl.
type Reporter interface {
	Report(ctx context.Context, page PageResult) error
}

// VisitedSet is the crawl-wide ledger of URLs that have been scheduled.
type VisitedSet interface {
	// Claim records rawURL and reports whether it was not already present.
	Claim(ctx context.Context, rawURL string) (bool, error)
	// ClaimBatch holds the set's lock across the whole batch. accept is
	// called once per URL before the novelty check; a URL is claimed only
	// when accept returns true and it is new. Newly claimed URLs are
	// returned in input order. On error the URLs claimed before the
	// failure are still returned.
	ClaimBatch(ctx context.Context, urls []string, accept func(string) bool) ([]string, error)
	// Size returns the number of claimed URLs.
	Size(ctx context.Context) (int64, error)
}
