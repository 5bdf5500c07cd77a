package crawler

import "time"

// Task is one unit of frontier work: a URL and its link distance from the seed.
type Task struct {
	URL   string
	Depth int
}

// FetchResponse is the owned result of a single page fetch.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// PageContent is what the extractor pulls out of a fetched document.
type PageContent struct {
	Title string
	Links []string
}

// PageResult is the record handed to a Reporter for every crawled page.
type PageResult struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Links []string `json:"links"`
}

// Stats summarises a finished crawl.
type Stats struct {
	PagesCrawled int64
	Visited      int64
	Duration     time.Duration
}
