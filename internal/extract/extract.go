// Package extract pulls titles and outbound links from HTML documents.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// Extractor implements crawler.Extractor with goquery.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses body and returns its trimmed <title> text and every anchor
// href resolved to an absolute http(s) URL, in document order. A <base href>
// in the document overrides baseURL. Unresolvable hrefs are skipped.
func (e *Extractor) Extract(body []byte, baseURL string) (crawler.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.PageContent{}, fmt.Errorf("parse html: %w", err)
	}

	base := baseURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, ok := crawler.ResolveURL(baseURL, href); ok {
			base = resolved
		}
	}

	content := crawler.PageContent{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link, ok := crawler.ResolveURL(base, href); ok {
			content.Links = append(content.Links, link)
		}
	})
	return content, nil
}
