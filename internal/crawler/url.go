package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// missingHref is what some HTML tooling emits for an anchor without a value.
const missingHref = "(null)"

// ResolveURL turns href, found on the page at base, into an absolute http(s)
// URL. It reports false for empty, placeholder, malformed or non-web links.
func ResolveURL(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || href == missingHref {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := baseURL.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Hostname() == "" {
		return "", false
	}
	normalize(abs)
	return abs.String(), true
}

// NormalizeURL lowercases the scheme and host, drops default ports, gives
// an empty path the root path and strips the fragment.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	normalize(u)
	return u.String(), nil
}

func normalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
}

// HostOf returns the lowercased hostname of rawURL, or "" when it has none.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// InAllowedDomain reports whether rawURL's host equals allowed, ignoring case.
func InAllowedDomain(rawURL, allowed string) bool {
	host := HostOf(rawURL)
	return host != "" && strings.EqualFold(host, allowed)
}
