// Package memory provides an in-process visited set.
package memory

import (
	"context"
	"sync"
)

// Set is a mutex-guarded URL set that only grows.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Claim inserts rawURL and reports whether it was new.
func (s *Set) Claim(_ context.Context, rawURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rawURL), nil
}

// ClaimBatch claims every URL that passes accept and is new, holding the
// lock for the whole batch.
func (s *Set) ClaimBatch(_ context.Context, urls []string, accept func(string) bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []string
	for _, u := range urls {
		if accept != nil && !accept(u) {
			continue
		}
		if s.insertLocked(u) {
			claimed = append(claimed, u)
		}
	}
	return claimed, nil
}

// Size returns the number of claimed URLs.
func (s *Set) Size(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.seen)), nil
}

func (s *Set) insertLocked(u string) bool {
	if u == "" {
		return false
	}
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	return true
}
