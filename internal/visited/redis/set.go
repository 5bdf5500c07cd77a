// Package redis provides a visited set stored in a Redis set, scoped to one
// crawl run by a random key suffix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "sitecrawler:visited:"

// Config controls the Redis connection and key lifetime.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type client interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Set claims URLs with SADD. A process-local mutex serialises batches so a
// page's admission decisions stay atomic relative to other pages.
type Set struct {
	mu       sync.Mutex
	client   client
	key      string
	ttl      time.Duration
	expiring bool
}

// New connects to Redis and allocates a fresh run key.
func New(cfg Config) (*Set, error) {
	if cfg.Addr == "" {
		return nil, errors.New("visited.redis_addr is required")
	}
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(c, cfg.KeyPrefix, cfg.TTL), nil
}

// NewWithClient builds a Set over an existing client (primarily for testing).
func NewWithClient(c client, prefix string, ttl time.Duration) *Set {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Set{
		client: c,
		key:    prefix + uuid.NewString(),
		ttl:    ttl,
	}
}

// Key returns the Redis key holding this run's URLs.
func (s *Set) Key() string {
	return s.key
}

// Claim adds rawURL and reports whether Redis did not already hold it.
func (s *Set) Claim(ctx context.Context, rawURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimLocked(ctx, rawURL)
}

// ClaimBatch claims each URL that passes accept and is new.
func (s *Set) ClaimBatch(ctx context.Context, urls []string, accept func(string) bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []string
	for _, u := range urls {
		if accept != nil && !accept(u) {
			continue
		}
		ok, err := s.claimLocked(ctx, u)
		if err != nil {
			return claimed, err
		}
		if ok {
			claimed = append(claimed, u)
		}
	}
	return claimed, nil
}

// Size returns SCARD of the run key.
func (s *Set) Size(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis scard: %w", err)
	}
	return n, nil
}

// Close drops the run key and closes the client.
func (s *Set) Close(ctx context.Context) error {
	delErr := s.client.Del(ctx, s.key).Err()
	closeErr := s.client.Close()
	if delErr != nil {
		return fmt.Errorf("redis del: %w", delErr)
	}
	if closeErr != nil {
		return fmt.Errorf("redis close: %w", closeErr)
	}
	return nil
}

func (s *Set) claimLocked(ctx context.Context, u string) (bool, error) {
	if u == "" {
		return false, nil
	}
	added, err := s.client.SAdd(ctx, s.key, u).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}
	if s.ttl > 0 && !s.expiring {
		if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return added == 1, fmt.Errorf("redis expire: %w", err)
		}
		s.expiring = true
	}
	return added == 1, nil
}
