package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSetClaimUsesRunKey(t *testing.T) {
	t.Parallel()

	fake := newFakeClient()
	s := NewWithClient(fake, "test:", time.Hour)
	require.Contains(t, s.Key(), "test:")

	ctx := context.Background()
	ok, err := s.Claim(ctx, "http://example.test/")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Claim(ctx, "http://example.test/")
	require.NoError(t, err)
	require.False(t, ok)

	size, err := s.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, size)
	require.Equal(t, []time.Duration{time.Hour}, fake.expires[s.Key()])
}

func TestSetClaimBatchFiltersAndDedupes(t *testing.T) {
	t.Parallel()

	s := NewWithClient(newFakeClient(), "", 0)
	require.Contains(t, s.Key(), defaultKeyPrefix)

	ctx := context.Background()
	_, err := s.Claim(ctx, "http://example.test/a")
	require.NoError(t, err)

	claimed, err := s.ClaimBatch(ctx,
		[]string{"http://example.test/a", "http://example.test/b", "http://example.test/skip"},
		func(u string) bool { return u != "http://example.test/skip" },
	)
	require.NoError(t, err)
	require.Equal(t, []string{"http://example.test/b"}, claimed)
}

func TestSetClaimPropagatesRedisErrors(t *testing.T) {
	t.Parallel()

	fake := newFakeClient()
	fake.saddErr = errors.New("connection refused")
	s := NewWithClient(fake, "", 0)

	_, err := s.ClaimBatch(context.Background(), []string{"http://example.test/a"}, nil)
	require.ErrorContains(t, err, "redis sadd")
}

func TestSetCloseDeletesKey(t *testing.T) {
	t.Parallel()

	fake := newFakeClient()
	s := NewWithClient(fake, "", 0)
	_, _ = s.Claim(context.Background(), "http://example.test/a")

	require.NoError(t, s.Close(context.Background()))
	require.True(t, fake.closed)
	require.NotContains(t, fake.sets, s.Key())
}

func TestNewRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

type fakeClient struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	expires map[string][]time.Duration
	saddErr error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		sets:    make(map[string]map[string]struct{}),
		expires: make(map[string][]time.Duration),
	}
}

func (f *fakeClient) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saddErr != nil {
		return redis.NewIntResult(0, f.saddErr)
	}
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	var added int64
	for _, m := range members {
		s, _ := m.(string)
		if _, exists := set[s]; !exists {
			set[s] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeClient) SCard(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.sets[key])), nil)
}

func (f *fakeClient) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = append(f.expires[key], expiration)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.sets[k]; ok {
			delete(f.sets, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
