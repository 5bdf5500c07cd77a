package frontier

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePopsInFIFOOrder(t *testing.T) {
	t.Parallel()

	q := New[int]()
	for i := range 5 {
		require.True(t, q.Push(i))
	}
	require.Equal(t, 5, q.Len())

	for want := range 5 {
		got, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	require.True(t, q.IsEmpty())
	require.Equal(t, 5, q.Active())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	t.Parallel()

	q := New[string]()
	result := make(chan string, 1)
	go func() {
		item, ok := q.Pop()
		if ok {
			result <- item
		}
	}()

	select {
	case <-result:
		t.Fatal("pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, q.Push("http://example.test/"))
	select {
	case got := <-result:
		require.Equal(t, "http://example.test/", got)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake after push")
	}
}

func TestQueuePushAfterStopIsDropped(t *testing.T) {
	t.Parallel()

	q := New[int]()
	q.Stop()
	require.False(t, q.Push(1))
	require.True(t, q.IsEmpty())

	_, ok := q.Pop()
	require.False(t, ok)
}

func TestQueueStopDiscardsPendingItems(t *testing.T) {
	t.Parallel()

	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.Stop()

	require.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	require.False(t, ok, "no item may be delivered after stop")
}

func TestQueueStopWakesEveryBlockedPopper(t *testing.T) {
	t.Parallel()

	const poppers = 16
	q := New[int]()
	var (
		wg     sync.WaitGroup
		exited atomic.Int32
	)
	for range poppers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Pop(); !ok {
				exited.Add(1)
			}
		}()
	}

	// Give every goroutine time to park on the condition variable.
	time.Sleep(50 * time.Millisecond)
	q.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d of %d poppers woke after stop", exited.Load(), poppers)
	}
	require.EqualValues(t, poppers, exited.Load())
}

func TestQueueStopIsIdempotentUnderConcurrency(t *testing.T) {
	t.Parallel()

	q := New[int]()
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Stop()
		}()
	}
	wg.Wait()
	require.True(t, q.Stopped())
}

func TestQueueDoneStopsOnStarvation(t *testing.T) {
	t.Parallel()

	q := New[int]()
	q.Push(1)
	_, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, 1, q.Active())

	require.True(t, q.Done())
	require.True(t, q.Stopped())
	require.Equal(t, 0, q.Active())
	require.False(t, q.Done(), "a stopped queue reports no second starvation")
}

func TestQueueDoneKeepsRunningWhileWorkRemains(t *testing.T) {
	t.Parallel()

	q := New[int]()
	q.Push(1)
	q.Push(2)

	_, _ = q.Pop()
	_, _ = q.Pop()
	require.False(t, q.Done(), "a sibling is still in flight")
	require.False(t, q.Stopped())

	q.Push(3)
	require.False(t, q.Done(), "an item is still queued")
	require.False(t, q.Stopped())

	_, ok := q.Pop()
	require.True(t, ok)
	require.True(t, q.Done())
	require.True(t, q.Stopped())
}

func TestQueueDrainsFanOutWithoutFalseStop(t *testing.T) {
	t.Parallel()

	// Each item n < limit produces two children, so the whole tree is
	// processed only if no worker observes a premature starvation stop.
	const limit = 500
	q := New[int]()
	q.Push(1)

	var (
		wg        sync.WaitGroup
		processed atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n, ok := q.Pop()
				if !ok {
					return
				}
				processed.Add(1)
				for _, child := range []int{2 * n, 2*n + 1} {
					if child <= limit {
						q.Push(child)
					}
				}
				q.Done()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not terminate")
	}
	require.EqualValues(t, limit, processed.Load())
}
