package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheServesFreshEntry(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(30 * time.Second)
	c.now = func() time.Time { return now }

	calls := 0
	fn := func(ctx context.Context) (json.RawMessage, error) {
		calls++
		return json.RawMessage(`{"v":1}`), nil
	}

	ctx := context.Background()
	if got := c.Get(ctx, "k", fn); string(got) != `{"v":1}` {
		t.Fatalf("unexpected payload %s", got)
	}

	now = now.Add(10 * time.Second)
	c.Get(ctx, "k", fn)
	if calls != 1 {
		t.Fatalf("expected 1 upstream call within TTL, got %d", calls)
	}
}

func TestCacheRefetchesAfterTTL(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(30 * time.Second)
	c.now = func() time.Time { return now }

	calls := 0
	fn := func(ctx context.Context) (json.RawMessage, error) {
		calls++
		return json.RawMessage(`1`), nil
	}

	ctx := context.Background()
	c.Get(ctx, "k", fn)
	now = now.Add(31 * time.Second)
	c.Get(ctx, "k", fn)
	if calls != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", calls)
	}
}

func TestCacheSharesOneInFlightFetch(t *testing.T) {
	c := NewCache(30 * time.Second)

	var calls int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return json.RawMessage(`{"v":1}`), nil
	}

	const workers = 8
	results := make([]json.RawMessage, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Get(context.Background(), "k", fn)
		}(i)
	}

	// Give every worker a chance to arrive while the fetch is blocked, then
	// let the single flight finish. Late arrivals hit the fresh entry.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call for concurrent gets, got %d", got)
	}
	for i, r := range results {
		if string(r) != `{"v":1}` {
			t.Fatalf("worker %d got %s, want the shared payload", i, r)
		}
	}
}

func TestCacheFallsBackToStaleOnError(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(30 * time.Second)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.Get(ctx, "k", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`"old"`), nil
	})

	now = now.Add(time.Hour)
	got := c.Get(ctx, "k", func(ctx context.Context) (json.RawMessage, error) {
		return nil, errors.New("upstream down")
	})
	if string(got) != `"old"` {
		t.Fatalf("expected stale value, got %s", got)
	}
}

func TestCacheNilWhenNeverCached(t *testing.T) {
	c := NewCache(30 * time.Second)
	got := c.Get(context.Background(), "missing", func(ctx context.Context) (json.RawMessage, error) {
		return nil, errors.New("upstream down")
	})
	if got != nil {
		t.Fatalf("expected nil for uncached failure, got %s", got)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}
