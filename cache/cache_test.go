package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meghashyamc/contextview/logger"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type countingObserver struct {
	hits, misses, evictions atomic.Int64
}

func (o *countingObserver) CacheHit(string)      { o.hits.Add(1) }
func (o *countingObserver) CacheMiss(string)     { o.misses.Add(1) }
func (o *countingObserver) CacheEviction(string) { o.evictions.Add(1) }

func newTestLogger() logger.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestCache(maxSize int) (*Cache, *fakeClock, *countingObserver) {
	clock := newFakeClock()
	observer := &countingObserver{}
	return New(newTestLogger(), maxSize, WithClock(clock.Now), WithObserver(observer)), clock, observer
}

func TestTTLExpiry(t *testing.T) {
	ttls := []time.Duration{time.Millisecond, time.Second, SearchTTL, GraphTTL}

	for _, ttl := range ttls {
		t.Run(ttl.String(), func(t *testing.T) {
			assert := require.New(t)
			c, clock, _ := newTestCache(DefaultMaxSize)

			c.Set("k", "v", ttl)
			value, ok := c.Get("k")
			assert.True(ok)
			assert.Equal("v", value)

			clock.Advance(ttl)
			assert.True(c.Has("k"), "an entry exactly at its ttl is still fresh")

			clock.Advance(time.Nanosecond)
			_, ok = c.Get("k")
			assert.False(ok)
			assert.False(c.Has("k"))
			assert.Equal(0, c.Len(), "stale entry is removed on read")
		})
	}
}

func TestEvictsOldestInsertion(t *testing.T) {
	assert := require.New(t)
	c, _, observer := newTestCache(DefaultMaxSize)

	for i := 0; i < DefaultMaxSize; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i, time.Minute)
	}
	// Reading does not refresh the position: eviction is by insertion, not use.
	_, ok := c.Get("key-0")
	assert.True(ok)

	c.Set("key-100", 100, time.Minute)

	assert.Equal(DefaultMaxSize, c.Len())
	assert.False(c.Has("key-0"))
	assert.True(c.Has("key-1"))
	value, ok := c.Get("key-100")
	assert.True(ok)
	assert.Equal(100, value)
	assert.Equal(int64(1), observer.evictions.Load())
}

func TestSetReplacesEntry(t *testing.T) {
	assert := require.New(t)
	c, clock, _ := newTestCache(2)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	clock.Advance(50 * time.Second)

	c.Set("a", 10, time.Minute)
	assert.Equal(2, c.Len(), "replacing a key at capacity must not evict another entry")

	clock.Advance(20 * time.Second)
	value, ok := c.Get("a")
	assert.True(ok, "replacement restarts the ttl")
	assert.Equal(10, value)
	assert.False(c.Has("b"))

	c.Set("c", 3, time.Minute)
	c.Set("d", 4, time.Minute)
	assert.False(c.Has("a"), "the replaced key was re-inserted and is now the oldest")
}

func TestCleanupAndStats(t *testing.T) {
	assert := require.New(t)
	c, clock, _ := newTestCache(10)

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	clock.Advance(2 * time.Second)

	assert.Equal(Stats{TotalItems: 2, ValidItems: 1, ExpiredItems: 1, MaxSize: 10}, c.Stats())
	assert.Equal(1, c.Cleanup())
	assert.Equal(Stats{TotalItems: 1, ValidItems: 1, MaxSize: 10}, c.Stats())
}

func TestDeletePrefixAndClear(t *testing.T) {
	assert := require.New(t)
	c, _, _ := newTestCache(10)

	c.Set(SearchKey("invoice", 20), []string{"a"}, SearchTTL)
	c.Set(SearchKey("samsung", 20), []string{"b"}, SearchTTL)
	c.Set(MapsKey(), []int{1}, MapsTTL)

	assert.Equal(2, c.DeletePrefix(SearchPrefix))
	assert.True(c.Has(MapsKey()))
	assert.True(c.Delete(MapsKey()))
	assert.False(c.Delete(MapsKey()))

	c.Set("x", 1, time.Minute)
	c.Clear()
	assert.Equal(0, c.Len())
}

func TestRunStopsWithContext(t *testing.T) {
	c, _, _ := newTestCache(10)
	c.Set("gone", 1, time.Nanosecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

func TestGetOrLoad(t *testing.T) {
	assert := require.New(t)
	c, clock, _ := newTestCache(10)
	ctx := context.Background()

	var calls atomic.Int64
	load := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"result"}, nil
	}

	value, err := GetOrLoad(ctx, c, "k", time.Minute, load)
	assert.NoError(err)
	assert.Equal([]string{"result"}, value)

	value, err = GetOrLoad(ctx, c, "k", time.Minute, load)
	assert.NoError(err)
	assert.Equal([]string{"result"}, value)
	assert.Equal(int64(1), calls.Load())

	clock.Advance(2 * time.Minute)
	_, err = GetOrLoad(ctx, c, "k", time.Minute, load)
	assert.NoError(err)
	assert.Equal(int64(2), calls.Load())

	failing := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("backend down")
	}
	_, err = GetOrLoad(ctx, c, "fails", time.Minute, failing)
	assert.Error(err)
	assert.False(c.Has("fails"), "errors are never cached")
}

func TestGetOrLoadSharesConcurrentLoads(t *testing.T) {
	assert := require.New(t)
	c, _, _ := newTestCache(10)

	var calls atomic.Int64
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := GetOrLoad(context.Background(), c, "shared", time.Minute, load)
			assert.NoError(err)
			results[i] = value
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(int64(1), calls.Load())
	for _, result := range results {
		assert.Equal(42, result)
	}
}

func TestGetOrLoadOutlivesFirstCaller(t *testing.T) {
	assert := require.New(t)
	c, _, _ := newTestCache(10)

	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		close(started)
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := GetOrLoad(firstCtx, c, "shared", time.Minute, load)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		value, err := GetOrLoad(context.Background(), c, "shared", time.Minute, load)
		assert.NoError(err)
		second <- value
	}()

	cancelFirst()
	assert.True(errors.Is(<-firstErr, context.Canceled))

	close(release)
	select {
	case value := <-second:
		assert.Equal(42, value)
	case <-time.After(time.Second):
		t.Fatal("waiting caller never got the shared result")
	}
	assert.True(c.Has("shared"))
}

func TestGetOrLoadTimeout(t *testing.T) {
	assert := require.New(t)
	c := New(logger.New(), 10, WithLoadTimeout(10*time.Millisecond))

	_, err := GetOrLoad(context.Background(), c, "slow", time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.True(errors.Is(err, context.DeadlineExceeded))
}

func TestGetTypedDropsMismatchedValue(t *testing.T) {
	assert := require.New(t)
	c, _, _ := newTestCache(10)

	c.Set("k", "a string", time.Minute)
	_, ok := GetTyped[int](c, "k")
	assert.False(ok)
	assert.False(c.Has("k"))
}

func TestKeys(t *testing.T) {
	assert := require.New(t)

	assert.Equal("search:invoice:20", SearchKey(" invoice ", 20))
	assert.Equal(SearchKey("invoice", 20), SearchKey("invoice", 20))
	assert.Equal("graph:all", GraphKey(""))
	assert.Equal("graph:Samsung", GraphKey("Samsung"))
	assert.Equal("map:7", MapKey(7))
	assert.Equal("maps:list", MapsKey())
	assert.Equal("health:status", HealthKey())
	assert.Equal("file:abc", FileKey("abc"))
}
