// Package cache is the process-wide client cache: a size-bounded map with an independent TTL per entry.
//
// Expiry is checked on every read, so an entry is never returned past its TTL. Cleanup only reclaims memory for
// entries nobody reads any more. When the cache is full the oldest inserted entry is evicted (insertion order, not
// LRU). The cache is advisory: every miss can be satisfied by re-issuing the real request.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/meghashyamc/contextview/logger"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxSize         = 100
	DefaultCleanupInterval = 5 * time.Minute
	DefaultLoadTimeout     = 2 * time.Minute
)

// Observer receives cache events. metrics.Metrics implements it.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
	CacheEviction(key string)
}

type Entry struct {
	Data      any
	Timestamp time.Time
	TTL       time.Duration
}

func (e Entry) expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

type Stats struct {
	TotalItems   int `json:"total_items"`
	ValidItems   int `json:"valid_items"`
	ExpiredItems int `json:"expired_items"`
	MaxSize      int `json:"max_size"`
}

type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = oldest insertion
	maxSize  int
	now      func() time.Time
	observer Observer
	logger   logger.Logger

	flight      singleflight.Group
	loadTimeout time.Duration
}

type item struct {
	key   string
	entry Entry
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

// WithLoadTimeout bounds a shared GetOrLoad load, which no single caller's context can cancel.
func WithLoadTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		c.loadTimeout = timeout
	}
}

func New(logger logger.Logger, maxSize int, opts ...Option) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		now:     time.Now,
		logger:  logger,

		loadTimeout: DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set replaces any entry for key. A replaced key counts as a fresh insertion.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		evictedKey := oldest.Value.(*item).key
		c.removeElement(oldest)
		c.logger.Debug("evicted oldest cache entry", "key", evictedKey)
		if c.observer != nil {
			c.observer.CacheEviction(evictedKey)
		}
	}

	elem := c.order.PushBack(&item{
		key: key,
		entry: Entry{
			Data:      value,
			Timestamp: c.now(),
			TTL:       ttl,
		},
	})
	c.entries[key] = elem
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.miss(key)
		return nil, false
	}

	it := elem.Value.(*item)
	if it.entry.expired(c.now()) {
		c.removeElement(elem)
		c.miss(key)
		return nil, false
	}

	if c.observer != nil {
		c.observer.CacheHit(key)
	}
	return it.entry.Data, true
}

// Has reports whether Get would hit. It applies the same lazy expiry.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

// DeletePrefix drops every entry whose key starts with prefix and returns how many were removed.
func (c *Cache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, elem := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(elem)
			removed++
		}
	}
	return removed
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := Stats{TotalItems: c.order.Len(), MaxSize: c.maxSize}
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*item).entry.expired(now) {
			stats.ExpiredItems++
		} else {
			stats.ValidItems++
		}
	}
	return stats
}

// Cleanup evicts every expired entry and returns how many were removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*item).entry.expired(now) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Cleanup(); removed > 0 {
				c.logger.Debug("swept expired cache entries", "removed", removed)
			}
		}
	}
}

// Assumes c.mu is held.
func (c *Cache) removeElement(elem *list.Element) {
	delete(c.entries, elem.Value.(*item).key)
	c.order.Remove(elem)
}

// Assumes c.mu is held.
func (c *Cache) miss(key string) {
	if c.observer != nil {
		c.observer.CacheMiss(key)
	}
}
