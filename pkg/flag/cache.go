package flag

import (
	"sync"
	"time"
)

// snapshot is the cached evaluation view of a single flag: the definition
// plus its override decisions keyed by tenant ID.
type snapshot struct {
	flag      *Flag
	overrides map[string]bool
}

// listSnapshot is the cached set of flag keys used by bulk evaluation.
type listSnapshot struct {
	keys []string
}

// Cache is a read-through TTL cache for evaluation snapshots. It is an
// explicitly constructed component with an injected TTL and an explicit
// invalidation hook; the process owns it, there is no package-level
// singleton.
type Cache struct {
	mu      sync.Mutex
	items   map[string]cacheItem
	list    *listItem
	lru     []string
	maxSize int
	ttl     time.Duration
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

type cacheItem struct {
	snap      *snapshot
	expiresAt time.Time
}

type listItem struct {
	snap      *listSnapshot
	expiresAt time.Time
}

// DefaultCacheSize is the default maximum number of cached flags.
const DefaultCacheSize = 1000

// NewCache creates an evaluation cache with the given TTL. A short TTL
// (seconds) bounds staleness after admin mutations while keeping the store
// off the hot path.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithSize(ttl, DefaultCacheSize)
}

// NewCacheWithSize creates an evaluation cache with an explicit size limit.
func NewCacheWithSize(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	c := &Cache{
		items:   make(map[string]cacheItem),
		lru:     make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *Cache) get(key string) (*snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		c.removeLRU(key)
		return nil, false
	}
	c.updateLRU(key)
	return item.snap, true
}

func (c *Cache) set(key string, snap *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		if len(c.lru) > 0 {
			evictKey := c.lru[0]
			delete(c.items, evictKey)
			c.lru = c.lru[1:]
		}
	}
	c.items[key] = cacheItem{snap: snap, expiresAt: time.Now().Add(c.ttl)}
	c.updateLRU(key)
}

func (c *Cache) getList() (*listSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.list == nil || time.Now().After(c.list.expiresAt) {
		c.list = nil
		return nil, false
	}
	return c.list.snap, true
}

func (c *Cache) setList(snap *listSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = &listItem{snap: snap, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate drops the cached snapshot for a flag key. The flag-set snapshot
// is dropped as well since creations and archivals change it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.removeLRU(key)
	c.list = nil
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	c.lru = c.lru[:0]
	c.list = nil
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			c.removeLRU(key)
		}
	}
	if c.list != nil && now.After(c.list.expiresAt) {
		c.list = nil
	}
}

func (c *Cache) updateLRU(key string) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append(c.lru, key)
}

func (c *Cache) removeLRU(key string) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			return
		}
	}
}

// Close stops the cleanup goroutine and waits for it to finish.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}
