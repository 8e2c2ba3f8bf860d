package fetcher

import (
	"sync"
	"time"

	"systrader/model"
)

// historyCache keeps fetched series for a bounded TTL so repeated backtests
// over the same range do not hammer the upstream source.
type historyCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	bars    model.Series
	expires time.Time
}

func newHistoryCache(ttl time.Duration) *historyCache {
	if ttl <= 0 {
		return nil
	}
	return &historyCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *historyCache) get(key string) (model.Series, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.bars, true
}

func (c *historyCache) put(key string, bars model.Series) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{bars: bars, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len reports the number of cached series, expired entries included.
func (c *historyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheLen reports how many series the fetcher currently holds.
func (f *HistoryFetcher) CacheLen() int {
	if f.cache == nil {
		return 0
	}
	return f.cache.Len()
}
