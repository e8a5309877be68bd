package market

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"realprice/server/internal/models"
)

// resultCache memoizes computed statistics per normalized query text.
// Entries are evicted lazily on read once they pass the TTL. Changing the
// TTL discards the whole cache rather than re-evaluating entries.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]resultEntry
	ttl     time.Duration
	now     func() time.Time
}

type resultEntry struct {
	stats    *models.PriceStatistics
	storedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]resultEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(area string) string {
	normalized := strings.ToLower(strings.TrimSpace(area))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(area string) (*models.PriceStatistics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(area)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.stats, true
}

func (c *resultCache) set(area string, stats *models.PriceStatistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(area)] = resultEntry{stats: stats, storedAt: c.now()}
}

func (c *resultCache) setTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
	c.entries = make(map[string]resultEntry)
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]resultEntry)
}
