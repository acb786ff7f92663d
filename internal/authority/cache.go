package authority

import (
	"sync"
	"time"

	"github.com/sells-group/audit-engine/internal/model"
)

// recordCache is the TTL cache over (entity, domain). The only shared
// mutable state in the engine; guarded by a single RWMutex, with request
// collapsing handled by the aggregator's singleflight group.
type recordCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	record    *model.EntityAuthorityRecord
	expiresAt time.Time
}

func newRecordCache(ttl time.Duration) *recordCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &recordCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(entity, domain string) string {
	return entity + "\x1f" + domain
}

func (c *recordCache) get(entity, domain string) (*model.EntityAuthorityRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey(entity, domain)]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.record, true
}

func (c *recordCache) set(record *model.EntityAuthorityRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(record.Entity, record.Domain)] = cacheEntry{
		record:    record,
		expiresAt: c.now().Add(c.ttl),
	}
}

// purgeExpired drops stale entries and reports how many were removed.
func (c *recordCache) purgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	cutoff := c.now()
	for k, e := range c.entries {
		if cutoff.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
