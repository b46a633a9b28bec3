package materials

import (
	"sync"
	"time"

	"github.com/stitchline-erp/stitchline-erp/internal/observability"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
)

// DefaultCacheTTL matches how long a unit detail may be served without a
// fresh catalog read.
const DefaultCacheTTL = 5 * time.Minute

// DetailCache is the process-wide unit id -> projection cache that lets
// batch resolution skip the catalog partition for already-seen units.
// Invalidation is coarse: once the TTL since the last reset elapses, the next
// access clears the whole map and restarts the clock. There is no per-entry
// eviction. Construct one per process and inject it.
type DetailCache struct {
	ttl     time.Duration
	metrics *observability.Metrics
	now     func() time.Time

	mu        sync.RWMutex
	items     map[int64]units.Detail
	lastReset time.Time
}

// NewDetailCache builds a cache with the given TTL; ttl <= 0 falls back to
// DefaultCacheTTL. metrics may be nil.
func NewDetailCache(ttl time.Duration, metrics *observability.Metrics) *DetailCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &DetailCache{
		ttl:     ttl,
		metrics: metrics,
		now:     time.Now,
		items:   make(map[int64]units.Detail),
	}
	c.lastReset = c.now()
	return c
}

// Get returns the cached projection for one unit id.
func (c *DetailCache) Get(id int64) (units.Detail, bool) {
	c.expire()
	c.mu.RLock()
	defer c.mu.RUnlock()
	detail, ok := c.items[id]
	return detail, ok
}

// Split partitions ids into cache hits and the distinct misses that need one
// batched catalog lookup.
func (c *DetailCache) Split(ids []int64) (map[int64]units.Detail, []int64) {
	c.expire()
	hits := make(map[int64]units.Detail)
	var misses []int64
	seen := make(map[int64]struct{}, len(ids))

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if detail, ok := c.items[id]; ok {
			hits[id] = detail
		} else {
			misses = append(misses, id)
		}
	}
	return hits, misses
}

// Put stores freshly resolved projections.
func (c *DetailCache) Put(details []units.Detail) {
	if len(details) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range details {
		c.items[d.ID] = d
	}
}

// Reset clears the cache immediately and restarts the TTL clock.
func (c *DetailCache) Reset() {
	c.mu.Lock()
	c.items = make(map[int64]units.Detail)
	c.lastReset = c.now()
	c.mu.Unlock()
	c.metrics.ObserveCacheReset()
}

// expire applies the coarse TTL policy on every access.
func (c *DetailCache) expire() {
	c.mu.RLock()
	expired := c.now().Sub(c.lastReset) > c.ttl
	c.mu.RUnlock()
	if !expired {
		return
	}
	c.mu.Lock()
	// Re-check after acquiring the write lock; another goroutine may have
	// reset already.
	if c.now().Sub(c.lastReset) > c.ttl {
		c.items = make(map[int64]units.Detail)
		c.lastReset = c.now()
		c.metrics.ObserveCacheReset()
	}
	c.mu.Unlock()
}
