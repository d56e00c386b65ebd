// Package statuscache memoizes the node's expensive repository stats query
// behind a TTL with explicit invalidation on mutating pin operations.
package statuscache

import (
	"sync"
	"time"

	"github.com/spknetwork/spk-agent/internal/metrics"
	"github.com/spknetwork/spk-agent/internal/node"
)

// DefaultTTL bounds how long a stats snapshot may be served without a
// refetch.
const DefaultTTL = 30 * time.Second

// FetchFunc computes a fresh stats snapshot. It is expected to be expensive
// (subprocess-backed).
type FetchFunc func() (node.RepoStats, error)

type entry struct {
	stats      node.RepoStats
	capturedAt time.Time
}

// Cache is a memo cell around a FetchFunc. Reads proceed concurrently;
// refresh and invalidation are mutually exclusive with each other and with
// reads, so readers observe either the old snapshot or the fully-replaced
// one, never a mix.
type Cache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	fetch FetchFunc
	memo  *entry

	now func() time.Time // overridable for tests
}

// New creates a Cache with the given TTL; ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration, fetch FetchFunc) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, fetch: fetch, now: time.Now}
}

// Get returns the cached snapshot when it is still within the TTL window,
// otherwise recomputes. A failed fetch leaves the cache unchanged and
// propagates the error.
func (c *Cache) Get() (node.RepoStats, error) {
	c.mu.RLock()
	if c.memo != nil && c.now().Sub(c.memo.capturedAt) < c.ttl {
		stats := c.memo.stats
		c.mu.RUnlock()
		metrics.IncStatsCacheRead(true)
		return stats, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another writer may have refreshed while we waited for the lock.
	if c.memo != nil && c.now().Sub(c.memo.capturedAt) < c.ttl {
		metrics.IncStatsCacheRead(true)
		return c.memo.stats, nil
	}
	metrics.IncStatsCacheRead(false)
	stats, err := c.fetch()
	if err != nil {
		return node.RepoStats{}, err
	}
	c.memo = &entry{stats: stats, capturedAt: c.now()}
	return stats, nil
}

// Invalidate clears the snapshot unconditionally. Staleness after a mutation
// is never acceptable, even within the TTL window.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.memo = nil
	c.mu.Unlock()
}
