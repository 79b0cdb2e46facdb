package cache

import (
	"sync"
	"time"

	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/metrics"
)

// DefaultTTL is how long a summary is served before it is re-resolved.
const DefaultTTL = 30 * time.Second

type entry struct {
	summary  domain.StatusSummary
	storedAt time.Time
}

// InMemoryCache maps client IDs to their last resolved summary.
// Entries older than the TTL read as absent but stay in memory until
// overwritten or cleared; nothing is evicted proactively.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[domain.ClientID]entry
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

type Option func(*InMemoryCache)

// WithClock replaces time.Now, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *InMemoryCache) {
		c.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *InMemoryCache) {
		c.metrics = m
	}
}

// New creates an empty cache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *InMemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &InMemoryCache{
		entries: make(map[domain.ClientID]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the summary for id if it was stored less than TTL ago.
func (c *InMemoryCache) Get(id domain.ClientID) (domain.StatusSummary, bool) {
	c.mu.RLock()
	cached, ok := c.entries[id]
	c.mu.RUnlock()

	if ok && c.now().Sub(cached.storedAt) < c.ttl {
		c.metrics.RecordCacheHit()
		return cached.summary, true
	}
	c.metrics.RecordCacheMiss()
	return domain.StatusSummary{}, false
}

// Peek returns whatever is stored for id, fresh or stale.
func (c *InMemoryCache) Peek(id domain.ClientID) (domain.StatusSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.entries[id]
	return cached.summary, ok
}

// Put stores summary for id, stamping it with the current time.
func (c *InMemoryCache) Put(id domain.ClientID, summary domain.StatusSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry{summary: summary, storedAt: c.now()}
}

// Clear drops every entry together with its timestamp.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.ClientID]entry)
}

// Snapshot copies the current contents, stale entries included.
func (c *InMemoryCache) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(domain.Snapshot, len(c.entries))
	for id, cached := range c.entries {
		out[id] = cached.summary
	}
	return out
}

// Len returns the number of stored entries, stale entries included.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured freshness window.
func (c *InMemoryCache) TTL() time.Duration {
	return c.ttl
}
