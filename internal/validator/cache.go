package validator

import (
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// DefaultCacheTTL is how long a domain verdict is reused.
const DefaultCacheTTL = 5 * time.Minute

// CacheEntry is a domain verdict and when it was recorded.
type CacheEntry struct {
	Domain     string
	Verdict    harvest.Verdict
	Reason     string
	RecordedAt time.Time
}

// Cache maps domains to verdicts. Entries older than the TTL are treated as
// absent and dropped on the next read. Safe for concurrent use.
type Cache struct {
	ttl   time.Duration
	clock harvest.Clock

	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewCache builds a cache; a non-positive ttl selects DefaultCacheTTL.
func NewCache(ttl time.Duration, clock harvest.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]CacheEntry),
	}
}

// Get returns the fresh entry for domain, if any.
func (c *Cache) Get(domain string) (CacheEntry, bool) {
	key := strings.ToLower(domain)
	now := c.clock.Now()
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return CacheEntry{}, false
	}
	if now.Sub(entry.RecordedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check: another writer may have refreshed the entry.
		if cur, still := c.entries[key]; still && now.Sub(cur.RecordedAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return CacheEntry{}, false
	}
	return entry, true
}

// Put records verdict (and the reason behind an invalid one) for domain at
// the current time.
func (c *Cache) Put(domain string, verdict harvest.Verdict, reason string) {
	key := strings.ToLower(domain)
	c.mu.Lock()
	c.entries[key] = CacheEntry{Domain: key, Verdict: verdict, Reason: reason, RecordedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
