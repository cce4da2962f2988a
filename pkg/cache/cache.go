// Package cache memoizes recent retrieval results. Entries expire
// after a TTL and the cache is capacity-bounded, evicting the oldest
// insertion first. Access does not refresh recency: for a read-heavy,
// short-TTL workload the insertion time is the honest age of the
// cached result.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loopworkco/rewind/pkg/record"
)

const (
	defaultCapacity = 100
	defaultTTL      = 5 * time.Minute
)

// Config holds cache sizing knobs.
type Config struct {
	// Capacity is the maximum number of cached result sets.
	Capacity int

	// TTL is how long a cached result set stays valid.
	TTL time.Duration
}

type entry struct {
	records    []record.ScoredRecord
	insertedAt time.Time
}

// Cache is a bounded, TTL-based memoization of retrieval results,
// keyed by normalized query text plus sorted file hints. Safe for
// concurrent use.
type Cache struct {
	mu sync.Mutex

	config  Config
	entries map[string]entry

	now func() time.Time
}

// New creates an empty cache, applying defaults for zero fields.
func New(config Config) *Cache {
	if config.Capacity < 1 {
		config.Capacity = defaultCapacity
	}
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}

	return &Cache{
		config:  config,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Key builds the deterministic cache key for a retrieval: the query is
// lowercased and whitespace-normalized, and file hints are sorted so
// hint order never splits the cache.
func Key(query string, files []string) string {
	var b strings.Builder
	b.WriteString(strings.Join(strings.Fields(strings.ToLower(query)), " "))

	if len(files) > 0 {
		sorted := make([]string, len(files))
		copy(sorted, files)
		sort.Strings(sorted)

		b.WriteString("|")
		b.WriteString(strings.Join(sorted, "|"))
	}

	return b.String()
}

// Get returns the cached result set for key, or false when the key is
// absent or expired. Expired entries are evicted on access.
func (c *Cache) Get(key string) ([]record.ScoredRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.insertedAt) > c.config.TTL {
		delete(c.entries, key)
		return nil, false
	}

	// Return a copy so callers cannot mutate the cached slice.
	result := make([]record.ScoredRecord, len(e.records))
	copy(result, e.records)
	return result, true
}

// Put stores a result set under key, evicting the oldest insertion
// when the cache is full.
func (c *Cache) Put(key string, records []record.ScoredRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.Capacity {
		c.evictOldestLocked()
	}

	stored := make([]record.ScoredRecord, len(records))
	copy(stored, records)

	c.entries[key] = entry{records: stored, insertedAt: c.now()}
}

// Len returns the number of live entries, counting any not yet lazily
// expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time

	first := true
	for k, e := range c.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.insertedAt
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
	}
}
