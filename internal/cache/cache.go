// ABOUTME: Thread-safe response cache keyed by normalized query strings.
// ABOUTME: Supports exact and similarity-based lookup with hit counting.

package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultThreshold is the minimum similarity ratio for a fuzzy hit.
const DefaultThreshold = 0.80

// defaultBypassKeywords force generation even on a cache hit when the query
// explicitly asks for fresh content.
var defaultBypassKeywords = []string{"fresh", "latest", "newest", "regenerate", "up to date"}

// Entry is one cached response.
type Entry struct {
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Source    string    `json:"source"`
	HitCount  int       `json:"hit_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cache maps normalized queries to prior responses. Lookups try an exact
// match first and fall back to the highest-scoring fuzzy match at or above
// the threshold.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	threshold float64
	bypass    []string
}

// Option configures a Cache.
type Option func(*Cache)

// WithThreshold overrides the fuzzy-match similarity threshold.
func WithThreshold(t float64) Option {
	return func(c *Cache) { c.threshold = t }
}

// WithBypassKeywords overrides the cache-bypass keyword set.
func WithBypassKeywords(words []string) Option {
	return func(c *Cache) { c.bypass = words }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*Entry),
		threshold: DefaultThreshold,
		bypass:    defaultBypassKeywords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize case-folds and trims a query for use as a cache key.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Lookup returns the cached response for a query, trying an exact match and
// then the best fuzzy match. A hit increments the entry's hit count. Queries
// containing a bypass keyword never hit.
func (c *Cache) Lookup(query string) (*Entry, bool) {
	key := Normalize(query)
	if c.bypassed(key) {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.HitCount++
		copied := *entry
		return &copied, true
	}

	if match := c.bestMatchLocked(key); match != nil {
		match.HitCount++
		copied := *match
		return &copied, true
	}
	return nil, false
}

// Put stores a response under the normalized query. If an existing entry is a
// near-duplicate (similarity at or above the threshold), its response text is
// overwritten in place and its hit count preserved.
func (c *Cache) Put(query, response, source string) {
	key := Normalize(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.Response = response
		existing.Source = source
		existing.UpdatedAt = time.Now()
		return
	}

	if match := c.bestMatchLocked(key); match != nil {
		match.Response = response
		match.Source = source
		match.UpdatedAt = time.Now()
		return
	}

	c.entries[key] = &Entry{
		Question:  query,
		Response:  response,
		Source:    source,
		UpdatedAt: time.Now(),
	}
}

// Update overwrites the response text of an exact entry, preserving its hit
// count. Returns false if no exact entry exists.
func (c *Cache) Update(query, response string) bool {
	key := Normalize(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	entry.Response = response
	entry.UpdatedAt = time.Now()
	return true
}

// Remove deletes an exact entry. Returns false if absent.
func (c *Cache) Remove(query string) bool {
	key := Normalize(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// Entries returns a snapshot of all cached entries.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	return out
}

// Stats reports entry and hit totals.
func (c *Cache) Stats() (entries, hits int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		hits += e.HitCount
	}
	return len(c.entries), hits
}

// bestMatchLocked scans for the highest-similarity key at or above the
// threshold. Must be called with mu held.
func (c *Cache) bestMatchLocked(key string) *Entry {
	var best *Entry
	bestScore := c.threshold

	for existing, entry := range c.entries {
		score := Similarity(key, existing)
		if score > bestScore || (score == bestScore && best == nil) {
			best = entry
			bestScore = score
		}
	}
	return best
}

func (c *Cache) bypassed(key string) bool {
	for _, word := range c.bypass {
		if strings.Contains(key, word) {
			return true
		}
	}
	return false
}
