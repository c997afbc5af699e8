package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/models"
)

// entry wraps a cached report with expiry and insertion order tracking.
type entry struct {
	report    string
	expiry    time.Time
	insertIdx int64
}

// ReportCache keeps successful strategy reports in memory so that reopening
// the same row does not trigger another generation upstream.
// Only non-empty reports should be stored; failures are never cached.
// Thread-safe with sync.RWMutex.
type ReportCache struct {
	mu         sync.RWMutex
	items      map[string]entry
	ttl        time.Duration
	maxEntries int
	nextIdx    int64
}

// New creates a new ReportCache with the given TTL and max entry count.
func New(ttl time.Duration, maxEntries int) *ReportCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &ReportCache{
		items:      make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// MakeKey fingerprints the fields of an instrument the report depends on.
// A new scoring run changes the fingerprint and so bypasses stale reports.
func MakeKey(inst models.Instrument) string {
	return strings.Join([]string{
		inst.Name,
		inst.GradeScore,
		strconv.FormatFloat(inst.PriceCurr, 'f', -1, 64),
		strconv.FormatFloat(inst.Alpha1M, 'f', -1, 64),
		strconv.FormatFloat(inst.RVol, 'f', -1, 64),
		inst.Trend1W,
	}, "|")
}

// Get returns a cached report if found and not expired.
func (c *ReportCache) Get(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}

	if time.Now().After(e.expiry) {
		// Expired: remove lazily
		c.mu.Lock()
		if e2, ok2 := c.items[key]; ok2 && time.Now().After(e2.expiry) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return "", false
	}

	return e.report, true
}

// Set stores a report. Evicts the oldest entry if at capacity.
func (c *ReportCache) Set(key, report string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{
		report:    report,
		expiry:    time.Now().Add(c.ttl),
		insertIdx: c.nextIdx,
	}
	c.nextIdx++

	if _, exists := c.items[key]; exists {
		c.items[key] = e
		return
	}

	if len(c.items) >= c.maxEntries {
		c.evictOldest()
	}

	c.items[key] = e
}

// Len returns the number of entries, expired or not.
func (c *ReportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge drops every entry.
func (c *ReportCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}

// evictOldest removes the entry with the lowest insertIdx. Must be called with mu held.
func (c *ReportCache) evictOldest() {
	var oldestKey string
	var oldestIdx int64 = -1

	for key, e := range c.items {
		if oldestIdx == -1 || e.insertIdx < oldestIdx {
			oldestIdx = e.insertIdx
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
