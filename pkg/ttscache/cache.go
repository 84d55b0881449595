package ttscache

import (
	"sort"
	"sync"
)

// ArtifactCache is a bounded store mapping request fingerprints to entries
// that are pending, completed, or failed. Eviction is LRU by insertion or
// overwrite time: reads never refresh recency, only writes do.
type ArtifactCache struct {
	mu sync.Mutex

	entries     map[Fingerprint]*Entry
	currentSize int64 // sum of SizeBytes over all entries, maintained by Put

	maxSize    int64
	maxEntries int

	hits      int64
	misses    int64
	evictions int64
}

// NewArtifactCache creates a cache bounded by aggregate size and entry count.
func NewArtifactCache(maxSize int64, maxEntries int) *ArtifactCache {
	return &ArtifactCache{
		entries:    make(map[Fingerprint]*Entry),
		maxSize:    maxSize,
		maxEntries: maxEntries,
	}
}

// Lookup returns the entry for fp, if any. No side effects.
func (c *ArtifactCache) Lookup(fp Fingerprint) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fp]
	return e, ok
}

// IsCompleted reports whether fp has a completed entry with an artifact.
func (c *ArtifactCache) IsCompleted(fp Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fp]
	return ok && e.Status == StatusCompleted && e.Artifact != nil
}

// IsPending reports whether fp has an entry still in flight.
func (c *ArtifactCache) IsPending(fp Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fp]
	return ok && e.Status == StatusPending
}

// Put inserts or replaces the entry for fp. On replace the old entry's size
// is subtracted from the aggregate before the new size is added, so the
// aggregate always equals the sum of stored sizes. Eviction enforcement
// runs after every put; the fingerprints of removed entries are returned so
// the caller can prune session sequences.
func (c *ArtifactCache) Put(fp Fingerprint, e *Entry) []Fingerprint {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[fp]; ok {
		c.currentSize -= old.SizeBytes
	}
	c.entries[fp] = e
	c.currentSize += e.SizeBytes

	return c.evict()
}

// Track inserts a pending entry for fp only if the fingerprint is not
// already present in any status. It reports whether the entry was added.
func (c *ArtifactCache) Track(fp Fingerprint, e *Entry) (bool, []Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[fp]; ok {
		return false, nil
	}
	c.entries[fp] = e
	c.currentSize += e.SizeBytes

	return true, c.evict()
}

// evict enforces the size and count limits. Must be called with the lock
// held. Entries are removed oldest-first by CreatedAt; pending entries are
// never evicted, so the cache may exceed its bounds while everything left
// is in flight.
func (c *ArtifactCache) evict() []Fingerprint {
	if len(c.entries) <= c.maxEntries && c.currentSize <= c.maxSize {
		return nil
	}

	type candidate struct {
		fp    Fingerprint
		entry *Entry
	}
	candidates := make([]candidate, 0, len(c.entries))
	for fp, e := range c.entries {
		candidates = append(candidates, candidate{fp: fp, entry: e})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].entry.CreatedAt.Before(candidates[j].entry.CreatedAt)
	})

	var evicted []Fingerprint
	for _, cand := range candidates {
		if len(c.entries) <= c.maxEntries && c.currentSize <= c.maxSize {
			break
		}
		if cand.entry.Status == StatusPending {
			// Never evict in-flight work.
			continue
		}
		delete(c.entries, cand.fp)
		c.currentSize -= cand.entry.SizeBytes
		c.evictions++
		evicted = append(evicted, cand.fp)
	}

	return evicted
}

// Stats returns a read-only snapshot.
func (c *ArtifactCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		MaxEntries:  c.maxEntries,
		MaxSize:     c.maxSize,
		EntryCount:  len(c.entries),
		CurrentSize: c.currentSize,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
	}
}

// Clear removes all entries and zeroes the aggregate size and counters.
func (c *ArtifactCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Fingerprint]*Entry)
	c.currentSize = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

func (c *ArtifactCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *ArtifactCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}
