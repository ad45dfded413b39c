// Package filecache implements the write-once, content-addressed file
// result cache: once a file's content under a given ruleset has been
// analyzed, every later commit that contains byte-identical content reuses
// the result instead of calling the Analyzer again.
//
// Unlike the teacher's pkg/cache LRU blob cache, entries are never evicted:
// a mining batch's working set is bounded by the repository's distinct file
// contents, not by memory pressure, and correctness requires every prior
// result to remain available for the life of the batch.
package filecache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

const shardCount = 64

// Cache is a sharded, write-once map from CacheKey to the findings
// previously computed for that content under that ruleset.
type Cache struct {
	shards [shardCount]shard

	hits   atomic.Int64
	misses atomic.Int64
}

type shard struct {
	mu      sync.RWMutex
	entries map[mining.CacheKey][]mining.Finding
}

// New creates an empty cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i].entries = make(map[mining.CacheKey][]mining.Finding)
	}

	return c
}

// ContentHash returns the cache's content-addressing hash for data: the
// first 16 bytes (128 bits) of its SHA-256 digest, hex-encoded. Truncation
// keeps keys short while leaving collision probability negligible for a
// single repository's file population.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func (c *Cache) shardFor(key mining.CacheKey) *shard {
	sum := sha256.Sum256([]byte(key.ContentHash + "\x00" + key.RulesetID))
	idx := int(sum[0]) % shardCount

	return &c.shards[idx]
}

// Get returns the cached findings for key, if present. A copy is returned
// so callers can freely mutate the slice (e.g. while merging into a
// CommitResult) without corrupting the cache.
func (c *Cache) Get(key mining.CacheKey) ([]mining.Finding, bool) {
	sh := c.shardFor(key)

	sh.mu.RLock()
	findings, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)

	out := make([]mining.Finding, len(findings))
	copy(out, findings)

	return out, true
}

// Store records findings for key. Write-once: if key is already present,
// the existing entry is left untouched, since content-addressing
// guarantees any second writer computed the same result.
func (c *Cache) Store(key mining.CacheKey, findings []mining.Finding) {
	sh := c.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.entries[key]; exists {
		return
	}

	stored := make([]mining.Finding, len(findings))
	copy(stored, findings)
	sh.entries[key] = stored
}

// Stats reports cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Snapshot returns every entry currently in the cache, for persistence.
func (c *Cache) Snapshot() map[mining.CacheKey][]mining.Finding {
	out := make(map[mining.CacheKey][]mining.Finding)

	for i := range c.shards {
		sh := &c.shards[i]

		sh.mu.RLock()
		for k, v := range sh.entries {
			out[k] = v
		}
		sh.mu.RUnlock()
	}

	return out
}

// Restore loads entries into the cache, e.g. from a prior batch's
// persisted snapshot. Existing entries win over restored ones, consistent
// with write-once semantics.
func (c *Cache) Restore(entries map[mining.CacheKey][]mining.Finding) {
	for k, v := range entries {
		c.Store(k, v)
	}
}
