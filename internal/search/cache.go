package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/segmenta-io/segmenta/internal/config"
)

// ResultCache is a TTL-bounded LRU over search results. The snapshot
// version is part of every key, so a catalog reload invalidates the whole
// cache without an explicit flush.
type ResultCache struct {
	lru *expirable.LRU[string, *Result]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResultCache builds the cache, or returns nil when caching is
// disabled. A nil cache is safe to use; lookups always miss.
func NewResultCache(cfg config.CacheConfig) *ResultCache {
	if !cfg.Enabled || cfg.Size <= 0 {
		return nil
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, *Result](cfg.Size, nil, cfg.TTL),
	}
}

// Key derives the cache key from everything that affects a result.
func Key(normalizedQuery string, opts Options, snapshotVersion uint64) string {
	sim := "default"
	if opts.Similarity != nil {
		sim = fmt.Sprintf("%t:%g:%d", opts.Similarity.Enabled, opts.Similarity.Threshold, opts.Similarity.MaxPerCluster)
	}
	weights := "default"
	if opts.Weights != nil {
		weights = fmt.Sprintf("%g:%g", opts.Weights.Semantic, opts.Weights.Keyword)
	}
	raw := fmt.Sprintf("%s|%d|%t|%t|%s|%s|%s|%s|%d",
		normalizedQuery, opts.TopK, opts.UseSemantic, opts.UseKeyword,
		opts.Theme, opts.Category, weights, sim, snapshotVersion)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached result.
func (c *ResultCache) Get(key string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	res, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return res, ok
}

// Add stores a result.
func (c *ResultCache) Add(key string, res *Result) {
	if c == nil {
		return
	}
	c.lru.Add(key, res)
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Stats returns hit and miss counters.
func (c *ResultCache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
