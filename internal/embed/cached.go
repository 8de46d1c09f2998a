package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider wraps a Provider with an LRU cache keyed on query text
// and model. Repeated queries skip the provider round trip entirely.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with a cache of the given size.
func NewCachedProvider(inner Provider, size int) *CachedProvider {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedProvider{inner: inner, cache: cache}
}

// cacheKey hashes text and model so arbitrary query text yields a fixed
// length key.
func (c *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector when available.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch fills from cache where possible and calls the provider only
// for the misses.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			results[missIdx[j]] = vec
			c.cache.Add(c.cacheKey(missTexts[j]), vec)
		}
	}
	return results, nil
}

// Dimensions delegates to the wrapped provider.
func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

// ModelName delegates to the wrapped provider.
func (c *CachedProvider) ModelName() string { return c.inner.ModelName() }

// Len returns the number of cached embeddings.
func (c *CachedProvider) Len() int { return c.cache.Len() }

// Close closes the wrapped provider.
func (c *CachedProvider) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
