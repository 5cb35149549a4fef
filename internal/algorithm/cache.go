package algorithm

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/codesearch/internal/types"
)

// Cache keeps recently compiled algorithms so repeated queries (typing in a
// search box re-issues the same pattern) skip compilation. Compile errors
// are not cached.
type Cache struct {
	cache *lru.Cache[Options, Algorithm]
	stats CacheStats
}

// CacheStats tracks cache performance statistics
type CacheStats struct {
	Hits   atomic.Int64
	Misses atomic.Int64
}

// NewCache creates a cache holding up to size algorithms.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = types.DefaultAlgorithmCacheSize
	}
	cache, _ := lru.New[Options, Algorithm](size)
	return &Cache{cache: cache}
}

// Get returns the compiled algorithm for opts, compiling it on a miss.
func (c *Cache) Get(opts Options) (Algorithm, error) {
	if alg, ok := c.cache.Get(opts); ok {
		c.stats.Hits.Add(1)
		return alg, nil
	}
	c.stats.Misses.Add(1)

	alg, err := Compile(opts)
	if err != nil {
		return nil, err
	}
	c.cache.Add(opts, alg)
	return alg, nil
}

// Len returns the number of cached algorithms.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.stats.Hits.Load(), c.stats.Misses.Load()
}
