package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// fingerprintPrefixLen is how many leading embedding components go into the
// cache key. The full vector would make keys enormous; the prefix is enough
// to distinguish real queries in practice.
const fingerprintPrefixLen = 8

// Fingerprint derives the cache key for a search: collection, a fixed-length
// embedding prefix and the result count.
func Fingerprint(collection string, vector []float32, k int) string {
	n := fingerprintPrefixLen
	if len(vector) < n {
		n = len(vector)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%.6f", vector[i])
	}
	return fmt.Sprintf("search:%s:%s:%d", collection, strings.Join(parts, ","), k)
}

// cachedResult is the payload stored per fingerprint.
type cachedResult struct {
	POIs  []types.ScoredPOI
	Total int
}

// ResultCache wraps go-cache with the search fingerprint scheme. go-cache
// enforces the TTL on read, so an expired entry is never returned regardless
// of the cleanup schedule.
type ResultCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewResultCache(ttl, cleanupInterval time.Duration) *ResultCache {
	return &ResultCache{
		cache: cache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

func (c *ResultCache) Get(key string) (*cachedResult, bool) {
	v, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	result, ok := v.(*cachedResult)
	return result, ok
}

func (c *ResultCache) Set(key string, pois []types.ScoredPOI, total int) {
	c.cache.Set(key, &cachedResult{POIs: pois, Total: total}, cache.DefaultExpiration)
}
