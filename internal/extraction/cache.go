package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// resultCache keys successful extractions by document content hash plus the
// options that shaped them, so byte-identical re-uploads skip the remote
// call while the TTL holds.
type resultCache struct {
	store *gocache.Cache
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{store: gocache.New(ttl, ttl)}
}

func cacheKey(content []byte, opts Options) string {
	sum := sha256.Sum256(content)
	proximity := -1
	if opts.ProximityHint != nil {
		proximity = *opts.ProximityHint
	}
	return fmt.Sprintf("%s:%t:%d", hex.EncodeToString(sum[:]), opts.UseValidation, proximity)
}

func (c *resultCache) get(content []byte, opts Options) (*Result, bool) {
	v, ok := c.store.Get(cacheKey(content, opts))
	if !ok {
		return nil, false
	}
	cached, ok := v.(*Result)
	if !ok {
		return nil, false
	}
	copy := *cached
	copy.CacheHit = true
	return &copy, true
}

func (c *resultCache) put(content []byte, opts Options, result *Result) {
	c.store.SetDefault(cacheKey(content, opts), result)
}
