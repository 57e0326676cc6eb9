package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultCacheTTL is how long a finished suggestion is reused.
const DefaultCacheTTL = 2 * time.Minute

const cacheCapacity = 512

// Cache keeps finished suggestions so identical requests skip the network.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	items *ttlcache.Cache[string, string]
}

// NewCache creates a suggestion cache. Close stops its expiry goroutine.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithCapacity[string, string](cacheCapacity),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &Cache{items: c}
}

// Get returns the cached suggestion for key.
func (c *Cache) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	item := c.items.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Set stores a finished suggestion.
func (c *Cache) Set(key, suggestion string) {
	if c == nil || suggestion == "" {
		return
	}
	c.items.Set(key, suggestion, ttlcache.DefaultTTL)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.items.Len()
}

// Close stops the expiry loop.
func (c *Cache) Close() {
	if c != nil {
		c.items.Stop()
	}
}

// cacheKey identifies a request by model, input and the context it was sent with.
func cacheKey(model, input string, contextLines []string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(input))
	for _, l := range contextLines {
		h.Write([]byte{0})
		h.Write([]byte(l))
	}
	return hex.EncodeToString(h.Sum(nil))
}
