package gateway

import (
	"container/list"
	"sync"
	"time"
)

// InstanceCache holds initialized gateways so credentials are not re-parsed per call
type InstanceCache interface {
	Get(account, gatewayName, environment string) Gateway
	Set(account, gatewayName, environment string, gw Gateway)
	Delete(account, gatewayName string)
	Clear()
	Size() int
	Stats() CacheStats
	Cleanup()
}

// CacheStats represents cache performance metrics
type CacheStats struct {
	Size        int           `json:"size"`
	MaxSize     int           `json:"maxSize"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Evictions   int64         `json:"evictions"`
	TTLExpiries int64         `json:"ttlExpiries"`
	HitRatio    float64       `json:"hitRatio"`
	TTL         time.Duration `json:"ttl"`
}

type cacheEntry struct {
	gateway     Gateway
	key         string
	account     string
	gatewayName string
	createdAt   time.Time
	element     *list.Element
}

// LRUCache evicts the least recently used gateway once full and drops entries older than ttl
type LRUCache struct {
	entries map[string]*cacheEntry
	order   *list.List // most recent at front
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex

	hits        int64
	misses      int64
	evictions   int64
	ttlExpiries int64
}

// NewLRUCache creates a new in-memory gateway cache
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LRUCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(account, gatewayName, environment string) string {
	return account + "/" + gatewayName + "/" + environment
}

func (c *LRUCache) Get(account, gatewayName, environment string) Gateway {
	key := cacheKey(account, gatewayName, environment)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	if c.expired(entry) {
		c.remove(entry)
		c.ttlExpiries++
		c.misses++
		return nil
	}

	c.order.MoveToFront(entry.element)
	c.hits++
	return entry.gateway
}

func (c *LRUCache) Set(account, gatewayName, environment string, gw Gateway) {
	key := cacheKey(account, gatewayName, environment)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.gateway = gw
		entry.createdAt = c.now()
		c.order.MoveToFront(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		if back := c.order.Back(); back != nil {
			c.remove(back.Value.(*cacheEntry))
			c.evictions++
		}
	}

	entry := &cacheEntry{
		gateway:     gw,
		key:         key,
		account:     account,
		gatewayName: gatewayName,
		createdAt:   c.now(),
	}
	entry.element = c.order.PushFront(entry)
	c.entries[key] = entry
}

// Delete removes every environment cached for an account/gateway pair
func (c *LRUCache) Delete(account, gatewayName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries {
		if entry.account == account && entry.gatewayName == gatewayName {
			c.remove(entry)
		}
	}
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = list.New()
}

func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	ratio := 0.0
	if total := c.hits + c.misses; total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:        len(c.entries),
		MaxSize:     c.maxSize,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		TTLExpiries: c.ttlExpiries,
		HitRatio:    ratio,
		TTL:         c.ttl,
	}
}

// Cleanup removes expired entries
func (c *LRUCache) Cleanup() {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries {
		if c.expired(entry) {
			c.remove(entry)
			c.ttlExpiries++
		}
	}
}

func (c *LRUCache) expired(entry *cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl
}

// remove must be called with the lock held
func (c *LRUCache) remove(entry *cacheEntry) {
	delete(c.entries, entry.key)
	if entry.element != nil {
		c.order.Remove(entry.element)
	}
}
