package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewLRUCache(maxSize, ttl)
	cache.now = clock.Now
	return cache, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)
	gw := &stubGateway{name: "stripe"}

	assert.Nil(t, cache.Get("shop", "stripe", "sandbox"))

	cache.Set("shop", "stripe", "sandbox", gw)
	assert.Same(t, gw, cache.Get("shop", "stripe", "sandbox"))
	assert.Nil(t, cache.Get("shop", "stripe", "production"))

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.InDelta(t, 1.0/3.0, stats.HitRatio, 0.0001)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache, _ := newTestCache(2, time.Hour)
	a := &stubGateway{name: "a"}
	b := &stubGateway{name: "b"}
	c := &stubGateway{name: "c"}

	cache.Set("shop", "a", "test", a)
	cache.Set("shop", "b", "test", b)
	cache.Get("shop", "a", "test")
	cache.Set("shop", "c", "test", c)

	assert.Same(t, a, cache.Get("shop", "a", "test"))
	assert.Nil(t, cache.Get("shop", "b", "test"))
	assert.Same(t, c, cache.Get("shop", "c", "test"))
	assert.Equal(t, int64(1), cache.Stats().Evictions)
	assert.Equal(t, 2, cache.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	cache, clock := newTestCache(10, time.Minute)
	cache.Set("shop", "eway", "test", &stubGateway{name: "eway"})

	clock.Advance(30 * time.Second)
	assert.NotNil(t, cache.Get("shop", "eway", "test"))

	clock.Advance(time.Minute)
	assert.Nil(t, cache.Get("shop", "eway", "test"))
	assert.Equal(t, int64(1), cache.Stats().TTLExpiries)
	assert.Equal(t, 0, cache.Size())
}

func TestLRUCache_Cleanup(t *testing.T) {
	cache, clock := newTestCache(10, time.Minute)
	cache.Set("shop", "a", "test", &stubGateway{name: "a"})
	clock.Advance(45 * time.Second)
	cache.Set("shop", "b", "test", &stubGateway{name: "b"})
	clock.Advance(30 * time.Second)

	cache.Cleanup()

	assert.Equal(t, 1, cache.Size())
	assert.NotNil(t, cache.Get("shop", "b", "test"))
}

func TestLRUCache_DeleteAllEnvironments(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)
	cache.Set("shop", "paypal", "sandbox", &stubGateway{name: "paypal"})
	cache.Set("shop", "paypal", "production", &stubGateway{name: "paypal"})
	cache.Set("other", "paypal", "sandbox", &stubGateway{name: "paypal"})

	cache.Delete("shop", "paypal")

	assert.Equal(t, 1, cache.Size())
	assert.NotNil(t, cache.Get("other", "paypal", "sandbox"))

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestLRUCache_SetReplacesExisting(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)
	first := &stubGateway{name: "first"}
	second := &stubGateway{name: "second"}

	cache.Set("shop", "moneris", "test", first)
	cache.Set("shop", "moneris", "test", second)

	assert.Equal(t, 1, cache.Size())
	assert.Same(t, second, cache.Get("shop", "moneris", "test"))
}
