package cache

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/swaprouter/types"
)

type entry struct {
	routes    []*types.Route
	expiresAt time.Time
	timer     *time.Timer
}

// RouteCache maps request keys to ranked route lists. Entries expire after
// the TTL: lazily on read and by a per-entry timer.
type RouteCache struct {
	ttl    time.Duration
	logger *zap.Logger
	cache  *lru.Cache
	now    func() time.Time
	mu     sync.Mutex
}

func NewRouteCache(size int, ttl time.Duration, logger *zap.Logger) (*RouteCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &RouteCache{
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}

	cache, err := lru.NewWithEvict(size, func(_ interface{}, value interface{}) {
		if e, ok := value.(*entry); ok && e.timer != nil {
			e.timer.Stop()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	c.cache = cache

	return c, nil
}

// SetClock replaces the time source used for expiry checks
func (c *RouteCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *RouteCache) TTL() time.Duration {
	return c.ttl
}

// Key hashes the request identity together with the current time bucket, so
// identical requests inside one TTL window share an entry.
func (c *RouteCache) Key(tokenIn, tokenOut types.Token, amountIn *big.Int) uint64 {
	c.mu.Lock()
	now := c.now()
	c.mu.Unlock()
	return Key(tokenIn, tokenOut, amountIn, now, c.ttl)
}

func Key(tokenIn, tokenOut types.Token, amountIn *big.Int, now time.Time, bucket time.Duration) uint64 {
	d := xxhash.New()
	writeToken(d, tokenIn)
	writeToken(d, tokenOut)

	var buf [8]byte
	amount := amountIn.Bytes()
	binary.BigEndian.PutUint64(buf[:], uint64(len(amount)))
	d.Write(buf[:])
	d.Write(amount)

	var slot int64
	if bucket > 0 {
		slot = now.UnixNano() / int64(bucket)
	}
	binary.BigEndian.PutUint64(buf[:], uint64(slot))
	d.Write(buf[:])

	return d.Sum64()
}

func writeToken(d *xxhash.Digest, t types.Token) {
	var buf [8]byte
	d.Write(t.Address.Bytes())
	binary.BigEndian.PutUint64(buf[:], t.ChainID)
	d.Write(buf[:])
}

// Get returns a deep copy of the cached routes
func (c *RouteCache) Get(key uint64) ([]*types.Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	e := value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.cache.Remove(key)
		return nil, false
	}

	return types.CloneRoutes(e.routes), true
}

// Put stores a deep copy of routes and schedules its removal
func (c *RouteCache) Put(key uint64, routes []*types.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{
		routes:    types.CloneRoutes(routes),
		expiresAt: c.now().Add(c.ttl),
	}
	e.timer = time.AfterFunc(c.ttl, func() {
		c.expire(key, e)
	})
	c.cache.Add(key, e)
}

func (c *RouteCache) expire(key uint64, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The key may have been overwritten by a newer entry
	if value, ok := c.cache.Peek(key); ok && value.(*entry) == e {
		c.cache.Remove(key)
		c.logger.Debug("Route cache entry expired", zap.Uint64("key", key))
	}
}

// Clear drops every entry and stops pending expiry timers
func (c *RouteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

func (c *RouteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
