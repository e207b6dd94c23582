package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the maximum number of cached access tokens.
	DefaultCapacity = 1000
	// DefaultTTL is how long an entry lives after its last write.
	DefaultTTL = 15 * time.Minute
)

// Config controls the AccessTokens cache.
type Config struct {
	Capacity int
	TTL      time.Duration
	// Now overrides the wall clock.
	Now func() time.Time
	// OnEvict is called, outside the lock, with the key of every entry removed
	// for capacity or expiry. Explicit invalidations are not reported.
	OnEvict func(key string)
}

type entry struct {
	key       string
	value     string
	writtenAt time.Time
}

// AccessTokens maps a user email to the last access token issued for it.
//
// Entries are ordered by write recency: reads never promote an entry, so the
// eviction candidate is always the least recently written key. An entry
// expires TTL after its last write whatever the capacity pressure.
type AccessTokens struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(string)
	order    *list.List // front = most recently written
	items    map[string]*list.Element
}

// NewAccessTokens returns an empty cache, substituting defaults for zero values.
func NewAccessTokens(cfg Config) *AccessTokens {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AccessTokens{
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		now:      cfg.Now,
		onEvict:  cfg.OnEvict,
		order:    list.New(),
		items:    make(map[string]*list.Element, cfg.Capacity),
	}
}

// Put stores value under key, resetting its TTL and write recency.
func (c *AccessTokens) Put(key, value string) {
	if c == nil || key == "" {
		return
	}
	now := c.now()

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.writtenAt = now
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value, writtenAt: now})
	var evicted []string
	for c.order.Len() > c.capacity {
		evicted = append(evicted, c.removeLocked(c.order.Back()))
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Get returns the live value for key.
func (c *AccessTokens) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	now := c.now()

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return "", false
	}
	e := el.Value.(*entry)
	if c.expired(e, now) {
		c.removeLocked(el)
		c.mu.Unlock()
		c.notify([]string{key})
		return "", false
	}
	value := e.value
	c.mu.Unlock()
	return value, true
}

// Invalidate removes key and reports whether a live entry was present.
func (c *AccessTokens) Invalidate(key string) bool {
	if c == nil {
		return false
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	live := !c.expired(el.Value.(*entry), now)
	c.removeLocked(el)
	return live
}

// InvalidateAll empties the cache.
func (c *AccessTokens) InvalidateAll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	c.mu.Unlock()
}

// Len returns the number of live entries, dropping expired ones first.
func (c *AccessTokens) Len() int {
	if c == nil {
		return 0
	}
	now := c.now()

	c.mu.Lock()
	var evicted []string
	// oldest writes sit at the back, so expired entries form a suffix
	for el := c.order.Back(); el != nil; el = c.order.Back() {
		if !c.expired(el.Value.(*entry), now) {
			break
		}
		evicted = append(evicted, c.removeLocked(el))
	}
	n := c.order.Len()
	c.mu.Unlock()

	c.notify(evicted)
	return n
}

func (c *AccessTokens) expired(e *entry, now time.Time) bool {
	return !now.Before(e.writtenAt.Add(c.ttl))
}

func (c *AccessTokens) removeLocked(el *list.Element) string {
	e := c.order.Remove(el).(*entry)
	delete(c.items, e.key)
	return e.key
}

func (c *AccessTokens) notify(keys []string) {
	if c.onEvict == nil {
		return
	}
	for _, k := range keys {
		c.onEvict(k)
	}
}
