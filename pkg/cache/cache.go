package cache

import (
	"sync"
	"time"
)

// DefaultMaxEntries bounds a cache made with NewTimed.
const DefaultMaxEntries = 4096

// Timed is a cache that invalidates elements on a timer basis. It holds at
// most maxEntries elements. It is safe for concurrent use.
type Timed struct {
	ttl        time.Duration
	maxEntries int

	mu    sync.Mutex
	cache map[string]element
}

// element holds a timestamped value to save.
type element struct {
	value    []byte
	creation time.Time
}

// NewTimed creates a new Timed cache where elements will be invalidated after
// a time in cache corresponding to TTL.
func NewTimed(ttl time.Duration) *Timed {
	return NewTimedMax(ttl, DefaultMaxEntries)
}

// NewTimedMax is like NewTimed but holds at most maxEntries elements. When
// full, expired elements are dropped first and then the oldest one.
func NewTimedMax(ttl time.Duration, maxEntries int) *Timed {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Timed{
		ttl:        ttl,
		maxEntries: maxEntries,
		cache:      make(map[string]element),
	}
}

// Set assigns a value to a key.
func (c *Timed) Set(key string, val []byte) {
	c.set(key, val, time.Now())
}

// set performs Set's work with the wall clock factored out.
func (c *Timed) set(key string, val []byte, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[key]; !ok && len(c.cache) >= c.maxEntries {
		c.evict(t)
	}
	c.cache[key] = element{
		value:    val,
		creation: t,
	}
}

// evict drops every expired element, or the oldest one if none expired.
// c.mu must be held.
func (c *Timed) evict(t time.Time) {
	var (
		oldest     string
		oldestTime time.Time
		found      bool
	)
	for key, el := range c.cache {
		if t.Sub(el.creation) > c.ttl {
			delete(c.cache, key)
			continue
		}
		if !found || el.creation.Before(oldestTime) {
			oldest, oldestTime, found = key, el.creation, true
		}
	}
	if found && len(c.cache) >= c.maxEntries {
		delete(c.cache, oldest)
	}
}

// Get retrieves a value for a key. The value may not exist or have expired, in
// which case ok will be false.
func (c *Timed) Get(key string) (value []byte, ok bool) {
	return c.get(key, time.Now())
}

// get is like set in that the time is factored out
func (c *Timed) get(key string, t time.Time) (value []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.cache[key]
	if !ok {
		return nil, false
	}

	// in memory elements might still be invalid
	if elapsed := t.Sub(el.creation); elapsed > c.ttl {
		delete(c.cache, key)
		return nil, false
	}

	return el.value, true
}

// Len reports how many elements are held, expired or not.
func (c *Timed) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
