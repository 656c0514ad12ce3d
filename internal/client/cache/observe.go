package cache

import (
	"context"
	"log/slog"
	"sync"
)

// Observer keeps a key live: while at least one observer is open, the key
// is refetched whenever it is invalidated
type Observer struct {
	cache *Cache
	key   QueryKey
	once  sync.Once
}

// Observe registers interest in key. The first observer of a key with no
// value, or a stale one, triggers a fetch.
func (c *Cache) Observe(key QueryKey, fetcher Fetcher) *Observer {
	c.mu.Lock()
	e := c.entry(key)
	e.fetcher = fetcher
	e.observers++
	needFetch := (!e.has || e.stale) && !e.fetching
	c.mu.Unlock()

	if needFetch {
		c.scheduleRefetch(key)
	}
	return &Observer{cache: c, key: key}
}

// Key returns the observed key
func (o *Observer) Key() QueryKey {
	return o.key
}

// Close releases the observation. Calling it more than once is a no-op.
func (o *Observer) Close() {
	o.once.Do(func() {
		c := o.cache
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[o.key]; ok && e.observers > 0 {
			e.observers--
		}
	})
}

// Observers returns the number of open observers of key
func (c *Cache) Observers(key QueryKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.observers
	}
	return 0
}

func (c *Cache) scheduleRefetch(key QueryKey) {
	c.dispatch(func() {
		if _, err := c.refetch(c.ctx, key); err != nil {
			c.logger.Warn("refetch failed", slog.String("key", key.String()), slog.Any("error", err))
		}
	})
}

// Refetch fetches key with its registered fetcher and stores the result.
// It returns the fetched value. Concurrent refetches of a key share one call.
func (c *Cache) Refetch(ctx context.Context, key QueryKey) (any, error) {
	return c.refetch(ctx, key)
}

func (c *Cache) refetch(ctx context.Context, key QueryKey) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.fetcher == nil {
		c.mu.Unlock()
		return nil, nil
	}
	fetcher := e.fetcher
	c.mu.Unlock()

	// Only the caller that runs the fetch sees again set
	again := false
	v, err, _ := c.fetches.Do(key.String(), func() (any, error) {
		c.mu.Lock()
		gen, missed := e.gen, e.missed
		e.fetching = true
		c.mu.Unlock()

		value, err := fetcher(ctx)

		c.mu.Lock()
		// A write that landed while fetching is newer than the fetch
		if err == nil && e.gen == gen {
			e.value = value
			e.has = true
			e.stale = e.missed != missed
			e.gen++
			c.enqueueLocked(key, e, value, true)
			c.drainLocked()
			c.mu.Lock()
		}
		e.fetching = false
		again = e.missed != missed && e.observers > 0
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return value, nil
	})
	if again {
		c.scheduleRefetch(key)
	}
	return v, err
}

// Fetch registers fetcher for key and loads it now, without observing it
func (c *Cache) Fetch(ctx context.Context, key QueryKey, fetcher Fetcher) (any, error) {
	c.mu.Lock()
	c.entry(key).fetcher = fetcher
	c.mu.Unlock()
	return c.refetch(ctx, key)
}
