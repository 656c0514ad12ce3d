// Package cache is the client-side store of server records, keyed by query.
// Values are replaced wholesale by Set; Invalidate marks values stale and
// refetches the ones that are being observed.
package cache

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the current server value for a key
type Fetcher func(ctx context.Context) (any, error)

// Listener is told about every change to a key's value.
// ok is false when the value was removed.
type Listener func(value any, ok bool)

// KeyListener is told about every change to any key its selector matches
type KeyListener func(key QueryKey, value any, ok bool)

type watcher struct {
	sel Selector
	fn  KeyListener
}

type entry struct {
	value     any
	has       bool
	stale     bool
	gen       uint64 // bumped on every write
	missed    uint64 // bumped by Invalidate and Remove; a fetch that sees it move is outdated
	fetching  bool
	fetcher   Fetcher
	observers int
	listeners map[uint64]Listener
	order     []uint64
}

type notification struct {
	listeners []Listener
	value     any
	ok        bool
}

// Cache holds values by QueryKey. It is safe for concurrent use.
// Listeners run outside the lock, in the order writes happened.
type Cache struct {
	mu       sync.Mutex
	entries  map[QueryKey]*entry
	nextID   uint64
	watchers map[uint64]watcher
	watching []uint64
	queue    []notification
	draining bool

	fetches  singleflight.Group
	dispatch func(func())
	ctx      context.Context
	logger   *slog.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithDispatch sets how refetches are scheduled. The default runs each in
// its own goroutine; tests pass a function that runs them inline.
func WithDispatch(dispatch func(func())) Option {
	return func(c *Cache) { c.dispatch = dispatch }
}

// WithLogger sets the logger used for refetch failures
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger.With(slog.String("component", "cache")) }
}

// WithContext sets the context refetches run under
func WithContext(ctx context.Context) Option {
	return func(c *Cache) { c.ctx = ctx }
}

// Inline runs f immediately; use with WithDispatch for deterministic tests
func Inline(f func()) { f() }

// New creates an empty cache
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[QueryKey]*entry),
		watchers: make(map[uint64]watcher),
		dispatch: func(f func()) { go f() },
		ctx:      context.Background(),
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) entry(key QueryKey) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{listeners: make(map[uint64]Listener)}
		c.entries[key] = e
	}
	return e
}

// Get returns the current value for key, stale or not
func (c *Cache) Get(key QueryKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.has {
		return nil, false
	}
	return e.value, true
}

// IsStale reports whether key holds a value that has been invalidated
// and not yet refetched
func (c *Cache) IsStale(key QueryKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.has && e.stale
}

// Set overwrites the value for key and notifies its listeners
func (c *Cache) Set(key QueryKey, value any) {
	c.mu.Lock()
	e := c.entry(key)
	e.value = value
	e.has = true
	e.stale = false
	e.gen++
	c.enqueueLocked(key, e, value, true)
	c.drainLocked()
}

// Remove drops the value for key. Listeners see ok=false, and an observed
// key is refetched.
func (c *Cache) Remove(key QueryKey) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || !e.has {
		c.mu.Unlock()
		return
	}
	e.value = nil
	e.has = false
	e.stale = false
	e.gen++
	e.missed++
	refetch := e.observers > 0 && e.fetcher != nil && !e.fetching
	c.enqueueLocked(key, e, nil, false)
	c.drainLocked()

	if refetch {
		c.scheduleRefetch(key)
	}
}

func (c *Cache) enqueueLocked(key QueryKey, e *entry, value any, ok bool) {
	listeners := make([]Listener, 0, len(e.order))
	for _, id := range e.order {
		listeners = append(listeners, e.listeners[id])
	}
	for _, id := range c.watching {
		w := c.watchers[id]
		if w.sel.Matches(key) {
			listeners = append(listeners, func(v any, ok bool) { w.fn(key, v, ok) })
		}
	}
	if len(listeners) == 0 {
		return
	}
	c.queue = append(c.queue, notification{listeners: listeners, value: value, ok: ok})
}

// drainLocked delivers queued notifications in order. Only one goroutine
// drains at a time; writes made by listeners join the queue. It releases mu.
func (c *Cache) drainLocked() {
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		n := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		for _, l := range n.listeners {
			l(n.value, n.ok)
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

// Invalidate marks every cached key matched by sel as stale and refetches
// those that are observed. A fetch already under way for a matched key is
// repeated once it returns, since it may have read the server too early.
func (c *Cache) Invalidate(sel Selector) {
	c.mu.Lock()
	var refetch []QueryKey
	for key, e := range c.entries {
		if !sel.Matches(key) {
			continue
		}
		e.missed++
		if !e.has {
			continue
		}
		e.stale = true
		if e.observers > 0 && e.fetcher != nil && !e.fetching {
			refetch = append(refetch, key)
		}
	}
	c.mu.Unlock()

	for _, key := range refetch {
		c.scheduleRefetch(key)
	}
}

// Subscribe registers a listener for key. The returned function removes it
// and may be called more than once.
func (c *Cache) Subscribe(key QueryKey, listener Listener) func() {
	c.mu.Lock()
	e := c.entry(key)
	c.nextID++
	id := c.nextID
	e.listeners[id] = listener
	e.order = append(e.order, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.listeners, id)
			for i, v := range e.order {
				if v == id {
					e.order = append(e.order[:i:i], e.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Watch registers listener for every key matched by sel, including keys
// first written after the call. The returned function removes it and may be
// called more than once.
func (c *Cache) Watch(sel Selector, listener KeyListener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers[id] = watcher{sel: sel, fn: listener}
	c.watching = append(c.watching, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.watchers, id)
			for i, v := range c.watching {
				if v == id {
					c.watching = append(c.watching[:i:i], c.watching[i+1:]...)
					break
				}
			}
		})
	}
}

// Keys returns every key matched by sel that currently holds a value
func (c *Cache) Keys(sel Selector) []QueryKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []QueryKey
	for key, e := range c.entries {
		if e.has && sel.Matches(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Value returns the value for key as a T
func Value[T any](c *Cache, key QueryKey) (T, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
