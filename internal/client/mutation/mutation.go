// Package mutation applies optimistic writes to the client cache and settles
// them against the server's answer.
package mutation

import (
	"context"
	"sync"

	"github.com/mcoot/rostersync/internal/client/cache"
)

// State is where an attempt is in its lifecycle
type State int

const (
	StateIdle State = iota
	StateOptimisticApplied
	StateSettledSuccess
	StateSettledError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimisticApplied:
		return "optimistic-applied"
	case StateSettledSuccess:
		return "settled-success"
	case StateSettledError:
		return "settled-error"
	default:
		return "unknown"
	}
}

// Optimistic is a predicted change to one key. Update receives the current
// value and returns the new one; ok=false leaves the key untouched.
type Optimistic struct {
	Key    cache.QueryKey
	Update func(prev any, has bool) (next any, ok bool)
}

// Write is a canonical value to store on success
type Write struct {
	Key   cache.QueryKey
	Value any
}

// Mutation describes one intent. Call is issued exactly once.
type Mutation[R any] struct {
	Name       string
	Optimistic []Optimistic
	Call       func(ctx context.Context) (R, error)
	// Adopt maps the server result to the values to store
	Adopt func(result R) []Write
	// Invalidate lists extra keys made stale by a successful call
	Invalidate []cache.Selector
}

type snapshot struct {
	key   cache.QueryKey
	value any
	has   bool
}

// Coordinator tracks in-flight mutations against one cache
type Coordinator struct {
	cache *cache.Cache

	mu      sync.Mutex
	pending map[uint64][]cache.QueryKey
	nextID  uint64
}

// NewCoordinator creates a coordinator for c
func NewCoordinator(c *cache.Cache) *Coordinator {
	return &Coordinator{
		cache:   c,
		pending: make(map[uint64][]cache.QueryKey),
	}
}

// Cache returns the cache the coordinator writes to
func (co *Coordinator) Cache() *cache.Cache {
	return co.cache
}

// Pending returns how many unsettled mutations touch a key matched by sel
func (co *Coordinator) Pending(sel cache.Selector) int {
	co.mu.Lock()
	defer co.mu.Unlock()
	n := 0
	for _, keys := range co.pending {
		for _, k := range keys {
			if sel.Matches(k) {
				n++
				break
			}
		}
	}
	return n
}

func (co *Coordinator) track(keys []cache.QueryKey) uint64 {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.nextID++
	co.pending[co.nextID] = keys
	return co.nextID
}

func (co *Coordinator) untrack(id uint64) {
	co.mu.Lock()
	defer co.mu.Unlock()
	delete(co.pending, id)
}

// Attempt is a started mutation
type Attempt[R any] struct {
	coord     *Coordinator
	m         Mutation[R]
	id        uint64
	snapshots []snapshot

	mu    sync.Mutex
	state State

	once   sync.Once
	result R
	err    error
}

// Start snapshots the affected keys and applies the optimistic values.
// The server call is not made until Await.
func Start[R any](coord *Coordinator, m Mutation[R]) *Attempt[R] {
	a := &Attempt[R]{coord: coord, m: m, state: StateIdle}

	keys := make([]cache.QueryKey, 0, len(m.Optimistic))
	for _, o := range m.Optimistic {
		keys = append(keys, o.Key)
	}
	a.id = coord.track(keys)

	c := coord.cache
	for _, o := range m.Optimistic {
		prev, has := c.Get(o.Key)
		next, ok := o.Update(prev, has)
		if !ok {
			continue
		}
		a.snapshots = append(a.snapshots, snapshot{key: o.Key, value: prev, has: has})
		c.Set(o.Key, next)
	}
	a.setState(StateOptimisticApplied)
	return a
}

// Run starts m and waits for it to settle
func Run[R any](ctx context.Context, coord *Coordinator, m Mutation[R]) (R, error) {
	return Start(coord, m).Await(ctx)
}

// State reports the attempt's current state
func (a *Attempt[R]) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt[R]) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Await issues the server call and settles the cache. Only the first call
// does any work; later calls return the same result. Once issued the call is
// not cancelled by ctx.
func (a *Attempt[R]) Await(ctx context.Context) (R, error) {
	a.once.Do(func() {
		defer a.coord.untrack(a.id)
		a.result, a.err = a.m.Call(context.WithoutCancel(ctx))
		if a.err != nil {
			a.rollback()
			a.setState(StateSettledError)
			return
		}
		a.adopt()
		a.setState(StateSettledSuccess)
	})
	return a.result, a.err
}

func (a *Attempt[R]) rollback() {
	c := a.coord.cache
	for i := len(a.snapshots) - 1; i >= 0; i-- {
		snap := a.snapshots[i]
		if snap.has {
			c.Set(snap.key, snap.value)
		} else {
			c.Remove(snap.key)
		}
	}
}

func (a *Attempt[R]) adopt() {
	c := a.coord.cache
	adopted := make(map[cache.QueryKey]bool)
	if a.m.Adopt != nil {
		for _, w := range a.m.Adopt(a.result) {
			c.Set(w.Key, w.Value)
			adopted[w.Key] = true
		}
	}
	for _, snap := range a.snapshots {
		if !adopted[snap.key] {
			c.Invalidate(snap.key)
		}
	}
	for _, sel := range a.m.Invalidate {
		c.Invalidate(sel)
	}
}
