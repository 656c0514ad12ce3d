package session

import (
	"context"
	"sync"

	"github.com/mcoot/rostersync/internal/client/cache"
	"github.com/mcoot/rostersync/internal/model"
)

// View is an open handle on one roster. Every key it loads stays observed,
// and so refetched on invalidation, until Close.
type View struct {
	session *Session
	slug    model.RosterSlug

	mu        sync.Mutex
	observers []*cache.Observer
	closed    bool
	once      sync.Once
}

// Slug returns the roster this view is open on
func (v *View) Slug() model.RosterSlug {
	return v.slug
}

// load fetches key now unless it is cached and fresh, then observes it
func (v *View) load(ctx context.Context, key cache.QueryKey, fetcher cache.Fetcher) error {
	c := v.session.cache
	if _, ok := c.Get(key); !ok || c.IsStale(key) {
		if _, err := c.Fetch(ctx, key, fetcher); err != nil {
			return err
		}
	}

	obs := c.Observe(key, fetcher)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		obs.Close()
		return nil
	}
	v.observers = append(v.observers, obs)
	return nil
}

// Close releases the view. Calling it more than once is a no-op.
func (v *View) Close() {
	v.once.Do(func() {
		v.mu.Lock()
		v.closed = true
		observers := v.observers
		v.observers = nil
		v.mu.Unlock()

		for _, obs := range observers {
			obs.Close()
		}
		v.session.release(v.slug)
	})
}

// Roster returns the cached roster details
func (v *View) Roster() (model.Roster, bool) {
	return cache.Value[model.Roster](v.session.cache, cache.RosterKey(v.slug))
}

// Players returns the cached active player list. Each row shows the
// player's own cached record when that is at least as recent as the list,
// so single-player events show up without a list refetch.
func (v *View) Players() ([]model.Player, bool) {
	return v.players(true)
}

// InactivePlayers returns the cached soft-deleted player list
func (v *View) InactivePlayers() ([]model.Player, bool) {
	return v.players(false)
}

func (v *View) players(active bool) ([]model.Player, bool) {
	c := v.session.cache
	list, ok := cache.Value[[]model.Player](c, cache.PlayerListKey(v.slug, active))
	if !ok {
		return nil, false
	}
	out := make([]model.Player, 0, len(list))
	for _, row := range list {
		key := cache.PlayerKey(v.slug, row.ID)
		if latest, ok := cache.Value[model.Player](c, key); ok && !c.IsStale(key) && !latest.UpdatedAt.Before(row.UpdatedAt) {
			// the player has moved to the other list since this one was fetched
			if latest.IsActive() != active {
				continue
			}
			row = latest
		}
		out = append(out, row)
	}
	return out, true
}

// Player returns a cached player
func (v *View) Player(id model.PlayerID) (model.Player, bool) {
	return cache.Value[model.Player](v.session.cache, cache.PlayerKey(v.slug, id))
}

// Gear returns a player's cached gear choice
func (v *View) Gear(id model.PlayerID) (model.GearChoice, bool) {
	return cache.Value[model.GearChoice](v.session.cache, cache.GearChoiceKey(v.slug, id))
}

// LoadInactive loads and observes the soft-deleted player list
func (v *View) LoadInactive(ctx context.Context) ([]model.Player, error) {
	key := cache.PlayerListKey(v.slug, false)
	if err := v.load(ctx, key, v.session.fetchPlayers(v.slug, false)); err != nil {
		return nil, err
	}
	players, _ := v.InactivePlayers()
	return players, nil
}

// LoadPlayer loads and observes one player
func (v *View) LoadPlayer(ctx context.Context, id model.PlayerID) (model.Player, error) {
	if err := v.load(ctx, cache.PlayerKey(v.slug, id), v.session.fetchPlayer(id)); err != nil {
		return model.Player{}, err
	}
	p, _ := v.Player(id)
	return p, nil
}

// LoadGear loads and observes a player's gear choice, creating the default
// one on the server if needed
func (v *View) LoadGear(ctx context.Context, id model.PlayerID) (model.GearChoice, error) {
	if err := v.load(ctx, cache.GearChoiceKey(v.slug, id), v.session.fetchGear(id)); err != nil {
		return model.GearChoice{}, err
	}
	g, _ := v.Gear(id)
	return g, nil
}

// Subscribe calls onChange whenever the roster details, either player
// list, or any player of the roster change
func (v *View) Subscribe(onChange func()) func() {
	c := v.session.cache
	listener := func(any, bool) { onChange() }
	unsubs := []func(){
		c.Subscribe(cache.RosterKey(v.slug), listener),
		c.Subscribe(cache.PlayerListKey(v.slug, true), listener),
		c.Subscribe(cache.PlayerListKey(v.slug, false), listener),
		c.Watch(cache.Match{Scope: cache.ScopePlayer, RosterSlug: v.slug}, func(cache.QueryKey, any, bool) { onChange() }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Pending reports unsettled mutations on this roster
func (v *View) Pending() int {
	return v.session.Pending(cache.Roster(v.slug))
}
