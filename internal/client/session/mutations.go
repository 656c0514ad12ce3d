package session

import (
	"context"

	"github.com/mcoot/rostersync/internal/client/cache"
	"github.com/mcoot/rostersync/internal/client/mutation"
	"github.com/mcoot/rostersync/internal/model"
)

// Every edit returns a started attempt: the optimistic values are already in
// the cache, and Await issues the server call and settles them.

// Rename changes the roster's name
func (v *View) Rename(name string) *mutation.Attempt[*model.Roster] {
	key := cache.RosterKey(v.slug)
	return mutation.Start(v.session.coord, mutation.Mutation[*model.Roster]{
		Name: "updateRoster",
		Optimistic: []mutation.Optimistic{{
			Key: key,
			Update: func(prev any, has bool) (any, bool) {
				r, ok := prev.(model.Roster)
				if !has || !ok {
					return nil, false
				}
				r.Name = name
				return r, true
			},
		}},
		Call: func(ctx context.Context) (*model.Roster, error) {
			return v.session.gateway.UpdateRoster(ctx, v.slug, name)
		},
		Adopt: func(r *model.Roster) []mutation.Write {
			return []mutation.Write{{Key: key, Value: *r}}
		},
	})
}

// CreatePlayer adds a player. The id is assigned by the server, so nothing
// is predicted; on success the player is cached and the lists refetched.
func (v *View) CreatePlayer(name string, role model.Role) *mutation.Attempt[*model.Player] {
	return mutation.Start(v.session.coord, mutation.Mutation[*model.Player]{
		Name: "createPlayer",
		Call: func(ctx context.Context) (*model.Player, error) {
			return v.session.gateway.CreatePlayer(ctx, v.slug, name, role)
		},
		Adopt: func(p *model.Player) []mutation.Write {
			return []mutation.Write{{Key: cache.PlayerKey(v.slug, p.ID), Value: *p}}
		},
		Invalidate: []cache.Selector{cache.PlayerLists(v.slug)},
	})
}

// UpdatePlayer applies a partial update to a player
func (v *View) UpdatePlayer(id model.PlayerID, update model.PlayerUpdate) *mutation.Attempt[*model.Player] {
	key := cache.PlayerKey(v.slug, id)
	return mutation.Start(v.session.coord, mutation.Mutation[*model.Player]{
		Name: "updatePlayer",
		Optimistic: []mutation.Optimistic{
			{Key: key, Update: mutation.MergePlayer(update)},
			{Key: cache.PlayerListKey(v.slug, true), Update: mutation.UpdateInList(id, update)},
		},
		Call: func(ctx context.Context) (*model.Player, error) {
			return v.session.gateway.UpdatePlayer(ctx, id, update)
		},
		Adopt: func(p *model.Player) []mutation.Write {
			return []mutation.Write{{Key: key, Value: *p}}
		},
	})
}

// DeletePlayer soft-deletes a player, dropping it from the active list
// straight away
func (v *View) DeletePlayer(id model.PlayerID) *mutation.Attempt[*model.Player] {
	return mutation.Start(v.session.coord, mutation.Mutation[*model.Player]{
		Name: "softDeletePlayer",
		Optimistic: []mutation.Optimistic{
			{Key: cache.PlayerListKey(v.slug, true), Update: mutation.RemovePlayer(id)},
		},
		Call: func(ctx context.Context) (*model.Player, error) {
			return v.session.gateway.SoftDeletePlayer(ctx, id)
		},
		Adopt: func(p *model.Player) []mutation.Write {
			return []mutation.Write{{Key: cache.PlayerKey(v.slug, id), Value: *p}}
		},
		Invalidate: []cache.Selector{cache.PlayerListKey(v.slug, false)},
	})
}

// ActivatePlayer restores a soft-deleted player, dropping it from the
// inactive list straight away
func (v *View) ActivatePlayer(id model.PlayerID) *mutation.Attempt[*model.Player] {
	key := cache.PlayerKey(v.slug, id)
	return mutation.Start(v.session.coord, mutation.Mutation[*model.Player]{
		Name: "activatePlayer",
		Optimistic: []mutation.Optimistic{
			{Key: cache.PlayerListKey(v.slug, false), Update: mutation.RemovePlayer(id)},
			{Key: key, Update: mutation.Reactivate},
		},
		Call: func(ctx context.Context) (*model.Player, error) {
			return v.session.gateway.ActivatePlayer(ctx, id)
		},
		Adopt: func(p *model.Player) []mutation.Write {
			return []mutation.Write{{Key: key, Value: *p}}
		},
		Invalidate: []cache.Selector{cache.PlayerListKey(v.slug, true)},
	})
}

// UpdateGear applies a partial update to a player's gear choice
func (v *View) UpdateGear(id model.PlayerID, update model.GearChoiceUpdate) *mutation.Attempt[*model.GearChoice] {
	key := cache.GearChoiceKey(v.slug, id)
	return mutation.Start(v.session.coord, mutation.Mutation[*model.GearChoice]{
		Name:       "updateGearChoice",
		Optimistic: []mutation.Optimistic{{Key: key, Update: mutation.MergeGear(update)}},
		Call: func(ctx context.Context) (*model.GearChoice, error) {
			return v.session.gateway.UpdateGearChoice(ctx, id, update)
		},
		Adopt: func(g *model.GearChoice) []mutation.Write {
			return []mutation.Write{{Key: key, Value: *g}}
		},
	})
}

// ImportGear replaces the gear sources with those of an external set. The
// link is resolved inside the call, so nothing is predicted.
func (v *View) ImportGear(id model.PlayerID, rawURL string) *mutation.Attempt[*model.GearChoice] {
	key := cache.GearChoiceKey(v.slug, id)
	return mutation.Start(v.session.coord, mutation.Mutation[*model.GearChoice]{
		Name: "importGear",
		Call: func(ctx context.Context) (*model.GearChoice, error) {
			if v.session.importer == nil {
				return nil, ErrNoImporter
			}
			update, err := v.session.importer.Import(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			return v.session.gateway.UpdateGearChoice(ctx, id, update)
		},
		Adopt: func(g *model.GearChoice) []mutation.Write {
			return []mutation.Write{{Key: key, Value: *g}}
		},
	})
}
