package mutation

import (
	"github.com/mcoot/rostersync/internal/model"
)

// MergePlayer shallow-merges update into a cached player
func MergePlayer(update model.PlayerUpdate) func(any, bool) (any, bool) {
	return func(prev any, has bool) (any, bool) {
		p, ok := prev.(model.Player)
		if !has || !ok {
			return nil, false
		}
		return p.Merge(update), true
	}
}

// MergeGear shallow-merges update into a cached gear choice
func MergeGear(update model.GearChoiceUpdate) func(any, bool) (any, bool) {
	return func(prev any, has bool) (any, bool) {
		g, ok := prev.(model.GearChoice)
		if !has || !ok {
			return nil, false
		}
		return g.Merge(update), true
	}
}

// RemovePlayer drops a player from a cached player list
func RemovePlayer(id model.PlayerID) func(any, bool) (any, bool) {
	return func(prev any, has bool) (any, bool) {
		players, ok := prev.([]model.Player)
		if !has || !ok {
			return nil, false
		}
		return model.WithoutPlayer(players, id), true
	}
}

// Replace sets a key to value whether or not it had one
func Replace(value any) func(any, bool) (any, bool) {
	return func(any, bool) (any, bool) {
		return value, true
	}
}

// UpdateInList shallow-merges update into one player of a cached list
func UpdateInList(id model.PlayerID, update model.PlayerUpdate) func(any, bool) (any, bool) {
	return func(prev any, has bool) (any, bool) {
		players, ok := prev.([]model.Player)
		if !has || !ok {
			return nil, false
		}
		next := make([]model.Player, len(players))
		found := false
		for i, p := range players {
			if p.ID == id {
				p = p.Merge(update)
				found = true
			}
			next[i] = p
		}
		return next, found
	}
}

// Reactivate clears DeletedAt on a cached player
func Reactivate(prev any, has bool) (any, bool) {
	p, ok := prev.(model.Player)
	if !has || !ok {
		return nil, false
	}
	p.DeletedAt = nil
	return p, true
}
