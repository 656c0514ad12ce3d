package cache

import (
	"fmt"

	"github.com/mcoot/rostersync/internal/model"
)

// Scope names the kind of record a key addresses
type Scope string

const (
	ScopeRoster           Scope = "roster"
	ScopePlayerList       Scope = "playerList"
	ScopePlayer           Scope = "player"
	ScopePlayerGearChoice Scope = "playerGearChoice"
)

// ActiveFilter narrows a player list key. The zero value means "unset".
type ActiveFilter int8

const (
	ActiveUnset ActiveFilter = iota
	ActiveOnly
	InactiveOnly
)

func (f ActiveFilter) String() string {
	switch f {
	case ActiveOnly:
		return "active"
	case InactiveOnly:
		return "inactive"
	default:
		return "unset"
	}
}

// QueryKey identifies one cached value. Keys are equal iff every field is equal.
type QueryKey struct {
	Scope      Scope
	RosterSlug model.RosterSlug
	PlayerID   model.PlayerID
	Active     ActiveFilter
}

// RosterKey addresses a roster's details
func RosterKey(slug model.RosterSlug) QueryKey {
	return QueryKey{Scope: ScopeRoster, RosterSlug: slug}
}

// PlayerListKey addresses a roster's active or inactive player list
func PlayerListKey(slug model.RosterSlug, active bool) QueryKey {
	filter := ActiveOnly
	if !active {
		filter = InactiveOnly
	}
	return QueryKey{Scope: ScopePlayerList, RosterSlug: slug, Active: filter}
}

// PlayerKey addresses a single player
func PlayerKey(slug model.RosterSlug, id model.PlayerID) QueryKey {
	return QueryKey{Scope: ScopePlayer, RosterSlug: slug, PlayerID: id}
}

// GearChoiceKey addresses a player's gear choice
func GearChoiceKey(slug model.RosterSlug, id model.PlayerID) QueryKey {
	return QueryKey{Scope: ScopePlayerGearChoice, RosterSlug: slug, PlayerID: id}
}

func (k QueryKey) String() string {
	s := fmt.Sprintf("%s/%s", k.Scope, k.RosterSlug)
	if k.PlayerID != "" {
		s += "/" + string(k.PlayerID)
	}
	if k.Active != ActiveUnset {
		s += "?" + k.Active.String()
	}
	return s
}

// Selector chooses a set of keys
type Selector interface {
	Matches(key QueryKey) bool
}

// Matches reports whether key is exactly k
func (k QueryKey) Matches(key QueryKey) bool {
	return k == key
}

// Match is a partial key. Zero-valued fields match anything.
type Match struct {
	Scope      Scope
	RosterSlug model.RosterSlug
	PlayerID   model.PlayerID
	Active     ActiveFilter
}

// Matches reports whether every set field of m equals the same field of key
func (m Match) Matches(key QueryKey) bool {
	if m.Scope != "" && m.Scope != key.Scope {
		return false
	}
	if m.RosterSlug != "" && m.RosterSlug != key.RosterSlug {
		return false
	}
	if m.PlayerID != "" && m.PlayerID != key.PlayerID {
		return false
	}
	if m.Active != ActiveUnset && m.Active != key.Active {
		return false
	}
	return true
}

// PlayerLists selects both player lists of a roster
func PlayerLists(slug model.RosterSlug) Match {
	return Match{Scope: ScopePlayerList, RosterSlug: slug}
}

// Roster selects every key belonging to a roster
func Roster(slug model.RosterSlug) Match {
	return Match{RosterSlug: slug}
}
