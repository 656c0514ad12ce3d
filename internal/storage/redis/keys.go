package redis

import (
	"fmt"

	"github.com/mcoot/rostersync/internal/model"
)

// Key prefix for all roster data
const keyPrefix = "rostersync"

// rosterKey returns the Redis key for a Roster
func rosterKey(slug model.RosterSlug) string {
	return fmt.Sprintf("%s:roster:%s", keyPrefix, slug)
}

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// rosterPlayersIndexKey returns the Redis key for the SET of player ids in a roster
func rosterPlayersIndexKey(slug model.RosterSlug) string {
	return fmt.Sprintf("%s:idx:roster_players:%s", keyPrefix, slug)
}

// gearKey returns the Redis key for a player's GearChoice
func gearKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:gear:%s", keyPrefix, playerID)
}
