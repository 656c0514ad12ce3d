package storage

import (
	"sort"

	"github.com/mcoot/rostersync/internal/model"
)

// SortPlayers orders players by creation time, then id
func SortPlayers(players []model.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		if !players[i].CreatedAt.Equal(players[j].CreatedAt) {
			return players[i].CreatedAt.Before(players[j].CreatedAt)
		}
		return players[i].ID < players[j].ID
	})
}
