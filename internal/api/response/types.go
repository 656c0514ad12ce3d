package response

import "github.com/mcoot/rostersync/internal/model"

// Records are returned in the same JSON shape they take inside broadcast
// events, so a client can store either interchangeably.

// PlayerList is the response for roster player listings
type PlayerList struct {
	Players []model.Player `json:"players"`
}

// Health is the response for the health endpoint
type Health struct {
	Status string `json:"status"`
}
