package request

import "github.com/mcoot/rostersync/internal/model"

// CreateRosterRequest is the request body for creating a roster
type CreateRosterRequest struct {
	Name string `json:"name"`
}

// UpdateRosterRequest is the request body for renaming a roster
type UpdateRosterRequest struct {
	Name string `json:"name"`
}

// CreatePlayerRequest is the request body for adding a player
type CreatePlayerRequest struct {
	Name string     `json:"name"`
	Role model.Role `json:"role"`
}

// UpdatePlayerRequest is the request body for a partial player update
type UpdatePlayerRequest = model.PlayerUpdate

// UpdateGearRequest is the request body for a partial gear update,
// e.g. {"weapon": "Tome", "ringObtained": true}
type UpdateGearRequest = model.GearChoiceUpdate
