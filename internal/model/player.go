package model

import (
	"strings"
	"time"
)

// PlayerID uniquely identifies a player across all rosters
type PlayerID string

// Role is the combat role a player fills in the roster
type Role string

const (
	RoleTank   Role = "Tank"
	RoleHealer Role = "Healer"
	RoleDPS    Role = "DPS"
)

// Roles lists every valid role in display order
var Roles = []Role{RoleTank, RoleHealer, RoleDPS}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Player is a member of exactly one roster
type Player struct {
	ID         PlayerID   `json:"id"`
	RosterSlug RosterSlug `json:"rosterSlug"`
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	DeletedAt  *time.Time `json:"deletedAt"` // nil while active
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// IsActive reports whether the player has not been soft-deleted
func (p Player) IsActive() bool {
	return p.DeletedAt == nil
}

// PlayerUpdate is a partial update; nil fields are left untouched
type PlayerUpdate struct {
	Name *string `json:"name,omitempty"`
	Role *Role   `json:"role,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u PlayerUpdate) IsEmpty() bool {
	return u.Name == nil && u.Role == nil
}

// Validate checks the fields that are set
func (u PlayerUpdate) Validate() error {
	if u.Name != nil {
		if err := ValidatePlayerName(*u.Name); err != nil {
			return err
		}
	}
	if u.Role != nil && !u.Role.Valid() {
		return NewValidationError("role", "unknown role "+string(*u.Role))
	}
	return nil
}

// Merge returns a copy of p with the set fields of u applied
func (p Player) Merge(u PlayerUpdate) Player {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Role != nil {
		p.Role = *u.Role
	}
	return p
}

// ValidatePlayerName rejects blank names
func ValidatePlayerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "cannot be empty")
	}
	return nil
}

// WithoutPlayer returns a new slice with the given player removed
func WithoutPlayer(players []Player, id PlayerID) []Player {
	result := make([]Player, 0, len(players))
	for _, p := range players {
		if p.ID != id {
			result = append(result, p)
		}
	}
	return result
}
