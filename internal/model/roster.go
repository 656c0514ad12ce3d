package model

import (
	"strings"
	"time"
)

// RosterSlug identifies a roster. It doubles as the broadcast topic name.
type RosterSlug string

// Roster is a shared group of players whose gear state is tracked together
type Roster struct {
	Slug      RosterSlug `json:"slug"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ValidateRosterName rejects blank roster names
func ValidateRosterName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "cannot be empty")
	}
	return nil
}
