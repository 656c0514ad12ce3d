package storage

import (
	"time"

	"github.com/mcoot/rostersync/internal/model"
)

// PlayerPatch names the player fields one write changes. Nil fields keep
// whatever is stored at the moment the write applies.
type PlayerPatch struct {
	Name    *string
	Role    *model.Role
	Deleted *bool
	// At stamps UpdatedAt, and DeletedAt when Deleted is true
	At time.Time
}

// PatchFromUpdate builds the patch for a client PlayerUpdate
func PatchFromUpdate(u model.PlayerUpdate, at time.Time) PlayerPatch {
	return PlayerPatch{Name: u.Name, Role: u.Role, At: at}
}

// SoftDelete returns the patch that marks a player deleted at at
func SoftDelete(at time.Time) PlayerPatch {
	deleted := true
	return PlayerPatch{Deleted: &deleted, At: at}
}

// Restore returns the patch that clears a player's deletion
func Restore(at time.Time) PlayerPatch {
	deleted := false
	return PlayerPatch{Deleted: &deleted, At: at}
}

// Apply writes the patch onto p
func (pp PlayerPatch) Apply(p *model.Player) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Role != nil {
		p.Role = *pp.Role
	}
	if pp.Deleted != nil {
		if *pp.Deleted {
			at := pp.At
			p.DeletedAt = &at
		} else {
			p.DeletedAt = nil
		}
	}
	p.UpdatedAt = pp.At
}
