package storage

import (
	"context"

	"github.com/mcoot/rostersync/internal/model"
)

// Storage defines the record store. Each call writes or reads one record
// atomically; callers own the returned values.
type Storage interface {
	// Roster operations
	SaveRoster(ctx context.Context, roster *model.Roster) error
	GetRoster(ctx context.Context, slug model.RosterSlug) (*model.Roster, error)
	RosterExists(ctx context.Context, slug model.RosterSlug) (bool, error)

	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	// UpdatePlayer applies patch to the stored player in one atomic write and
	// returns the player as written. Fields the patch leaves nil are kept.
	UpdatePlayer(ctx context.Context, id model.PlayerID, patch PlayerPatch) (*model.Player, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	// ListPlayers returns the roster's players in creation order, filtered
	// to active (not soft-deleted) or inactive players.
	ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error)

	// Gear choice operations
	GetGearChoice(ctx context.Context, playerID model.PlayerID) (*model.GearChoice, error)
	// CreateGearChoiceIfAbsent inserts gear unless a choice already exists for
	// the player, and returns whichever choice is stored afterwards.
	CreateGearChoiceIfAbsent(ctx context.Context, gear *model.GearChoice) (*model.GearChoice, error)
	// UpdateGearChoice applies update to the player's stored choice in one
	// atomic write, seeding it from initial when the player has none yet.
	// Slots the update does not name are kept. The result carries
	// initial.UpdatedAt.
	UpdateGearChoice(ctx context.Context, initial *model.GearChoice, update model.GearChoiceUpdate) (*model.GearChoice, error)
}
