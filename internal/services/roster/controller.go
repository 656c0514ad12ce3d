package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/dependencies/clock"
	"github.com/mcoot/rostersync/internal/dependencies/ids"
	"github.com/mcoot/rostersync/internal/dependencies/random"
	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/storage"
)

const (
	// SlugLength is the length of generated roster slugs
	SlugLength = 8

	// maxSlugAttempts bounds the search for an unused slug
	maxSlugAttempts = 10
)

// Controller is the only writer of roster records. Every successful write
// publishes exactly one event on the roster's topic; failed writes publish
// nothing.
type Controller struct {
	storage   storage.Storage
	publisher broadcast.Publisher
	clock     clock.Clock
	random    random.Random
	ids       ids.Provider
	logger    *slog.Logger
}

// NewController creates a new roster Controller
func NewController(
	storage storage.Storage,
	publisher broadcast.Publisher,
	clock clock.Clock,
	random random.Random,
	ids ids.Provider,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:   storage,
		publisher: publisher,
		clock:     clock,
		random:    random,
		ids:       ids,
		logger:    logger.With(slog.String("component", "roster-controller")),
	}
}

// CreateRoster creates a roster under a freshly generated slug.
// Nobody can be subscribed to a new slug, so no event is published.
func (c *Controller) CreateRoster(ctx context.Context, name string) (*model.Roster, error) {
	if err := model.ValidateRosterName(name); err != nil {
		return nil, err
	}

	slug, err := c.newSlug(ctx)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	roster := &model.Roster{
		Slug:      slug,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.storage.SaveRoster(ctx, roster); err != nil {
		return nil, err
	}

	c.logger.Info("roster created", slog.String("roster", string(slug)))
	return roster, nil
}

func (c *Controller) newSlug(ctx context.Context) (model.RosterSlug, error) {
	for i := 0; i < maxSlugAttempts; i++ {
		slug := model.RosterSlug(c.random.String(SlugLength, random.SlugAlphabet))
		if slug == "" {
			continue
		}
		exists, err := c.storage.RosterExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
	}
	return "", fmt.Errorf("no free roster slug after %d attempts", maxSlugAttempts)
}

// GetRoster retrieves a roster by slug
func (c *Controller) GetRoster(ctx context.Context, slug model.RosterSlug) (*model.Roster, error) {
	return c.storage.GetRoster(ctx, slug)
}

// UpdateRoster renames a roster
func (c *Controller) UpdateRoster(ctx context.Context, slug model.RosterSlug, name string) (*model.Roster, error) {
	if err := model.ValidateRosterName(name); err != nil {
		return nil, err
	}

	roster, err := c.storage.GetRoster(ctx, slug)
	if err != nil {
		return nil, err
	}

	roster.Name = name
	roster.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRoster(ctx, roster); err != nil {
		return nil, err
	}

	c.publish(ctx, model.RosterUpdated{Roster: *roster})
	return roster, nil
}

// ListPlayers returns the active or soft-deleted players of a roster
func (c *Controller) ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error) {
	exists, err := c.storage.RosterExists(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrRosterNotFound
	}
	return c.storage.ListPlayers(ctx, slug, active)
}

// CreatePlayer adds a new active player to a roster
func (c *Controller) CreatePlayer(ctx context.Context, slug model.RosterSlug, name string, role model.Role) (*model.Player, error) {
	if err := model.ValidatePlayerName(name); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, model.NewValidationError("role", "unknown role "+string(role))
	}

	roster, err := c.storage.GetRoster(ctx, slug)
	if err != nil {
		return nil, err
	}

	id, err := c.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate player id: %w", err)
	}

	now := c.clock.Now()
	player := &model.Player{
		ID:         model.PlayerID(id),
		RosterSlug: slug,
		Name:       name,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	c.publish(ctx, model.RosterUpdated{Roster: *roster})
	return player, nil
}

// GetPlayer retrieves a player by id, active or not
func (c *Controller) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return c.storage.GetPlayer(ctx, id)
}

// UpdatePlayer applies a partial update to a player
func (c *Controller) UpdatePlayer(ctx context.Context, id model.PlayerID, update model.PlayerUpdate) (*model.Player, error) {
	if update.IsEmpty() {
		return nil, model.NewValidationError("", "no changes")
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	updated, err := c.storage.UpdatePlayer(ctx, id, storage.PatchFromUpdate(update, c.clock.Now()))
	if err != nil {
		return nil, err
	}

	c.publish(ctx, model.PlayerUpdated{Player: *updated})
	return updated, nil
}

// SoftDeletePlayer marks a player inactive
func (c *Controller) SoftDeletePlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	player, err := c.storage.UpdatePlayer(ctx, id, storage.SoftDelete(c.clock.Now()))
	if err != nil {
		return nil, err
	}

	c.publish(ctx, model.PlayerDeleted{RosterSlug: player.RosterSlug, Player: *player})
	return player, nil
}

// ActivatePlayer restores a soft-deleted player
func (c *Controller) ActivatePlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	player, err := c.storage.UpdatePlayer(ctx, id, storage.Restore(c.clock.Now()))
	if err != nil {
		return nil, err
	}

	c.publish(ctx, model.PlayerActivated{RosterSlug: player.RosterSlug, Player: *player})
	return player, nil
}

// GetOrCreateGearChoice returns the player's gear choice, creating the
// default one on first access
func (c *Controller) GetOrCreateGearChoice(ctx context.Context, id model.PlayerID) (*model.GearChoice, error) {
	player, err := c.storage.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.storage.CreateGearChoiceIfAbsent(ctx, c.defaultGear(player))
}

// UpdateGearChoice applies a partial update to a player's gear choice
func (c *Controller) UpdateGearChoice(ctx context.Context, id model.PlayerID, update model.GearChoiceUpdate) (*model.GearChoice, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	player, err := c.storage.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}

	// Seeds the default choice when this is the player's first update
	updated, err := c.storage.UpdateGearChoice(ctx, c.defaultGear(player), update)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, model.PlayerGearChoiceUpdated{GearChoice: *updated})
	return updated, nil
}

func (c *Controller) defaultGear(player *model.Player) *model.GearChoice {
	return &model.GearChoice{
		PlayerID:   player.ID,
		RosterSlug: player.RosterSlug,
		Slots:      model.DefaultGearSlots(),
		UpdatedAt:  c.clock.Now(),
	}
}

func (c *Controller) publish(ctx context.Context, event model.Event) {
	c.logger.Debug("publishing event",
		slog.String("event", string(event.Type())),
		slog.String("roster", string(event.Topic())))
	c.publisher.Publish(ctx, event)
}
