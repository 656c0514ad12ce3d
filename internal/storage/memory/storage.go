package memory

import (
	"context"
	"sync"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Records are stored by value so callers never share memory with the store.
type Storage struct {
	mu sync.RWMutex

	rosters       map[model.RosterSlug]model.Roster
	players       map[model.PlayerID]model.Player
	rosterPlayers map[model.RosterSlug][]model.PlayerID
	gear          map[model.PlayerID]model.GearChoice
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		rosters:       make(map[model.RosterSlug]model.Roster),
		players:       make(map[model.PlayerID]model.Player),
		rosterPlayers: make(map[model.RosterSlug][]model.PlayerID),
		gear:          make(map[model.PlayerID]model.GearChoice),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Roster operations

func (s *Storage) SaveRoster(ctx context.Context, roster *model.Roster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[roster.Slug] = *roster
	return nil
}

func (s *Storage) GetRoster(ctx context.Context, slug model.RosterSlug) (*model.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roster, ok := s.rosters[slug]
	if !ok {
		return nil, model.ErrRosterNotFound
	}
	return &roster, nil
}

func (s *Storage) RosterExists(ctx context.Context, slug model.RosterSlug) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rosters[slug]
	return ok, nil
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.players[player.ID]; !exists {
		s.rosterPlayers[player.RosterSlug] = append(s.rosterPlayers[player.RosterSlug], player.ID)
	}
	s.players[player.ID] = *player
	return nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, patch storage.PlayerPatch) (*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	patch.Apply(&player)
	s.players[id] = player
	return &player, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.Player, 0, len(s.rosterPlayers[slug]))
	for _, id := range s.rosterPlayers[slug] {
		p := s.players[id]
		if p.IsActive() == active {
			result = append(result, p)
		}
	}
	storage.SortPlayers(result)
	return result, nil
}

// Gear choice operations

func (s *Storage) GetGearChoice(ctx context.Context, playerID model.PlayerID) (*model.GearChoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gear, ok := s.gear[playerID]
	if !ok {
		return nil, model.ErrGearChoiceNotFound
	}
	return &gear, nil
}

func (s *Storage) CreateGearChoiceIfAbsent(ctx context.Context, gear *model.GearChoice) (*model.GearChoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.gear[gear.PlayerID]
	if !ok {
		existing = *gear
		s.gear[gear.PlayerID] = existing
	}
	return &existing, nil
}

func (s *Storage) UpdateGearChoice(ctx context.Context, initial *model.GearChoice, update model.GearChoiceUpdate) (*model.GearChoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.gear[initial.PlayerID]
	if !ok {
		current = *initial
	}
	updated := current.Merge(update)
	updated.UpdatedAt = initial.UpdatedAt
	s.gear[initial.PlayerID] = updated
	return &updated, nil
}
