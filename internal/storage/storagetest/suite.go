// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/storage"
)

// Suite runs the same checks against any Storage. Backends embed it and
// set Storage in their own SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func (s *Suite) roster(slug model.RosterSlug) *model.Roster {
	return &model.Roster{Slug: slug, Name: "Static " + string(slug), CreatedAt: base, UpdatedAt: base}
}

func (s *Suite) player(id model.PlayerID, slug model.RosterSlug, offset time.Duration) *model.Player {
	return &model.Player{
		ID:         id,
		RosterSlug: slug,
		Name:       "Player " + string(id),
		Role:       model.RoleDPS,
		CreatedAt:  base.Add(offset),
		UpdatedAt:  base.Add(offset),
	}
}

// Roster tests

func (s *Suite) TestSaveAndGetRoster() {
	s.Require().NoError(s.Storage.SaveRoster(s.Ctx, s.roster("abc")))

	got, err := s.Storage.GetRoster(s.Ctx, "abc")
	s.Require().NoError(err)
	s.Equal(model.RosterSlug("abc"), got.Slug)
	s.Equal("Static abc", got.Name)
	s.True(base.Equal(got.CreatedAt))
}

func (s *Suite) TestGetRosterNotFound() {
	_, err := s.Storage.GetRoster(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrRosterNotFound)
}

func (s *Suite) TestSaveRosterOverwrites() {
	r := s.roster("abc")
	s.Require().NoError(s.Storage.SaveRoster(s.Ctx, r))
	r.Name = "Renamed"
	s.Require().NoError(s.Storage.SaveRoster(s.Ctx, r))

	got, err := s.Storage.GetRoster(s.Ctx, "abc")
	s.Require().NoError(err)
	s.Equal("Renamed", got.Name)
}

func (s *Suite) TestRosterExists() {
	exists, err := s.Storage.RosterExists(s.Ctx, "abc")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.Storage.SaveRoster(s.Ctx, s.roster("abc")))

	exists, err = s.Storage.RosterExists(s.Ctx, "abc")
	s.Require().NoError(err)
	s.True(exists)
}

// Player tests

func (s *Suite) TestSaveAndGetPlayer() {
	p := s.player("p1", "abc", 0)
	p.Role = model.RoleTank
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, p))

	got, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal(p.RosterSlug, got.RosterSlug)
	s.Equal(p.Name, got.Name)
	s.Equal(model.RoleTank, got.Role)
	s.Nil(got.DeletedAt)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestReturnedPlayerIsACopy() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("p1", "abc", 0)))

	got, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	got.Name = "mutated"

	again, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Player p1", again.Name)
}

func (s *Suite) TestListPlayersFiltersByActive() {
	deleted := base.Add(time.Hour)
	p1 := s.player("p1", "abc", 0)
	p2 := s.player("p2", "abc", time.Minute)
	p2.DeletedAt = &deleted
	p3 := s.player("p3", "abc", 2*time.Minute)
	other := s.player("p4", "xyz", 0)

	for _, p := range []*model.Player{p3, p2, p1, other} {
		s.Require().NoError(s.Storage.SavePlayer(s.Ctx, p))
	}

	active, err := s.Storage.ListPlayers(s.Ctx, "abc", true)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(model.PlayerID("p1"), active[0].ID)
	s.Equal(model.PlayerID("p3"), active[1].ID)

	inactive, err := s.Storage.ListPlayers(s.Ctx, "abc", false)
	s.Require().NoError(err)
	s.Require().Len(inactive, 1)
	s.Equal(model.PlayerID("p2"), inactive[0].ID)
	s.Require().NotNil(inactive[0].DeletedAt)
	s.True(deleted.Equal(*inactive[0].DeletedAt))
}

func (s *Suite) TestListPlayersEmptyRoster() {
	players, err := s.Storage.ListPlayers(s.Ctx, "empty", true)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *Suite) TestSoftDeleteAndRestoreMovesBetweenLists() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("p1", "abc", 0)))

	deletedAt := base.Add(time.Hour)
	deleted, err := s.Storage.UpdatePlayer(s.Ctx, "p1", storage.SoftDelete(deletedAt))
	s.Require().NoError(err)
	s.Require().NotNil(deleted.DeletedAt)
	s.True(deletedAt.Equal(*deleted.DeletedAt))

	active, err := s.Storage.ListPlayers(s.Ctx, "abc", true)
	s.Require().NoError(err)
	s.Empty(active)

	restored, err := s.Storage.UpdatePlayer(s.Ctx, "p1", storage.Restore(base.Add(2*time.Hour)))
	s.Require().NoError(err)
	s.Nil(restored.DeletedAt)

	active, err = s.Storage.ListPlayers(s.Ctx, "abc", true)
	s.Require().NoError(err)
	s.Len(active, 1)
}

func (s *Suite) TestUpdatePlayerKeepsUnpatchedFields() {
	p := s.player("p1", "abc", 0)
	p.Role = model.RoleTank
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, p))

	name := "MainTank"
	at := base.Add(time.Minute)
	got, err := s.Storage.UpdatePlayer(s.Ctx, "p1", storage.PlayerPatch{Name: &name, At: at})
	s.Require().NoError(err)
	s.Equal("MainTank", got.Name)
	s.Equal(model.RoleTank, got.Role)
	s.True(at.Equal(got.UpdatedAt))
	s.True(base.Equal(got.CreatedAt))

	stored, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal("MainTank", stored.Name)
	s.Equal(model.RoleTank, stored.Role)
}

func (s *Suite) TestUpdatePlayerNotFound() {
	name := "x"
	_, err := s.Storage.UpdatePlayer(s.Ctx, "missing", storage.PlayerPatch{Name: &name, At: base})
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestConcurrentPlayerPatchesAllLand() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("p1", "abc", 0)))

	name := "Renamed"
	role := model.RoleHealer
	patches := []storage.PlayerPatch{
		{Name: &name, At: base.Add(time.Minute)},
		{Role: &role, At: base.Add(time.Minute)},
		storage.SoftDelete(base.Add(time.Minute)),
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(patches)*10)
	for round := 0; round < 10; round++ {
		for _, patch := range patches {
			wg.Add(1)
			go func(patch storage.PlayerPatch) {
				defer wg.Done()
				_, err := s.Storage.UpdatePlayer(s.Ctx, "p1", patch)
				errs <- err
			}(patch)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Renamed", got.Name)
	s.Equal(model.RoleHealer, got.Role)
	s.NotNil(got.DeletedAt, "a concurrent rename must not undo the delete")
}

// Gear choice tests

func (s *Suite) TestGetGearChoiceNotFound() {
	_, err := s.Storage.GetGearChoice(s.Ctx, "p1")
	s.ErrorIs(err, model.ErrGearChoiceNotFound)
}

func (s *Suite) TestCreateGearChoiceIfAbsentKeepsExisting() {
	first := &model.GearChoice{PlayerID: "p1", RosterSlug: "abc", Slots: model.DefaultGearSlots(), UpdatedAt: base}
	first.Slots[model.SlotWeapon.Index()].Obtained = true

	got, err := s.Storage.CreateGearChoiceIfAbsent(s.Ctx, first)
	s.Require().NoError(err)
	s.True(got.Slot(model.SlotWeapon).Obtained)

	second := &model.GearChoice{PlayerID: "p1", RosterSlug: "abc", Slots: model.DefaultGearSlots(), UpdatedAt: base}
	got, err = s.Storage.CreateGearChoiceIfAbsent(s.Ctx, second)
	s.Require().NoError(err)
	s.True(got.Slot(model.SlotWeapon).Obtained, "existing choice must win")
}

func (s *Suite) gear(playerID model.PlayerID) *model.GearChoice {
	return &model.GearChoice{PlayerID: playerID, RosterSlug: "abc", Slots: model.DefaultGearSlots(), UpdatedAt: base}
}

func (s *Suite) TestUpdateGearChoiceSeedsAbsentChoice() {
	update := model.GearChoiceUpdate{}.
		SetSource(model.SlotRing2, model.SourceTome).
		SetObtained(model.SlotRing2, true)

	got, err := s.Storage.UpdateGearChoice(s.Ctx, s.gear("p1"), update)
	s.Require().NoError(err)
	s.Equal(model.GearSlotChoice{Source: model.SourceTome, Obtained: true}, got.Slot(model.SlotRing2))
	s.Equal(model.GearSlotChoice{Source: model.SourceRaid}, got.Slot(model.SlotWeapon))
	s.Equal(model.RosterSlug("abc"), got.RosterSlug)

	stored, err := s.Storage.GetGearChoice(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(got.Slots, stored.Slots)
}

func (s *Suite) TestUpdateGearChoiceKeepsOtherSlots() {
	first := model.GearChoiceUpdate{}.SetObtained(model.SlotWeapon, true)
	_, err := s.Storage.UpdateGearChoice(s.Ctx, s.gear("p1"), first)
	s.Require().NoError(err)

	later := s.gear("p1")
	later.UpdatedAt = base.Add(time.Minute)
	second := model.GearChoiceUpdate{}.SetSource(model.SlotHead, model.SourceCrafted)
	got, err := s.Storage.UpdateGearChoice(s.Ctx, later, second)
	s.Require().NoError(err)

	s.True(got.Slot(model.SlotWeapon).Obtained, "seed must not overwrite a stored choice")
	s.Equal(model.SourceCrafted, got.Slot(model.SlotHead).Source)
	s.True(later.UpdatedAt.Equal(got.UpdatedAt))
}

func (s *Suite) TestConcurrentGearUpdatesKeepEverySlot() {
	var wg sync.WaitGroup
	errs := make(chan error, model.NumGearSlots)
	for _, slot := range model.GearSlotOrder {
		wg.Add(1)
		go func(slot model.GearSlot) {
			defer wg.Done()
			_, err := s.Storage.UpdateGearChoice(s.Ctx, s.gear("p1"), model.GearChoiceUpdate{}.SetObtained(slot, true))
			errs <- err
		}(slot)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got, err := s.Storage.GetGearChoice(s.Ctx, "p1")
	s.Require().NoError(err)
	for _, slot := range model.GearSlotOrder {
		s.True(got.Slot(slot).Obtained, "slot %s lost", slot)
	}
}
