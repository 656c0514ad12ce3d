package sql

import (
	"time"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/storage"
)

// Timestamps come from the injected clock, so gorm's automatic tracking is off.

type rosterRecord struct {
	Slug      string    `gorm:"column:slug;primaryKey;size:64;not null"`
	Name      string    `gorm:"column:name;size:255;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (rosterRecord) TableName() string { return "rosters" }

type playerRecord struct {
	ID         string     `gorm:"column:id;primaryKey;size:64;not null"`
	RosterSlug string     `gorm:"column:roster_slug;size:64;not null;index:idx_players_roster_created,priority:1"`
	Name       string     `gorm:"column:name;size:255;not null"`
	Role       string     `gorm:"column:role;size:16;not null"`
	DeletedAt  *time.Time `gorm:"column:deleted_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime:false;index:idx_players_roster_created,priority:2"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (playerRecord) TableName() string { return "players" }

// gearChoiceRecord keeps one column pair per slot so a partial update
// touches only the columns it names
type gearChoiceRecord struct {
	PlayerID         string    `gorm:"column:player_id;primaryKey;size:64;not null"`
	RosterSlug       string    `gorm:"column:roster_slug;size:64;not null;index"`
	Weapon           string    `gorm:"column:weapon;size:16;not null"`
	WeaponObtained   bool      `gorm:"column:weapon_obtained;not null"`
	Head             string    `gorm:"column:head;size:16;not null"`
	HeadObtained     bool      `gorm:"column:head_obtained;not null"`
	Chest            string    `gorm:"column:chest;size:16;not null"`
	ChestObtained    bool      `gorm:"column:chest_obtained;not null"`
	Hands            string    `gorm:"column:hands;size:16;not null"`
	HandsObtained    bool      `gorm:"column:hands_obtained;not null"`
	Legs             string    `gorm:"column:legs;size:16;not null"`
	LegsObtained     bool      `gorm:"column:legs_obtained;not null"`
	Feet             string    `gorm:"column:feet;size:16;not null"`
	FeetObtained     bool      `gorm:"column:feet_obtained;not null"`
	Earring          string    `gorm:"column:earring;size:16;not null"`
	EarringObtained  bool      `gorm:"column:earring_obtained;not null"`
	Necklace         string    `gorm:"column:necklace;size:16;not null"`
	NecklaceObtained bool      `gorm:"column:necklace_obtained;not null"`
	Bracelet         string    `gorm:"column:bracelet;size:16;not null"`
	BraceletObtained bool      `gorm:"column:bracelet_obtained;not null"`
	Ring1            string    `gorm:"column:ring1;size:16;not null"`
	Ring1Obtained    bool      `gorm:"column:ring1_obtained;not null"`
	Ring2            string    `gorm:"column:ring2;size:16;not null"`
	Ring2Obtained    bool      `gorm:"column:ring2_obtained;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (gearChoiceRecord) TableName() string { return "gear_choices" }

type slotColumns struct {
	source   *string
	obtained *bool
}

// slots returns the record's columns in GearSlotOrder
func (r *gearChoiceRecord) slots() [model.NumGearSlots]slotColumns {
	return [model.NumGearSlots]slotColumns{
		{&r.Weapon, &r.WeaponObtained},
		{&r.Head, &r.HeadObtained},
		{&r.Chest, &r.ChestObtained},
		{&r.Hands, &r.HandsObtained},
		{&r.Legs, &r.LegsObtained},
		{&r.Feet, &r.FeetObtained},
		{&r.Earring, &r.EarringObtained},
		{&r.Necklace, &r.NecklaceObtained},
		{&r.Bracelet, &r.BraceletObtained},
		{&r.Ring1, &r.Ring1Obtained},
		{&r.Ring2, &r.Ring2Obtained},
	}
}

func sourceColumn(slot model.GearSlot) string   { return string(slot) }
func obtainedColumn(slot model.GearSlot) string { return string(slot) + "_obtained" }

// gearColumns lists the columns update writes, plus updated_at
func gearColumns(update model.GearChoiceUpdate) []string {
	cols := make([]string, 0, len(update)*2+1)
	for _, slot := range model.GearSlotOrder {
		su, ok := update[slot]
		if !ok {
			continue
		}
		if su.Source != nil {
			cols = append(cols, sourceColumn(slot))
		}
		if su.Obtained != nil {
			cols = append(cols, obtainedColumn(slot))
		}
	}
	return append(cols, "updated_at")
}

// playerColumns maps a patch onto the columns it writes
func playerColumns(patch storage.PlayerPatch) map[string]any {
	cols := map[string]any{"updated_at": patch.At}
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Role != nil {
		cols["role"] = string(*patch.Role)
	}
	if patch.Deleted != nil {
		if *patch.Deleted {
			cols["deleted_at"] = patch.At
		} else {
			cols["deleted_at"] = nil
		}
	}
	return cols
}

func toRosterRecord(r *model.Roster) rosterRecord {
	return rosterRecord{
		Slug:      string(r.Slug),
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r rosterRecord) toModel() *model.Roster {
	return &model.Roster{
		Slug:      model.RosterSlug(r.Slug),
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toPlayerRecord(p *model.Player) playerRecord {
	return playerRecord{
		ID:         string(p.ID),
		RosterSlug: string(p.RosterSlug),
		Name:       p.Name,
		Role:       string(p.Role),
		DeletedAt:  p.DeletedAt,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (r playerRecord) toModel() model.Player {
	p := model.Player{
		ID:         model.PlayerID(r.ID),
		RosterSlug: model.RosterSlug(r.RosterSlug),
		Name:       r.Name,
		Role:       model.Role(r.Role),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.DeletedAt != nil {
		t := r.DeletedAt.UTC()
		p.DeletedAt = &t
	}
	return p
}

func toGearChoiceRecord(g *model.GearChoice) gearChoiceRecord {
	rec := gearChoiceRecord{
		PlayerID:   string(g.PlayerID),
		RosterSlug: string(g.RosterSlug),
		UpdatedAt:  g.UpdatedAt,
	}
	for i, cols := range rec.slots() {
		*cols.source = string(g.Slots[i].Source)
		*cols.obtained = g.Slots[i].Obtained
	}
	return rec
}

func (r gearChoiceRecord) toModel() *model.GearChoice {
	g := &model.GearChoice{
		PlayerID:   model.PlayerID(r.PlayerID),
		RosterSlug: model.RosterSlug(r.RosterSlug),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	for i, cols := range r.slots() {
		g.Slots[i] = model.GearSlotChoice{
			Source:   model.GearSource(*cols.source),
			Obtained: *cols.obtained,
		}
	}
	return g
}
