package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// GearSlot is one of the fixed equipment slots tracked per player
type GearSlot string

const (
	SlotWeapon   GearSlot = "weapon"
	SlotHead     GearSlot = "head"
	SlotChest    GearSlot = "chest"
	SlotHands    GearSlot = "hands"
	SlotLegs     GearSlot = "legs"
	SlotFeet     GearSlot = "feet"
	SlotEarring  GearSlot = "earring"
	SlotNecklace GearSlot = "necklace"
	SlotBracelet GearSlot = "bracelet"
	SlotRing1    GearSlot = "ring1"
	SlotRing2    GearSlot = "ring2"
)

// NumGearSlots is the number of equipment slots on a gear choice
const NumGearSlots = 11

// GearSlotOrder lists the slots in display order; index i backs GearSlots[i]
var GearSlotOrder = [NumGearSlots]GearSlot{
	SlotWeapon, SlotHead, SlotChest, SlotHands, SlotLegs, SlotFeet,
	SlotEarring, SlotNecklace, SlotBracelet, SlotRing1, SlotRing2,
}

// Index returns the position of the slot in GearSlotOrder, or -1
func (s GearSlot) Index() int {
	for i, slot := range GearSlotOrder {
		if slot == s {
			return i
		}
	}
	return -1
}

// GearSource is where a player intends to obtain a piece of gear
type GearSource string

const (
	SourceRaid    GearSource = "Raid"
	SourceTome    GearSource = "Tome"
	SourceCrafted GearSource = "Crafted"
)

// GearSources lists every valid source
var GearSources = []GearSource{SourceRaid, SourceTome, SourceCrafted}

// Valid reports whether s is a known source
func (s GearSource) Valid() bool {
	for _, known := range GearSources {
		if s == known {
			return true
		}
	}
	return false
}

// GearSlotChoice is the selection for a single slot
type GearSlotChoice struct {
	Source   GearSource `json:"source"`
	Obtained bool       `json:"obtained"`
}

// GearSlots holds one choice per slot, indexed by GearSlotOrder.
// It is an array so copying a GearChoice copies every slot.
type GearSlots [NumGearSlots]GearSlotChoice

// DefaultGearSlots returns every slot set to Raid and not obtained
func DefaultGearSlots() GearSlots {
	var slots GearSlots
	for i := range slots {
		slots[i] = GearSlotChoice{Source: SourceRaid}
	}
	return slots
}

// MarshalJSON encodes the slots as an object keyed by slot name
func (s GearSlots) MarshalJSON() ([]byte, error) {
	m := make(map[GearSlot]GearSlotChoice, NumGearSlots)
	for i, slot := range GearSlotOrder {
		m[slot] = s[i]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by slot name
func (s *GearSlots) UnmarshalJSON(data []byte) error {
	var m map[GearSlot]GearSlotChoice
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for slot, choice := range m {
		idx := slot.Index()
		if idx < 0 {
			return fmt.Errorf("unknown gear slot %q", slot)
		}
		s[idx] = choice
	}
	return nil
}

// GearChoice is the per-player gear plan. It exists only alongside its player.
type GearChoice struct {
	PlayerID   PlayerID
	RosterSlug RosterSlug
	Slots      GearSlots
	UpdatedAt  time.Time
}

// Slot returns the choice for a slot
func (g GearChoice) Slot(slot GearSlot) GearSlotChoice {
	idx := slot.Index()
	if idx < 0 {
		return GearSlotChoice{}
	}
	return g.Slots[idx]
}

// gearChoiceWire is the flat JSON shape: "weapon", "weaponObtained", ...
type gearChoiceWire map[string]any

// MarshalJSON encodes the gear choice with one source and one obtained field per slot
func (g GearChoice) MarshalJSON() ([]byte, error) {
	wire := gearChoiceWire{
		"playerId":   g.PlayerID,
		"rosterSlug": g.RosterSlug,
		"updatedAt":  g.UpdatedAt,
	}
	for i, slot := range GearSlotOrder {
		wire[string(slot)] = g.Slots[i].Source
		wire[string(slot)+"Obtained"] = g.Slots[i].Obtained
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the flat JSON shape
func (g *GearChoice) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out GearChoice
	if v, ok := raw["playerId"]; ok {
		if err := json.Unmarshal(v, &out.PlayerID); err != nil {
			return err
		}
	}
	if v, ok := raw["rosterSlug"]; ok {
		if err := json.Unmarshal(v, &out.RosterSlug); err != nil {
			return err
		}
	}
	if v, ok := raw["updatedAt"]; ok {
		if err := json.Unmarshal(v, &out.UpdatedAt); err != nil {
			return err
		}
	}
	for i, slot := range GearSlotOrder {
		if v, ok := raw[string(slot)]; ok {
			if err := json.Unmarshal(v, &out.Slots[i].Source); err != nil {
				return err
			}
		}
		if v, ok := raw[string(slot)+"Obtained"]; ok {
			if err := json.Unmarshal(v, &out.Slots[i].Obtained); err != nil {
				return err
			}
		}
	}
	*g = out
	return nil
}

// GearSlotUpdate is a partial update to one slot
type GearSlotUpdate struct {
	Source   *GearSource
	Obtained *bool
}

// GearChoiceUpdate is a partial update keyed by slot
type GearChoiceUpdate map[GearSlot]GearSlotUpdate

// SetSource records a source change for slot
func (u GearChoiceUpdate) SetSource(slot GearSlot, source GearSource) GearChoiceUpdate {
	su := u[slot]
	su.Source = &source
	u[slot] = su
	return u
}

// SetObtained records an obtained change for slot
func (u GearChoiceUpdate) SetObtained(slot GearSlot, obtained bool) GearChoiceUpdate {
	su := u[slot]
	su.Obtained = &obtained
	u[slot] = su
	return u
}

// Validate rejects unknown slots and sources
func (u GearChoiceUpdate) Validate() error {
	if len(u) == 0 {
		return NewValidationError("gear", "no changes")
	}
	for slot, su := range u {
		if slot.Index() < 0 {
			return NewValidationError(string(slot), "unknown gear slot")
		}
		if su.Source != nil && !su.Source.Valid() {
			return NewValidationError(string(slot), "unknown gear source "+string(*su.Source))
		}
	}
	return nil
}

// Merge returns a copy of g with the update applied
func (g GearChoice) Merge(u GearChoiceUpdate) GearChoice {
	for slot, su := range u {
		idx := slot.Index()
		if idx < 0 {
			continue
		}
		if su.Source != nil {
			g.Slots[idx].Source = *su.Source
		}
		if su.Obtained != nil {
			g.Slots[idx].Obtained = *su.Obtained
		}
	}
	return g
}

// MarshalJSON encodes the update in the same flat shape as GearChoice
func (u GearChoiceUpdate) MarshalJSON() ([]byte, error) {
	wire := make(map[string]any, len(u)*2)
	for slot, su := range u {
		if su.Source != nil {
			wire[string(slot)] = *su.Source
		}
		if su.Obtained != nil {
			wire[string(slot)+"Obtained"] = *su.Obtained
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the flat update shape
func (u *GearChoiceUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := GearChoiceUpdate{}
	for key, v := range raw {
		slot, obtained := parseGearField(key)
		if obtained {
			var b bool
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			out.SetObtained(slot, b)
			continue
		}
		var src GearSource
		if err := json.Unmarshal(v, &src); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out.SetSource(slot, src)
	}
	*u = out
	return nil
}

func parseGearField(key string) (GearSlot, bool) {
	const suffix = "Obtained"
	if len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix {
		return GearSlot(key[:len(key)-len(suffix)]), true
	}
	return GearSlot(key), false
}
