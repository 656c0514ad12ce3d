package xivgear

import "github.com/mcoot/rostersync/internal/model"

// slotNames maps xivgear's item slots to ours
var slotNames = map[string]model.GearSlot{
	"Weapon":    model.SlotWeapon,
	"Head":      model.SlotHead,
	"Body":      model.SlotChest,
	"Hand":      model.SlotHands,
	"Legs":      model.SlotLegs,
	"Feet":      model.SlotFeet,
	"Ears":      model.SlotEarring,
	"Neck":      model.SlotNecklace,
	"Wrist":     model.SlotBracelet,
	"RingLeft":  model.SlotRing1,
	"RingRight": model.SlotRing2,
}

// SourceFor maps an acquisition source to where the piece is planned from.
// Anything that is neither savage nor augmented tome gear counts as crafted.
func SourceFor(acquisition string) model.GearSource {
	switch acquisition {
	case "SavageRaid":
		return model.SourceRaid
	case "AugTome":
		return model.SourceTome
	default:
		return model.SourceCrafted
	}
}

// MapGearChoice turns a set into a source update. Slots the set leaves empty
// are not touched; obtained flags are never changed.
func MapGearChoice(set *Set, sources map[int]string) model.GearChoiceUpdate {
	update := model.GearChoiceUpdate{}
	for name, item := range set.Items {
		slot, ok := slotNames[name]
		if !ok || item.ID == 0 {
			continue
		}
		update.SetSource(slot, SourceFor(sources[item.ID]))
	}
	return update
}
