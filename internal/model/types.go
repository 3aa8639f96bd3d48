// Package model holds the plain domain types shared across the automation
// runtime. These are deliberately free of storage or transport concerns;
// internal/storage converts them to persistable records.
package model

import (
	"strings"
	"time"

	"github.com/peterstace/simplefeatures/geom"
)

// Slot describes one named ability or item slot of the tracked subject.
type Slot struct {
	Name     string  `json:"name"`
	Ready    bool    `json:"ready"`
	Cooldown float64 `json:"cooldown"` // seconds remaining, 0 when ready
	Charges  int     `json:"charges"`
	Level    int     `json:"level"`
	Passive  bool    `json:"passive"`
}

// SubjectState is one normalized snapshot of the tracked subject.
// Slots is keyed by slot identifier ("slot0".."slot5", "neutral0",
// "stash0".."stash5", "ability0".."ability5").
type SubjectState struct {
	Subject   string          `json:"subject"` // unit identity
	Class     string          `json:"class"`   // subject class, selects the combo script
	Alive     bool            `json:"alive"`
	Health    int             `json:"health"`
	MaxHealth int             `json:"maxHealth"`
	HealthPct int             `json:"healthPct"` // 0-100
	Mana      int             `json:"mana"`
	MaxMana   int             `json:"maxMana"`
	ManaPct   int             `json:"manaPct"` // 0-100
	Stunned   bool            `json:"stunned"`
	Silenced  bool            `json:"silenced"`
	GameTime  int             `json:"gameTime"` // seconds on the game clock
	Position  geom.XY         `json:"position"` // map units
	Slots     map[string]Slot `json:"slots"`
	Timestamp time.Time       `json:"timestamp"`
}

// EmptySlot is the occupant name the game reports for vacant slots.
const EmptySlot = "empty"

// InventorySlotIDs are the carried-item slots, in priority-scan order.
var InventorySlotIDs = []string{"slot0", "slot1", "slot2", "slot3", "slot4", "slot5", "neutral0"}

// StashSlotIDs are the stash slots reachable by drag operations.
var StashSlotIDs = []string{"stash0", "stash1", "stash2", "stash3", "stash4", "stash5"}

// AbilitySlotIDs are the subject's ability slots.
var AbilitySlotIDs = []string{"ability0", "ability1", "ability2", "ability3", "ability4", "ability5"}

// FindSlot returns the first inventory slot whose occupant name contains
// name, scanning carried slots in order before the neutral slot.
func (s *SubjectState) FindSlot(name string) (string, Slot, bool) {
	for _, id := range InventorySlotIDs {
		slot, ok := s.Slots[id]
		if ok && slot.Name != "" && slot.Name != EmptySlot && strings.Contains(slot.Name, name) {
			return id, slot, true
		}
	}
	return "", Slot{}, false
}

// SlotReady reports whether the named occupant is present and castable.
func (s *SubjectState) SlotReady(name string) bool {
	_, slot, ok := s.FindSlot(name)
	return ok && slot.Ready && slot.Cooldown == 0
}

// AbilityByName scans ability slots for the named ability.
func (s *SubjectState) AbilityByName(name string) (Slot, bool) {
	for _, id := range AbilitySlotIDs {
		if slot, ok := s.Slots[id]; ok && slot.Name == name {
			return slot, true
		}
	}
	return Slot{}, false
}

// AbilityReady reports whether the named ability is leveled and castable.
func (s *SubjectState) AbilityReady(name string) bool {
	slot, ok := s.AbilityByName(name)
	return ok && slot.Ready && slot.Cooldown == 0 && slot.Level > 0
}
