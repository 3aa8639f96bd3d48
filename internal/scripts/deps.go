// Package scripts contains the class-bound automation state machines and the
// always-on trigger assists. Every script implements combo.Script; the
// session coordinator serializes all calls into them.
package scripts

import (
	"log/slog"
	"strings"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// KeyMap resolves a slot identifier to its bound key. *config.Config
// satisfies this.
type KeyMap interface {
	KeyForSlot(slotID string) (string, bool)
}

// Deps carries the collaborators every script needs.
type Deps struct {
	Runner *action.Runner
	Keys   KeyMap
	Screen config.ScreenConfig
	Logger *slog.Logger
}

// isItem reports whether a priority entry names an item rather than an
// ability.
func isItem(name string) bool {
	return strings.HasPrefix(name, "item_")
}

// inventorySlotFor returns the inventory slot currently holding item.
func inventorySlotFor(st *model.SubjectState, item string) (string, model.Slot, bool) {
	for _, slotID := range model.InventorySlotIDs {
		if slot, ok := st.Slots[slotID]; ok && slot.Name == item {
			return slotID, slot, true
		}
	}
	return "", model.Slot{}, false
}

// emptyStashSlots returns the stash slots with no item, in fixed order.
func emptyStashSlots(st *model.SubjectState) []string {
	var free []string
	for _, slotID := range model.StashSlotIDs {
		if slot, ok := st.Slots[slotID]; ok && slot.Name == model.EmptySlot {
			free = append(free, slotID)
		}
	}
	return free
}
