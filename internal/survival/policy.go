// Package survival implements the reactive item policy: deterministic
// priority selection of healing and defensive items, evaluated statelessly
// on every subject update.
package survival

import (
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// Policy selects reactive items from fixed priority lists. Selection is a
// pure function of the subject state; the first ready item in priority
// order always wins.
type Policy struct {
	cfg config.SurvivalConfig
}

// NewPolicy creates a Policy.
func NewPolicy(cfg config.SurvivalConfig) *Policy {
	return &Policy{cfg: cfg}
}

// SelectFirstReady returns the inventory slot holding the first item from
// priority that is present and ready. Stash slots never qualify.
func SelectFirstReady(st *model.SubjectState, priority []string) (string, bool) {
	for _, item := range priority {
		for _, slotID := range model.InventorySlotIDs {
			slot, ok := st.Slots[slotID]
			if !ok || slot.Name != item {
				continue
			}
			if slot.Ready {
				return slotID, true
			}
			// item is present but on cooldown; lower priorities still apply
		}
	}
	return "", false
}

// SelectHealing picks a healing item when the subject's health is below the
// active threshold. Danger loosens the threshold.
func (p *Policy) SelectHealing(st *model.SubjectState, inDanger bool) (string, bool) {
	threshold := p.cfg.HealthPct
	if inDanger {
		threshold = p.cfg.DangerHealthPct
	}
	if !st.Alive || st.HealthPct >= threshold {
		return "", false
	}
	return SelectFirstReady(st, p.cfg.HealingPriority)
}

// SelectDefensive picks a defensive item. Callers gate this on the danger
// engine; the policy itself only checks readiness.
func (p *Policy) SelectDefensive(st *model.SubjectState) (string, bool) {
	if !st.Alive {
		return "", false
	}
	return SelectFirstReady(st, p.cfg.DefensivePriority)
}
