package scripts

import (
	"context"
	"time"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// tapGap is the spacing of double-tap key presses.
const tapGap = 35 * time.Millisecond

// SelfBuff prefixes ability casts with a resource-conversion item when mana
// runs low. It never consumes the original press; the cast always proceeds.
type SelfBuff struct {
	cfg  config.SelfBuffConfig
	deps Deps

	abilityKeys map[string]bool
	lastFire    time.Time
}

// NewSelfBuff creates a SelfBuff assist.
func NewSelfBuff(cfg config.SelfBuffConfig, deps Deps) *SelfBuff {
	keys := make(map[string]bool, len(cfg.AbilityKeys))
	for _, k := range cfg.AbilityKeys {
		keys[k] = true
	}
	return &SelfBuff{
		cfg:         cfg,
		deps:        deps,
		abilityKeys: keys,
	}
}

// OnTriggerEvent fires the buff item just before a watched ability key when
// mana is low, health is safe and the item is ready. With itemKeys enabled,
// keys bound to occupied inventory slots are watched too, except the buff
// item's own key.
func (s *SelfBuff) OnTriggerEvent(ctx context.Context, ev model.TriggerEvent, st *model.SubjectState) {
	if !s.cfg.Enabled || st == nil || !st.Alive {
		return
	}
	if ev.Kind != model.TriggerKeyDown {
		return
	}
	if !s.abilityKeys[ev.Key] && !s.watchedItemKey(st, ev.Key) {
		return
	}
	if st.ManaPct >= s.cfg.MinManaPct || st.HealthPct < s.cfg.MinHealthPct {
		return
	}
	if ev.Timestamp.Sub(s.lastFire) < msDuration(s.cfg.CooldownMs) {
		return
	}

	slotID, slot, ok := inventorySlotFor(st, s.cfg.Item)
	if !ok || !slot.Ready {
		return
	}
	key, ok := s.deps.Keys.KeyForSlot(slotID)
	if !ok {
		return
	}

	s.lastFire = ev.Timestamp
	if err := s.deps.Runner.Emit(ctx, model.KeyPress(key, "self-buff prefix")); err != nil {
		s.deps.Logger.Warn("Self-buff emission failed", "error", err)
	}
}

// watchedItemKey reports whether key is bound to an occupied inventory slot
// other than the buff item itself.
func (s *SelfBuff) watchedItemKey(st *model.SubjectState, key string) bool {
	if !s.cfg.ItemKeys {
		return false
	}
	for _, slotID := range model.InventorySlotIDs {
		slot, ok := st.Slots[slotID]
		if !ok || slot.Name == "" || slot.Name == s.cfg.Item {
			continue
		}
		if k, bound := s.deps.Keys.KeyForSlot(slotID); bound && k == key {
			return true
		}
	}
	return false
}

// StatToggle guards a toggleable stat item: when health falls under the
// threshold plus a predictive offset, the item is double-tapped so its
// drain briefly stops and restarts, topping the subject up.
type StatToggle struct {
	cfg  config.StatToggleConfig
	deps Deps

	lastToggle time.Time
	lastHealth int
}

// NewStatToggle creates a StatToggle assist.
func NewStatToggle(cfg config.StatToggleConfig, deps Deps) *StatToggle {
	return &StatToggle{
		cfg:  cfg,
		deps: deps,
	}
}

// OnStateUpdate double-taps the item when the subject dips into the guarded
// health band. A cooldown lockout prevents re-triggering off the same dip,
// except when health keeps falling below half the threshold: then only the
// tap spacing itself throttles the re-toggle.
func (s *StatToggle) OnStateUpdate(ctx context.Context, st *model.SubjectState) {
	if !s.cfg.Enabled || !st.Alive {
		return
	}
	falling := s.lastHealth > 0 && st.Health < s.lastHealth
	s.lastHealth = st.Health

	if st.Health > s.cfg.Threshold+s.cfg.PredictiveOffset {
		return
	}
	emergency := falling && st.Health*2 <= s.cfg.Threshold
	lockout := msDuration(s.cfg.CooldownMs)
	if emergency {
		lockout = 2 * tapGap
	}
	if st.Timestamp.Sub(s.lastToggle) < lockout {
		return
	}

	slotID, _, ok := inventorySlotFor(st, s.cfg.Item)
	if !ok {
		return
	}
	key, ok := s.deps.Keys.KeyForSlot(slotID)
	if !ok {
		return
	}

	s.lastToggle = st.Timestamp
	s.deps.Runner.Go(ctx, "stat-toggle", []action.Step{
		{Action: model.KeyPress(key, "stat toggle off")},
		{Delay: tapGap, Action: model.KeyPress(key, "stat toggle on")},
	})
}
