package scripts

import (
	"context"
	"time"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// Burst is the modifier-held burst script: a pointer click while the
// configured modifier is held fires the ready items and health-gated
// abilities in rapid succession, then replays the click that started it.
type Burst struct {
	cfg  config.BurstConfig
	deps Deps

	held bool
	last *model.SubjectState
}

// NewBurst creates a Burst.
func NewBurst(cfg config.BurstConfig, deps Deps) *Burst {
	return &Burst{
		cfg:  cfg,
		deps: deps,
	}
}

// Class implements combo.Script.
func (b *Burst) Class() string {
	return b.cfg.Class
}

// OnStateUpdate caches the latest subject state for precondition checks.
func (b *Burst) OnStateUpdate(_ context.Context, st *model.SubjectState) {
	b.last = st
}

// OnTriggerEvent tracks the modifier and intercepts the augmented click.
// The interceptor also reports modifier state on the click itself, which
// covers a hold that began before this script was armed.
func (b *Burst) OnTriggerEvent(ctx context.Context, ev model.TriggerEvent) bool {
	switch {
	case ev.Key == b.cfg.Modifier && ev.Kind == model.TriggerKeyDown:
		b.held = true
		return false
	case ev.Key == b.cfg.Modifier && ev.Kind == model.TriggerKeyUp:
		b.held = false
		return false
	}

	if ev.Kind != model.TriggerPointerClick || !(b.held || ev.Modifier) {
		return false
	}
	if b.last == nil || !b.last.Alive {
		return false
	}

	steps := b.buildSteps(ev)
	if len(steps) <= 1 {
		// nothing ready beyond the replayed click, pass through
		return false
	}

	b.deps.Runner.Go(ctx, "burst", steps)
	return true
}

// Reset implements combo.Script.
func (b *Burst) Reset() {
	b.held = false
	b.last = nil
}

func (b *Burst) buildSteps(ev model.TriggerEvent) []action.Step {
	gap := msDuration(b.cfg.StepGapMs)

	items := b.itemSteps(gap)
	abilities := b.abilitySteps(gap)

	var steps []action.Step
	if b.cfg.AbilitiesFirst {
		steps = append(abilities, items...)
	} else {
		steps = append(items, abilities...)
	}

	// replay the intercepted click so the base attack still happens
	steps = append(steps, action.Step{
		Delay:  gap,
		Action: model.Click(ev.Key, ev.Position, "burst replay"),
	})
	return steps
}

func (b *Burst) itemSteps(gap time.Duration) []action.Step {
	var steps []action.Step
	for _, item := range b.cfg.Items {
		slotID, slot, ok := inventorySlotFor(b.last, item)
		if !ok || !slot.Ready {
			continue
		}
		key, ok := b.deps.Keys.KeyForSlot(slotID)
		if !ok {
			continue
		}
		steps = append(steps, action.Step{
			Delay:  gap,
			Action: model.KeyPress(key, "burst item "+item),
		})
	}
	return steps
}

func (b *Burst) abilitySteps(gap time.Duration) []action.Step {
	var steps []action.Step
	for _, ab := range b.cfg.Abilities {
		if ab.Index < 0 || ab.Index >= len(model.AbilitySlotIDs) {
			continue
		}
		slot, ok := b.last.Slots[model.AbilitySlotIDs[ab.Index]]
		if !ok || !slot.Ready || slot.Cooldown > 0 || slot.Level == 0 {
			continue
		}
		// a health gate keeps expensive escapes for when they are needed
		if ab.HealthGatePct > 0 && b.last.HealthPct > ab.HealthGatePct {
			continue
		}
		steps = append(steps, action.Step{
			Delay:  gap,
			Action: model.KeyPress(ab.Key, "burst ability"),
		})
	}
	return steps
}
