package scripts

import (
	"context"
	"time"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// Cycler is the toggle-combo script: while active it scans a priority list
// of abilities and items on every update and casts the first ready one. When
// everything is on cooldown it emits a reset action whose side effect is
// verified against a cooldown baseline on the next update; an unchanged
// baseline means the reset channel was interrupted and it is retried.
type Cycler struct {
	cfg  config.CyclerConfig
	deps Deps

	active        bool
	verifyPending bool
	baseline      float64
	resetAt       time.Time
	lastCast      time.Time
}

// NewCycler creates an inactive Cycler.
func NewCycler(cfg config.CyclerConfig, deps Deps) *Cycler {
	return &Cycler{
		cfg:  cfg,
		deps: deps,
	}
}

// Class implements combo.Script.
func (c *Cycler) Class() string {
	return c.cfg.Class
}

// OnTriggerEvent toggles the combo loop. The toggle key is consumed so the
// game never sees it.
func (c *Cycler) OnTriggerEvent(_ context.Context, ev model.TriggerEvent) bool {
	if ev.Kind != model.TriggerKeyDown || ev.Key != c.cfg.ToggleKey {
		return false
	}

	c.active = !c.active
	if !c.active {
		c.clear()
	}
	c.deps.Logger.Info("Cycler toggled", "active", c.active)
	return true
}

// OnStateUpdate advances the combo loop by at most one cast.
func (c *Cycler) OnStateUpdate(ctx context.Context, st *model.SubjectState) {
	if !c.active || !st.Alive {
		return
	}
	now := st.Timestamp

	if c.verifyPending {
		ab, ok := st.AbilityByName(c.cfg.ResetAbility)
		if !ok {
			// no observation to verify against, stay pending
			return
		}
		if ab.Cooldown == c.baseline {
			// reset never took effect
			if c.cfg.RetryOnInterrupt {
				c.deps.Logger.Debug("Reset interrupted, retrying", "baseline", c.baseline)
				c.emitKey(ctx, c.cfg.ResetKey, "reset retry")
				c.resetAt = now
			} else {
				c.deps.Logger.Debug("Reset interrupted, abandoning", "baseline", c.baseline)
				c.verifyPending = false
			}
			return
		}
		c.verifyPending = false
	}

	if now.Sub(c.resetAt) < time.Duration(c.cfg.ResetChannelMs)*time.Millisecond {
		return
	}
	if now.Sub(c.lastCast) < time.Duration(c.cfg.MinCastGapMs)*time.Millisecond {
		return
	}

	for _, name := range c.cfg.Priority {
		if isItem(name) {
			slotID, slot, ok := inventorySlotFor(st, name)
			if !ok || !slot.Ready {
				continue
			}
			key, ok := c.deps.Keys.KeyForSlot(slotID)
			if !ok {
				continue
			}
			c.emitKey(ctx, key, "cycler cast "+name)
			c.lastCast = now
			return
		}
		if st.AbilityReady(name) {
			key, ok := c.cfg.AbilityKeys[name]
			if !ok {
				continue
			}
			c.emitKey(ctx, key, "cycler cast "+name)
			c.lastCast = now
			return
		}
	}

	// everything on cooldown: reset and verify the side effect later
	ab, ok := st.AbilityByName(c.cfg.ResetAbility)
	if !ok {
		return
	}
	c.baseline = ab.Cooldown
	c.verifyPending = true
	c.resetAt = now
	c.emitKey(ctx, c.cfg.ResetKey, "cycler reset")
}

// Reset implements combo.Script.
func (c *Cycler) Reset() {
	c.active = false
	c.clear()
}

func (c *Cycler) clear() {
	c.verifyPending = false
	c.baseline = 0
	c.resetAt = time.Time{}
	c.lastCast = time.Time{}
}

func (c *Cycler) emitKey(ctx context.Context, key, reason string) {
	if err := c.deps.Runner.Emit(ctx, model.KeyPress(key, reason)); err != nil {
		c.deps.Logger.Warn("Cycler emission failed", "key", key, "error", err)
	}
}
