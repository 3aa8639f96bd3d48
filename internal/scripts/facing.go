package scripts

import (
	"context"
	"time"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// Facing is the lookahead-facing script: a cast key is intercepted, the
// subject is first turned toward the pointer with a right click, and the
// original cast fires after a configurable delay. The sequence runs on its
// own goroutine so updates and further triggers are never blocked.
type Facing struct {
	cfg  config.FacingConfig
	deps Deps

	castKeys  map[string]bool
	busyUntil time.Time
}

// NewFacing creates a Facing.
func NewFacing(cfg config.FacingConfig, deps Deps) *Facing {
	keys := make(map[string]bool, len(cfg.CastKeys))
	for _, k := range cfg.CastKeys {
		keys[k] = true
	}
	return &Facing{
		cfg:      cfg,
		deps:     deps,
		castKeys: keys,
	}
}

// Class implements combo.Script.
func (f *Facing) Class() string {
	return f.cfg.Class
}

// OnStateUpdate is a no-op; facing reacts to triggers only.
func (f *Facing) OnStateUpdate(_ context.Context, _ *model.SubjectState) {}

// OnTriggerEvent intercepts configured cast keys that carry a pointer
// position. While a sequence is in flight, further casts pass through
// unmodified rather than queue up.
func (f *Facing) OnTriggerEvent(ctx context.Context, ev model.TriggerEvent) bool {
	if ev.Kind != model.TriggerKeyDown || !f.castKeys[ev.Key] || ev.Position == nil {
		return false
	}
	if ev.Timestamp.Before(f.busyUntil) {
		return false
	}

	settle := msDuration(f.cfg.SettleMs)
	castDelay := msDuration(f.cfg.CastDelayMs)
	f.busyUntil = ev.Timestamp.Add(settle + castDelay)

	// the turn click holds the direction modifier so it only rotates the
	// subject instead of issuing a move order
	f.deps.Runner.Go(ctx, "facing", []action.Step{
		{Delay: settle, Action: model.ModifiedClick("right", f.cfg.DirectionModifier, ev.Position, "facing turn")},
		{Delay: castDelay, Action: model.KeyPress(ev.Key, "facing cast")},
	})
	return true
}

// Reset implements combo.Script.
func (f *Facing) Reset() {
	f.busyUntil = time.Time{}
}
