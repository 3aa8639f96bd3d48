package scripts

import (
	"context"
	"time"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// Micro is the controlled-unit attack macro: a spare pointer button is
// intercepted and replaced with select-units, an attack-click at the cursor
// and a reselect of the subject, so one press sends the whole unit group at
// a target without losing subject control.
type Micro struct {
	cfg  config.MicroConfig
	deps Deps

	last      *model.SubjectState
	busyUntil time.Time
}

// NewMicro creates a Micro.
func NewMicro(cfg config.MicroConfig, deps Deps) *Micro {
	return &Micro{
		cfg:  cfg,
		deps: deps,
	}
}

// Class implements combo.Script.
func (m *Micro) Class() string {
	return m.cfg.Class
}

// OnStateUpdate caches the latest subject state.
func (m *Micro) OnStateUpdate(_ context.Context, st *model.SubjectState) {
	m.last = st
}

// OnTriggerEvent intercepts the trigger button when it carries a pointer
// position. Presses while a macro is in flight pass through unmodified.
func (m *Micro) OnTriggerEvent(ctx context.Context, ev model.TriggerEvent) bool {
	if ev.Kind != model.TriggerPointerClick || ev.Key != m.cfg.TriggerButton {
		return false
	}
	if ev.Position == nil || m.last == nil || !m.last.Alive {
		return false
	}
	if ev.Timestamp.Before(m.busyUntil) {
		return false
	}

	gap := msDuration(m.cfg.StepGapMs)
	m.busyUntil = ev.Timestamp.Add(4 * gap)

	m.deps.Runner.Go(ctx, "micro", []action.Step{
		{Action: model.KeyPress(m.cfg.UnitsKey, "micro select")},
		{Delay: gap, Action: model.KeyPress(m.cfg.AttackKey, "micro attack")},
		{Delay: gap, Action: model.Click("left", ev.Position, "micro target")},
		{Delay: gap, Action: model.KeyPress(m.cfg.ReselectKey, "micro reselect")},
	})
	return true
}

// Reset implements combo.Script.
func (m *Micro) Reset() {
	m.last = nil
	m.busyUntil = time.Time{}
}
