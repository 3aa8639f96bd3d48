package scripts

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/d2auto/agent/internal/beat"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// Rhythm is the beat-scheduler script: while toggled on, it fires the
// selected payload key at a fixed drift-corrected cadence. Payload key
// presses swap which payload plays from the next beat; a dual-cast item in
// the inventory lets the previous payload keep playing as a secondary.
type Rhythm struct {
	cfg  config.RhythmConfig
	deps Deps

	sched          *beat.Scheduler[string]
	keyToPayload   map[string]string
	defaultPayload string

	active  bool
	current string
	last    *model.SubjectState
}

// NewRhythm creates a Rhythm and its scheduler. The scheduler loop still has
// to be started with Scheduler().Run.
func NewRhythm(cfg config.RhythmConfig, deps Deps, opts ...beat.Option[string]) *Rhythm {
	r := &Rhythm{
		cfg:          cfg,
		deps:         deps,
		keyToPayload: make(map[string]string, len(cfg.PayloadKeys)),
	}

	names := make([]string, 0, len(cfg.PayloadKeys))
	for name, key := range cfg.PayloadKeys {
		r.keyToPayload[key] = name
		names = append(names, name)
	}
	// deterministic default payload
	sort.Strings(names)
	if len(names) > 0 {
		r.defaultPayload = names[0]
	}

	r.sched = beat.NewScheduler(beat.Config{
		Interval:        msDuration(cfg.BeatIntervalMs),
		Correction:      msDuration(cfg.CorrectionMs),
		CorrectionEvery: cfg.CorrectionEveryN,
		Poll:            msDuration(cfg.PollIntervalMs),
	}, deps.Logger, r.emitBeat, opts...)

	return r
}

// Scheduler exposes the beat loop so the session can run it for the
// session's lifetime.
func (r *Rhythm) Scheduler() *beat.Scheduler[string] {
	return r.sched
}

// Class implements combo.Script.
func (r *Rhythm) Class() string {
	return r.cfg.Class
}

// OnTriggerEvent follows the player's own key presses: the toggle key
// mirrors the in-game song state, payload keys select what plays on the next
// beat. Nothing is consumed; the original presses still reach the game.
func (r *Rhythm) OnTriggerEvent(_ context.Context, ev model.TriggerEvent) bool {
	if ev.Kind != model.TriggerKeyDown {
		return false
	}

	if ev.Key == r.cfg.ToggleKey {
		if r.active {
			r.deactivate("toggle")
		} else if r.canActivate() {
			r.sched.Arm(r.defaultPayload)
			r.current = r.defaultPayload
			r.active = true
			r.deps.Logger.Info("Rhythm armed", "payload", r.current)
		}
		return false
	}

	if name, ok := r.keyToPayload[ev.Key]; ok && r.active {
		if name != r.current && r.dualCastReady() {
			prev := r.current
			r.sched.SetSecondary(&prev)
		}
		r.sched.Queue(name)
		r.current = name
		return false
	}

	return false
}

// OnStateUpdate keeps the scheduler consistent with the subject: death or a
// drained mana pool stops the beat.
func (r *Rhythm) OnStateUpdate(_ context.Context, st *model.SubjectState) {
	r.last = st

	if !r.active {
		return
	}
	if !st.Alive {
		r.deactivate("death")
		return
	}
	if st.ManaPct < r.cfg.MinManaPct {
		r.deactivate("mana")
		return
	}
	if !r.dualCastReady() {
		r.sched.SetSecondary(nil)
	}
}

// Reset implements combo.Script.
func (r *Rhythm) Reset() {
	if r.active {
		r.deactivate("reset")
	}
	r.last = nil
}

func (r *Rhythm) deactivate(cause string) {
	r.sched.Disarm()
	r.active = false
	r.deps.Logger.Info("Rhythm disarmed", "cause", cause)
}

// canActivate requires the subject to expose the rhythm ability form when a
// hint prefix is configured.
func (r *Rhythm) canActivate() bool {
	if r.last == nil {
		return false
	}
	if r.cfg.ActiveAbilityHint == "" {
		return true
	}
	for _, slotID := range model.AbilitySlotIDs {
		if slot, ok := r.last.Slots[slotID]; ok &&
			strings.HasPrefix(slot.Name, r.cfg.ActiveAbilityHint) {
			return true
		}
	}
	return false
}

func (r *Rhythm) dualCastReady() bool {
	if r.cfg.DualCastItem == "" || r.last == nil {
		return false
	}
	_, _, ok := inventorySlotFor(r.last, r.cfg.DualCastItem)
	return ok
}

// emitBeat runs inside the scheduler's critical section and must not block.
func (r *Rhythm) emitBeat(payload string) {
	key, ok := r.cfg.PayloadKeys[payload]
	if !ok {
		return
	}
	if err := r.deps.Runner.Emit(context.Background(), model.KeyPress(key, "beat "+payload)); err != nil {
		r.deps.Logger.Warn("Beat emission failed", "payload", payload, "error", err)
	}
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
