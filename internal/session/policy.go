// internal/session/policy.go
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/danger"
	"github.com/d2auto/agent/internal/model"
	"github.com/d2auto/agent/internal/scripts"
	"github.com/d2auto/agent/internal/survival"
)

// survivalPolicy runs the generic survivability handling that applies to
// every class: reactive healing, defensive items, the dispel latch and
// the two trigger assists. The session serializes all calls.
type survivalPolicy struct {
	cfg      config.Config
	runner   *action.Runner
	keys     scripts.KeyMap
	logger   *slog.Logger
	detector *danger.Detector
	now      func() time.Time

	picker     *survival.Policy
	dispel     *survival.DispelLatch
	selfBuff   *scripts.SelfBuff
	statToggle *scripts.StatToggle

	lastHeal    time.Time
	lastDefense time.Time
}

func newSurvivalPolicy(cfg config.Config, deps scripts.Deps, det *danger.Detector, now func() time.Time) *survivalPolicy {
	return &survivalPolicy{
		cfg:      cfg,
		runner:   deps.Runner,
		keys:     deps.Keys,
		logger:   deps.Logger,
		detector: det,
		now:      now,
		picker:   survival.NewPolicy(cfg.Survival),
		dispel: survival.NewDispelLatch(
			cfg.Survival.DispelItem,
			msDuration(cfg.Danger.DispelJitterMsLo),
			msDuration(cfg.Danger.DispelJitterMsHi),
		),
		selfBuff:   scripts.NewSelfBuff(cfg.SelfBuff, deps),
		statToggle: scripts.NewStatToggle(cfg.StatToggle, deps),
	}
}

// onStateUpdate evaluates the reactive policies against an accepted
// state. Caller holds the session lock; everything emitted here is
// either a single enqueue or a runner goroutine.
func (p *survivalPolicy) onStateUpdate(ctx context.Context, st *model.SubjectState) {
	now := p.now()
	inDanger := p.detector.InDanger()

	if slotID, ok := p.picker.SelectHealing(st, inDanger); ok {
		if now.Sub(p.lastHeal) >= itemReuseGap {
			// elevated episodes ration reactive uses; normal low-health
			// healing is not counted against the episode
			if !inDanger || p.detector.ConsumeReactiveUse() {
				p.emitSlot(ctx, slotID, "survival.heal")
				p.lastHeal = now
			}
		}
	}

	if inDanger {
		if slotID, ok := p.picker.SelectDefensive(st); ok && now.Sub(p.lastDefense) >= itemReuseGap {
			p.emitSlot(ctx, slotID, "survival.defense")
			p.lastDefense = now
		}
	}

	if p.cfg.Danger.DispelEnabled {
		if slotID, delay, ok := p.dispel.Evaluate(st); ok {
			if key, found := p.keys.KeyForSlot(slotID); found {
				p.runner.Go(ctx, "survival.dispel", []action.Step{
					{Delay: delay, Action: model.KeyPress(key, "survival.dispel")},
				})
			}
		}
	}

	p.statToggle.OnStateUpdate(ctx, st)
}

// onTriggerEvent runs the trigger-path assists. Assists never consume
// the original input.
func (p *survivalPolicy) onTriggerEvent(ctx context.Context, ev model.TriggerEvent, st *model.SubjectState) {
	p.selfBuff.OnTriggerEvent(ctx, ev, st)
}

func (p *survivalPolicy) emitSlot(ctx context.Context, slotID, reason string) {
	key, ok := p.keys.KeyForSlot(slotID)
	if !ok {
		return
	}
	if err := p.runner.Emit(ctx, model.KeyPress(key, reason)); err != nil {
		p.logger.Warn("Failed to emit survivability action", "reason", reason, "error", err)
	}
}
