package scripts

import (
	"context"
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

func burstCfg() config.BurstConfig {
	return config.BurstConfig{
		Class:    "titan",
		Enabled:  true,
		Modifier: "space",
		Items:    []string{"item_orchid", "item_nullifier"},
		Abilities: []config.BurstAbility{
			{Key: "w", Index: 1},
			{Key: "e", Index: 2, HealthGatePct: 50},
		},
		StepGapMs: 1,
	}
}

func burstSlots() map[string]model.Slot {
	return map[string]model.Slot{
		"slot0":    {Name: "item_orchid", Ready: true},
		"slot1":    {Name: "item_nullifier", Ready: false, Cooldown: 10},
		"ability1": {Name: "toss", Level: 2, Ready: true},
		"ability2": {Name: "escape", Level: 1, Ready: true},
	}
}

func clickAt(button string, offset time.Duration) model.TriggerEvent {
	pos := geom.XY{X: 640, Y: 360}
	return model.TriggerEvent{
		Kind:      model.TriggerPointerClick,
		Key:       button,
		Position:  &pos,
		Timestamp: scriptEpoch.Add(offset),
	}
}

func TestBurst_FiresReadyStepsThenReplay(t *testing.T) {
	rec := &recorder{}
	b := NewBurst(burstCfg(), testDeps(rec))
	ctx := context.Background()

	b.OnStateUpdate(ctx, stateAt(0, burstSlots()))
	b.OnTriggerEvent(ctx, keyDownAt("space", time.Second))

	consumed := b.OnTriggerEvent(ctx, clickAt("right", time.Second))
	require.True(t, consumed)

	assert.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, time.Millisecond)

	actions := rec.all()
	// orchid's slot key fires, nullifier is on cooldown and skipped;
	// the escape ability is health-gated out at 90%
	assert.Equal(t, "z", actions[0].Key)
	assert.Equal(t, "w", actions[1].Key)
	assert.Equal(t, model.ActionPointerClick, actions[2].Kind)
	assert.Equal(t, "right", actions[2].Key)
}

func TestBurst_HealthGateOpensWhenLow(t *testing.T) {
	rec := &recorder{}
	b := NewBurst(burstCfg(), testDeps(rec))
	ctx := context.Background()

	st := stateAt(0, burstSlots())
	st.HealthPct = 40
	b.OnStateUpdate(ctx, st)
	b.OnTriggerEvent(ctx, keyDownAt("space", time.Second))
	require.True(t, b.OnTriggerEvent(ctx, clickAt("right", time.Second)))

	assert.Eventually(t, func() bool { return rec.count() == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"z", "w", "e", "right"}, rec.keys())
}

func TestBurst_ReportedModifierIntercepts(t *testing.T) {
	rec := &recorder{}
	b := NewBurst(burstCfg(), testDeps(rec))
	ctx := context.Background()

	b.OnStateUpdate(ctx, stateAt(0, burstSlots()))

	// no keydown was ever seen; the interceptor reports the held state on
	// the click itself
	ev := clickAt("left", 0)
	ev.Modifier = true
	require.True(t, b.OnTriggerEvent(ctx, ev))

	assert.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, time.Millisecond)
}

func TestBurst_NoModifierPassesThrough(t *testing.T) {
	rec := &recorder{}
	b := NewBurst(burstCfg(), testDeps(rec))
	ctx := context.Background()

	b.OnStateUpdate(ctx, stateAt(0, burstSlots()))
	assert.False(t, b.OnTriggerEvent(ctx, clickAt("right", time.Second)))
	assert.Zero(t, rec.count())
}

func TestBurst_ModifierReleaseStopsInterception(t *testing.T) {
	rec := &recorder{}
	b := NewBurst(burstCfg(), testDeps(rec))
	ctx := context.Background()

	b.OnStateUpdate(ctx, stateAt(0, burstSlots()))
	b.OnTriggerEvent(ctx, keyDownAt("space", time.Second))

	up := keyDownAt("space", 2*time.Second)
	up.Kind = model.TriggerKeyUp
	b.OnTriggerEvent(ctx, up)

	assert.False(t, b.OnTriggerEvent(ctx, clickAt("right", 3*time.Second)))
}

func TestBurst_NothingReadyPassesThrough(t *testing.T) {
	rec := &recorder{}
	b := NewBurst(burstCfg(), testDeps(rec))
	ctx := context.Background()

	st := stateAt(0, map[string]model.Slot{
		"slot0":    {Name: "item_orchid", Ready: false, Cooldown: 5},
		"ability1": {Name: "toss", Level: 0, Ready: false},
	})
	b.OnStateUpdate(ctx, st)
	b.OnTriggerEvent(ctx, keyDownAt("space", time.Second))

	assert.False(t, b.OnTriggerEvent(ctx, clickAt("right", time.Second)),
		"a burst with no steps is a plain click")
	assert.Zero(t, rec.count())
}

func TestBurst_DeadSubjectPassesThrough(t *testing.T) {
	rec := &recorder{}
	b := NewBurst(burstCfg(), testDeps(rec))
	ctx := context.Background()

	st := stateAt(0, burstSlots())
	st.Alive = false
	b.OnStateUpdate(ctx, st)
	b.OnTriggerEvent(ctx, keyDownAt("space", time.Second))

	assert.False(t, b.OnTriggerEvent(ctx, clickAt("right", time.Second)))
}
