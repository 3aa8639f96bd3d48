package scripts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

func selfBuffCfg() config.SelfBuffConfig {
	return config.SelfBuffConfig{
		Enabled:      true,
		Item:         "item_soul_ring",
		MinManaPct:   40,
		MinHealthPct: 30,
		CooldownMs:   800,
		AbilityKeys:  []string{"q", "w", "e"},
	}
}

func selfBuffSlots() map[string]model.Slot {
	return map[string]model.Slot{
		"slot0": {Name: "item_soul_ring", Ready: true},
	}
}

func TestSelfBuff_PrefixesWhenManaLow(t *testing.T) {
	rec := &recorder{}
	sb := NewSelfBuff(selfBuffCfg(), testDeps(rec))
	ctx := context.Background()

	st := stateAt(0, selfBuffSlots())
	st.ManaPct = 20

	sb.OnTriggerEvent(ctx, keyDownAt("q", time.Second), st)

	require.Equal(t, []string{"z"}, rec.keys(), "the item's slot key fires before the cast")
}

func TestSelfBuff_SkipsWhenManaSufficient(t *testing.T) {
	rec := &recorder{}
	sb := NewSelfBuff(selfBuffCfg(), testDeps(rec))

	st := stateAt(0, selfBuffSlots())
	st.ManaPct = 80

	sb.OnTriggerEvent(context.Background(), keyDownAt("q", time.Second), st)
	assert.Zero(t, rec.count())
}

func TestSelfBuff_SkipsWhenHealthUnsafe(t *testing.T) {
	rec := &recorder{}
	sb := NewSelfBuff(selfBuffCfg(), testDeps(rec))

	st := stateAt(0, selfBuffSlots())
	st.ManaPct = 20
	st.HealthPct = 25

	sb.OnTriggerEvent(context.Background(), keyDownAt("q", time.Second), st)
	assert.Zero(t, rec.count(), "converting health while low would be lethal")
}

func TestSelfBuff_CooldownLockout(t *testing.T) {
	rec := &recorder{}
	sb := NewSelfBuff(selfBuffCfg(), testDeps(rec))
	ctx := context.Background()

	st := stateAt(0, selfBuffSlots())
	st.ManaPct = 20

	sb.OnTriggerEvent(ctx, keyDownAt("q", time.Second), st)
	sb.OnTriggerEvent(ctx, keyDownAt("w", time.Second+500*time.Millisecond), st)
	assert.Equal(t, 1, rec.count(), "inside the lockout window")

	sb.OnTriggerEvent(ctx, keyDownAt("w", 2*time.Second), st)
	assert.Equal(t, 2, rec.count())
}

func TestSelfBuff_UnwatchedKeyIgnored(t *testing.T) {
	rec := &recorder{}
	sb := NewSelfBuff(selfBuffCfg(), testDeps(rec))

	st := stateAt(0, selfBuffSlots())
	st.ManaPct = 20

	sb.OnTriggerEvent(context.Background(), keyDownAt("t", time.Second), st)
	assert.Zero(t, rec.count())
}

func TestSelfBuff_ItemKeysWatched(t *testing.T) {
	cfg := selfBuffCfg()
	cfg.ItemKeys = true
	rec := &recorder{}
	sb := NewSelfBuff(cfg, testDeps(rec))

	slots := selfBuffSlots()
	slots["slot1"] = model.Slot{Name: "item_dagon", Ready: true}
	st := stateAt(0, slots)
	st.ManaPct = 20

	// slot1 is bound to "x"; the buff item in slot0 fires first
	sb.OnTriggerEvent(context.Background(), keyDownAt("x", time.Second), st)
	assert.Equal(t, []string{"z"}, rec.keys())
}

func TestSelfBuff_OwnItemKeyNotWatched(t *testing.T) {
	cfg := selfBuffCfg()
	cfg.ItemKeys = true
	rec := &recorder{}
	sb := NewSelfBuff(cfg, testDeps(rec))

	st := stateAt(0, selfBuffSlots())
	st.ManaPct = 20

	// pressing the buff item's own slot key must not prefix it with itself
	sb.OnTriggerEvent(context.Background(), keyDownAt("z", time.Second), st)
	assert.Zero(t, rec.count())
}

func statToggleCfg() config.StatToggleConfig {
	return config.StatToggleConfig{
		Enabled:          true,
		Item:             "item_armlet",
		Threshold:        320,
		PredictiveOffset: 30,
		CooldownMs:       250,
	}
}

func TestStatToggle_DoubleTapsUnderThreshold(t *testing.T) {
	rec := &recorder{}
	st := NewStatToggle(statToggleCfg(), testDeps(rec))
	ctx := context.Background()

	low := stateAt(0, map[string]model.Slot{
		"slot2": {Name: "item_armlet", Ready: true},
	})
	low.Health = 340 // inside threshold + offset

	st.OnStateUpdate(ctx, low)

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"c", "c"}, rec.keys())
}

func TestStatToggle_AboveBandDoesNothing(t *testing.T) {
	rec := &recorder{}
	st := NewStatToggle(statToggleCfg(), testDeps(rec))

	healthy := stateAt(0, map[string]model.Slot{
		"slot2": {Name: "item_armlet", Ready: true},
	})
	healthy.Health = 400

	st.OnStateUpdate(context.Background(), healthy)
	assert.Zero(t, rec.count())
}

func TestStatToggle_CooldownPreventsRetrigger(t *testing.T) {
	rec := &recorder{}
	st := NewStatToggle(statToggleCfg(), testDeps(rec))
	ctx := context.Background()

	slots := map[string]model.Slot{"slot2": {Name: "item_armlet", Ready: true}}

	low := stateAt(0, slots)
	low.Health = 300
	st.OnStateUpdate(ctx, low)

	again := stateAt(100*time.Millisecond, slots)
	again.Health = 290
	st.OnStateUpdate(ctx, again)

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)

	later := stateAt(500*time.Millisecond, slots)
	later.Health = 280
	st.OnStateUpdate(ctx, later)

	assert.Eventually(t, func() bool { return rec.count() == 4 }, time.Second, time.Millisecond)
}

func TestStatToggle_EmergencyBypassesCooldown(t *testing.T) {
	rec := &recorder{}
	st := NewStatToggle(statToggleCfg(), testDeps(rec))
	ctx := context.Background()

	slots := map[string]model.Slot{"slot2": {Name: "item_armlet", Ready: true}}

	// below half the threshold and still falling: the 250ms lockout must
	// not keep the item off while the drain finishes the subject
	first := stateAt(0, slots)
	first.Health = 150
	st.OnStateUpdate(ctx, first)

	second := stateAt(100*time.Millisecond, slots)
	second.Health = 120
	st.OnStateUpdate(ctx, second)

	assert.Eventually(t, func() bool { return rec.count() == 4 }, time.Second, time.Millisecond)
}

func TestStatToggle_EmergencyRequiresFallingHealth(t *testing.T) {
	rec := &recorder{}
	st := NewStatToggle(statToggleCfg(), testDeps(rec))
	ctx := context.Background()

	slots := map[string]model.Slot{"slot2": {Name: "item_armlet", Ready: true}}

	first := stateAt(0, slots)
	first.Health = 150
	st.OnStateUpdate(ctx, first)

	// stable at the same low health: the normal lockout applies
	second := stateAt(100*time.Millisecond, slots)
	second.Health = 150
	st.OnStateUpdate(ctx, second)

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rec.count())
}

func TestStatToggle_NoItemNoAction(t *testing.T) {
	rec := &recorder{}
	st := NewStatToggle(statToggleCfg(), testDeps(rec))

	low := stateAt(0, map[string]model.Slot{})
	low.Health = 300

	st.OnStateUpdate(context.Background(), low)
	assert.Zero(t, rec.count())
}
