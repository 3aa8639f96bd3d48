package survival

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

func subjectWith(healthPct int, slots map[string]model.Slot) *model.SubjectState {
	return &model.SubjectState{
		Subject:   "artificer",
		Alive:     true,
		Health:    healthPct * 10,
		MaxHealth: 1000,
		HealthPct: healthPct,
		Slots:     slots,
	}
}

func testPolicyConfig() config.SurvivalConfig {
	return config.SurvivalConfig{
		HealthPct:         35,
		DangerHealthPct:   55,
		HealingPriority:   []string{"item_cheese", "item_magic_wand", "item_enchanted_mango"},
		DefensivePriority: []string{"item_crimson_guard", "item_glimmer_cape"},
		DispelItem:        "item_manta",
	}
}

func TestSelectFirstReady_PriorityOrder(t *testing.T) {
	st := subjectWith(20, map[string]model.Slot{
		"slot0": {Name: "item_enchanted_mango", Ready: true},
		"slot1": {Name: "item_magic_wand", Ready: true},
		"slot2": {Name: "item_cheese", Ready: true},
	})

	slotID, ok := SelectFirstReady(st, []string{"item_cheese", "item_magic_wand", "item_enchanted_mango"})
	require.True(t, ok)
	assert.Equal(t, "slot2", slotID, "highest-priority ready item wins regardless of slot order")
}

func TestSelectFirstReady_SkipsUnready(t *testing.T) {
	st := subjectWith(20, map[string]model.Slot{
		"slot0": {Name: "item_cheese", Ready: false, Cooldown: 12},
		"slot1": {Name: "item_magic_wand", Ready: true},
	})

	slotID, ok := SelectFirstReady(st, []string{"item_cheese", "item_magic_wand"})
	require.True(t, ok)
	assert.Equal(t, "slot1", slotID)
}

func TestSelectFirstReady_LowerPriorityChangeNeverAffectsSelection(t *testing.T) {
	priority := []string{"item_cheese", "item_magic_wand", "item_enchanted_mango"}

	base := map[string]model.Slot{
		"slot0": {Name: "item_cheese", Ready: true},
		"slot1": {Name: "item_enchanted_mango", Ready: false},
	}
	st := subjectWith(20, base)

	slotID, ok := SelectFirstReady(st, priority)
	require.True(t, ok)
	require.Equal(t, "slot0", slotID)

	// flipping only a lower-priority item's availability changes nothing
	st.Slots["slot1"] = model.Slot{Name: "item_enchanted_mango", Ready: true}
	slotID, ok = SelectFirstReady(st, priority)
	require.True(t, ok)
	assert.Equal(t, "slot0", slotID)
}

func TestSelectFirstReady_IgnoresStash(t *testing.T) {
	st := subjectWith(20, map[string]model.Slot{
		"stash0": {Name: "item_cheese", Ready: true},
	})

	_, ok := SelectFirstReady(st, []string{"item_cheese"})
	assert.False(t, ok, "stash items are not usable")
}

func TestSelectFirstReady_NothingReady(t *testing.T) {
	st := subjectWith(20, map[string]model.Slot{
		"slot0": {Name: "empty"},
	})

	_, ok := SelectFirstReady(st, []string{"item_cheese"})
	assert.False(t, ok)
}

func TestSelectHealing_Thresholds(t *testing.T) {
	p := NewPolicy(testPolicyConfig())
	slots := map[string]model.Slot{
		"slot0": {Name: "item_magic_wand", Ready: true},
	}

	// 40% is above the normal threshold but below the danger threshold
	_, ok := p.SelectHealing(subjectWith(40, slots), false)
	assert.False(t, ok)

	slotID, ok := p.SelectHealing(subjectWith(40, slots), true)
	require.True(t, ok)
	assert.Equal(t, "slot0", slotID)

	// 30% heals in both modes
	_, ok = p.SelectHealing(subjectWith(30, slots), false)
	assert.True(t, ok)
}

func TestSelectHealing_DeadSubject(t *testing.T) {
	p := NewPolicy(testPolicyConfig())
	st := subjectWith(10, map[string]model.Slot{
		"slot0": {Name: "item_magic_wand", Ready: true},
	})
	st.Alive = false

	_, ok := p.SelectHealing(st, true)
	assert.False(t, ok)
}

func TestSelectDefensive(t *testing.T) {
	p := NewPolicy(testPolicyConfig())
	st := subjectWith(50, map[string]model.Slot{
		"slot0": {Name: "item_glimmer_cape", Ready: true},
		"slot1": {Name: "item_crimson_guard", Ready: true},
	})

	slotID, ok := p.SelectDefensive(st)
	require.True(t, ok)
	assert.Equal(t, "slot1", slotID)
}

func TestDispelLatch_FiresOncePerSilence(t *testing.T) {
	l := NewDispelLatch("item_manta", 30*time.Millisecond, 100*time.Millisecond)

	silenced := subjectWith(80, map[string]model.Slot{
		"slot0": {Name: "item_manta", Ready: true},
	})
	silenced.Silenced = true

	slotID, delay, ok := l.Evaluate(silenced)
	require.True(t, ok)
	assert.Equal(t, "slot0", slotID)
	assert.GreaterOrEqual(t, delay, 30*time.Millisecond)
	assert.LessOrEqual(t, delay, 100*time.Millisecond)

	// still silenced: latched, no second fire
	_, _, ok = l.Evaluate(silenced)
	assert.False(t, ok)

	// silence ends: latch re-arms
	clear := subjectWith(80, silenced.Slots)
	_, _, ok = l.Evaluate(clear)
	assert.False(t, ok)

	_, _, ok = l.Evaluate(silenced)
	assert.True(t, ok)
}

func TestDispelLatch_RequiresReadyItem(t *testing.T) {
	l := NewDispelLatch("item_manta", 0, 0)

	st := subjectWith(80, map[string]model.Slot{
		"slot0": {Name: "item_manta", Ready: false, Cooldown: 20},
	})
	st.Silenced = true

	_, _, ok := l.Evaluate(st)
	assert.False(t, ok, "item on cooldown must not latch")

	// item comes off cooldown during the same silence: latch still open
	st.Slots["slot0"] = model.Slot{Name: "item_manta", Ready: true}
	_, _, ok = l.Evaluate(st)
	assert.True(t, ok)
}
