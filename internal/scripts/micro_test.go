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

func microCfg() config.MicroConfig {
	return config.MicroConfig{
		Class:         "matriarch",
		Enabled:       true,
		TriggerButton: "mouse4",
		UnitsKey:      "f2",
		AttackKey:     "a",
		ReselectKey:   "f1",
		StepGapMs:     1,
	}
}

func microClickAt(offset time.Duration) model.TriggerEvent {
	pos := geom.XY{X: 800, Y: 450}
	return model.TriggerEvent{
		Kind:      model.TriggerPointerClick,
		Key:       "mouse4",
		Position:  &pos,
		Timestamp: scriptEpoch.Add(offset),
	}
}

func TestMicro_SelectsAttacksReselects(t *testing.T) {
	rec := &recorder{}
	m := NewMicro(microCfg(), testDeps(rec))
	ctx := context.Background()

	m.OnStateUpdate(ctx, stateAt(0, nil))
	require.True(t, m.OnTriggerEvent(ctx, microClickAt(0)))

	assert.Eventually(t, func() bool { return rec.count() == 4 }, time.Second, time.Millisecond)

	actions := rec.all()
	assert.Equal(t, "f2", actions[0].Key)
	assert.Equal(t, "a", actions[1].Key)
	assert.Equal(t, model.ActionPointerClick, actions[2].Kind)
	require.NotNil(t, actions[2].Pos)
	assert.Equal(t, 800.0, actions[2].Pos.X)
	assert.Equal(t, "f1", actions[3].Key, "control returns to the subject")
}

func TestMicro_OtherButtonPassesThrough(t *testing.T) {
	rec := &recorder{}
	m := NewMicro(microCfg(), testDeps(rec))
	ctx := context.Background()

	m.OnStateUpdate(ctx, stateAt(0, nil))
	ev := microClickAt(0)
	ev.Key = "left"

	assert.False(t, m.OnTriggerEvent(ctx, ev))
	assert.Zero(t, rec.count())
}

func TestMicro_NoPositionPassesThrough(t *testing.T) {
	rec := &recorder{}
	m := NewMicro(microCfg(), testDeps(rec))
	ctx := context.Background()

	m.OnStateUpdate(ctx, stateAt(0, nil))
	ev := microClickAt(0)
	ev.Position = nil

	assert.False(t, m.OnTriggerEvent(ctx, ev))
}

func TestMicro_DeadSubjectPassesThrough(t *testing.T) {
	rec := &recorder{}
	m := NewMicro(microCfg(), testDeps(rec))
	ctx := context.Background()

	st := stateAt(0, nil)
	st.Alive = false
	m.OnStateUpdate(ctx, st)

	assert.False(t, m.OnTriggerEvent(ctx, microClickAt(0)))
}

func TestMicro_BusyPassesThrough(t *testing.T) {
	rec := &recorder{}
	m := NewMicro(microCfg(), testDeps(rec))
	ctx := context.Background()

	m.OnStateUpdate(ctx, stateAt(0, nil))
	require.True(t, m.OnTriggerEvent(ctx, microClickAt(0)))
	assert.False(t, m.OnTriggerEvent(ctx, microClickAt(time.Millisecond)),
		"presses while the macro is in flight pass through")
}
