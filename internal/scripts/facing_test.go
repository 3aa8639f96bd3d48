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

func facingCfg() config.FacingConfig {
	return config.FacingConfig{
		Class:             "reaper",
		Enabled:           true,
		CastKeys:          []string{"q", "w", "e"},
		DirectionModifier: "alt",
		SettleMs:          5,
		CastDelayMs:       10,
	}
}

func castAt(key string, offset time.Duration) model.TriggerEvent {
	pos := geom.XY{X: 500, Y: 300}
	ev := keyDownAt(key, offset)
	ev.Position = &pos
	return ev
}

func TestFacing_InterceptsAndSequences(t *testing.T) {
	rec := &recorder{}
	f := NewFacing(facingCfg(), testDeps(rec))
	ctx := context.Background()

	require.True(t, f.OnTriggerEvent(ctx, castAt("q", 0)))

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)

	actions := rec.all()
	assert.Equal(t, model.ActionPointerClick, actions[0].Kind)
	assert.Equal(t, "right", actions[0].Key)
	assert.Equal(t, "alt", actions[0].Modifier, "the turn click holds the direction modifier")
	require.NotNil(t, actions[0].Pos)
	assert.Equal(t, 500.0, actions[0].Pos.X)

	assert.Equal(t, model.ActionKeyPress, actions[1].Kind)
	assert.Equal(t, "q", actions[1].Key, "the original cast fires after the turn")
}

func TestFacing_UnwatchedKeyPassesThrough(t *testing.T) {
	rec := &recorder{}
	f := NewFacing(facingCfg(), testDeps(rec))

	assert.False(t, f.OnTriggerEvent(context.Background(), castAt("t", 0)))
	assert.Zero(t, rec.count())
}

func TestFacing_NoPositionPassesThrough(t *testing.T) {
	rec := &recorder{}
	f := NewFacing(facingCfg(), testDeps(rec))

	assert.False(t, f.OnTriggerEvent(context.Background(), keyDownAt("q", 0)))
}

func TestFacing_BusyPassesThrough(t *testing.T) {
	rec := &recorder{}
	f := NewFacing(facingCfg(), testDeps(rec))
	ctx := context.Background()

	require.True(t, f.OnTriggerEvent(ctx, castAt("q", 0)))

	// a second cast inside the settle+delay window is not intercepted
	assert.False(t, f.OnTriggerEvent(ctx, castAt("w", 5*time.Millisecond)))

	// after the window it is
	assert.True(t, f.OnTriggerEvent(ctx, castAt("w", 100*time.Millisecond)))
}

func TestFacing_ResetClearsBusyWindow(t *testing.T) {
	rec := &recorder{}
	f := NewFacing(facingCfg(), testDeps(rec))
	ctx := context.Background()

	require.True(t, f.OnTriggerEvent(ctx, castAt("q", 0)))
	f.Reset()
	assert.True(t, f.OnTriggerEvent(ctx, castAt("w", time.Millisecond)))
}
