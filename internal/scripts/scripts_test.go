package scripts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// recorder collects emitted actions for assertions.
type recorder struct {
	mu      sync.Mutex
	actions []model.Action
}

func (r *recorder) Emit(_ context.Context, a model.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return nil
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.actions))
	for i, a := range r.actions {
		keys[i] = a.Key
	}
	return keys
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}

func (r *recorder) all() []model.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// testKeys is a map-backed KeyMap.
type testKeys map[string]string

func (k testKeys) KeyForSlot(slotID string) (string, bool) {
	v, ok := k[slotID]
	return v, ok && v != ""
}

func defaultTestKeys() testKeys {
	return testKeys{
		"slot0": "z", "slot1": "x", "slot2": "c",
		"slot3": "v", "slot4": "b", "slot5": "n",
		"neutral0": "g",
	}
}

func testDeps(rec *recorder) Deps {
	return Deps{
		Runner: action.NewRunner(rec, slog.Default()),
		Keys:   defaultTestKeys(),
		Screen: config.ScreenConfig{SlotPositions: map[string][2]float64{
			"slot0": {100, 900}, "slot1": {140, 900}, "slot2": {180, 900},
			"stash0": {100, 980}, "stash1": {140, 980},
		}},
		Logger: slog.Default(),
	}
}

var scriptEpoch = time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC)

// stateAt builds a healthy subject snapshot at the given offset.
func stateAt(offset time.Duration, slots map[string]model.Slot) *model.SubjectState {
	return &model.SubjectState{
		Subject:   "subject",
		Class:     "subject",
		Alive:     true,
		Health:    900,
		MaxHealth: 1000,
		HealthPct: 90,
		Mana:      500,
		MaxMana:   600,
		ManaPct:   83,
		GameTime:  int(offset / time.Second),
		Slots:     slots,
		Timestamp: scriptEpoch.Add(offset),
	}
}

func keyDownAt(key string, offset time.Duration) model.TriggerEvent {
	return model.TriggerEvent{
		Kind:      model.TriggerKeyDown,
		Key:       key,
		Timestamp: scriptEpoch.Add(offset),
	}
}
