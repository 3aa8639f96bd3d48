package scripts

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/model"
)

// Swap is the precondition-gated stash swap script: using the trigger item
// is intercepted only while every precondition holds (game-time window, stat
// items carried, free stash capacity, no swap already in flight, cooldown
// elapsed). The stat items are dragged to the stash, the original item use
// replays, and the items are dragged back. Any unmet precondition lets the
// trigger pass through unmodified.
type Swap struct {
	cfg  config.SwapConfig
	deps Deps

	last     *model.SubjectState
	lastSwap time.Time
	inFlight atomic.Bool
}

// NewSwap creates a Swap.
func NewSwap(cfg config.SwapConfig, deps Deps) *Swap {
	return &Swap{
		cfg:  cfg,
		deps: deps,
	}
}

// Class implements combo.Script.
func (s *Swap) Class() string {
	return s.cfg.Class
}

// OnStateUpdate caches the latest subject state.
func (s *Swap) OnStateUpdate(_ context.Context, st *model.SubjectState) {
	s.last = st
}

// OnTriggerEvent intercepts the trigger item's key when all preconditions
// hold.
func (s *Swap) OnTriggerEvent(ctx context.Context, ev model.TriggerEvent) bool {
	if ev.Kind != model.TriggerKeyDown || s.last == nil || !s.last.Alive {
		return false
	}

	triggerSlot, triggerItem, ok := inventorySlotFor(s.last, s.cfg.TriggerItem)
	if !ok {
		return false
	}
	triggerKey, ok := s.deps.Keys.KeyForSlot(triggerSlot)
	if !ok || ev.Key != triggerKey {
		return false
	}

	// precondition conjunction; any miss is a silent pass-through
	if !triggerItem.Ready {
		return false
	}
	if s.inFlight.Load() {
		return false
	}
	if s.cfg.MaxGameTimeSec > 0 && s.last.GameTime > s.cfg.MaxGameTimeSec {
		return false
	}
	if ev.Timestamp.Sub(s.lastSwap) < msDuration(s.cfg.CooldownMs) {
		return false
	}

	pairs := s.swapPairs()
	if len(pairs) == 0 {
		return false
	}

	steps := s.buildSteps(pairs, triggerKey)
	s.lastSwap = ev.Timestamp
	s.inFlight.Store(true)
	go func() {
		defer s.inFlight.Store(false)
		s.deps.Runner.RunSequence(ctx, "swap", steps)
	}()
	return true
}

// Reset implements combo.Script.
func (s *Swap) Reset() {
	s.last = nil
	s.lastSwap = time.Time{}
}

type swapPair struct {
	from geom.XY
	to   geom.XY
}

// swapPairs matches each carried stat item with a free stash slot, resolving
// both to screen positions. Items or slots without a captured position are
// skipped; no positions means no swap.
func (s *Swap) swapPairs() []swapPair {
	free := emptyStashSlots(s.last)
	var pairs []swapPair

	for _, item := range s.cfg.SwapItems {
		for _, slotID := range model.InventorySlotIDs {
			slot, ok := s.last.Slots[slotID]
			if !ok || slot.Name != item {
				continue
			}
			if len(pairs) >= len(free) {
				return nil // not enough stash capacity for all items
			}
			fromPos, okFrom := s.screenPos(slotID)
			toPos, okTo := s.screenPos(free[len(pairs)])
			if !okFrom || !okTo {
				continue
			}
			pairs = append(pairs, swapPair{from: fromPos, to: toPos})
		}
	}
	return pairs
}

func (s *Swap) buildSteps(pairs []swapPair, triggerKey string) []action.Step {
	gap := msDuration(s.cfg.DragStepMs)
	steps := make([]action.Step, 0, 2*len(pairs)+1)

	for _, p := range pairs {
		steps = append(steps, action.Step{
			Delay:  gap,
			Action: model.Drag([]geom.XY{p.from, p.to}, "swap out"),
		})
	}
	steps = append(steps, action.Step{
		Delay:  gap,
		Action: model.KeyPress(triggerKey, "swap replay"),
	})
	for _, p := range pairs {
		steps = append(steps, action.Step{
			Delay:  gap,
			Action: model.Drag([]geom.XY{p.to, p.from}, "swap back"),
		})
	}
	return steps
}

func (s *Swap) screenPos(slotID string) (geom.XY, bool) {
	pos, ok := s.deps.Screen.SlotPositions[slotID]
	if !ok {
		return geom.XY{}, false
	}
	return geom.XY{X: pos[0], Y: pos[1]}, true
}
