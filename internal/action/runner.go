// Package action defines the outbound input-synthesis boundary and a runner
// for delayed multi-step sequences. The runtime never performs OS input
// itself; it hands fully described actions to an Emitter.
package action

import (
	"context"
	"log/slog"
	"time"

	"github.com/d2auto/agent/internal/model"
)

// Emitter performs the actual input synthesis. Implementations live outside
// the runtime. Emit must be fast; deliberate delays belong in sequences.
type Emitter interface {
	Emit(ctx context.Context, a model.Action) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, a model.Action) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, a model.Action) error {
	return f(ctx, a)
}

// Step is one element of a timed sequence: wait Delay, then emit Action.
type Step struct {
	Delay  time.Duration
	Action model.Action
}

// Runner executes timed action sequences. Sequences run on the caller's
// goroutine; scripts spawn them with Go so state updates are never blocked
// by a sleeping sequence.
type Runner struct {
	emitter Emitter
	logger  *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(emitter Emitter, logger *slog.Logger) *Runner {
	return &Runner{
		emitter: emitter,
		logger:  logger,
	}
}

// Emit sends a single action immediately.
func (r *Runner) Emit(ctx context.Context, a model.Action) error {
	return r.emitter.Emit(ctx, a)
}

// RunSequence executes steps in order, honoring each step's delay.
// Cancellation is checked at every delay boundary, so a cancelled context
// aborts the remainder of the sequence instead of completing it. Emission
// failures are logged and abort the sequence; they are never fatal.
func (r *Runner) RunSequence(ctx context.Context, name string, steps []Step) {
	for i, step := range steps {
		if step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				r.logger.Debug("Sequence cancelled", "sequence", name, "step", i)
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			r.logger.Debug("Sequence cancelled", "sequence", name, "step", i)
			return
		}

		if err := r.emitter.Emit(ctx, step.Action); err != nil {
			r.logger.Warn("Sequence emission failed", "sequence", name,
				"step", i, "error", err)
			return
		}
	}
}

// Go runs RunSequence on its own goroutine.
func (r *Runner) Go(ctx context.Context, name string, steps []Step) {
	go r.RunSequence(ctx, name, steps)
}
