package action

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/d2auto/agent/internal/channel"
	"github.com/d2auto/agent/internal/model"
)

// ErrQueueFull is returned when the outbound queue cannot take another
// action without blocking.
var ErrQueueFull = errors.New("action queue full")

// ErrEmitterClosed is returned for actions emitted after Close.
var ErrEmitterClosed = errors.New("emitter closed")

// AsyncEmitter decouples producers from a slow downstream emitter: Emit is
// a non-blocking enqueue and a single sender goroutine performs the actual
// delivery. Producers holding locks therefore never wait on the transport.
type AsyncEmitter struct {
	next   Emitter
	logger *slog.Logger
	queue  *channel.Buffered[model.Action]
	done   chan struct{}

	// guards the queue against sends racing Close; Emit holds it shared
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

// NewAsyncEmitter creates the emitter and starts its sender goroutine.
// Call Close to drain and stop it.
func NewAsyncEmitter(next Emitter, size int, logger *slog.Logger) *AsyncEmitter {
	a := &AsyncEmitter{
		next:   next,
		logger: logger,
		queue:  channel.NewBuffered[model.Action](size),
		done:   make(chan struct{}),
	}
	go a.sendLoop()
	return a
}

// Emit enqueues the action and returns immediately. A full queue drops the
// action and returns ErrQueueFull; delivery order of accepted actions is
// preserved.
func (a *AsyncEmitter) Emit(_ context.Context, act model.Action) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrEmitterClosed
	}
	if !a.queue.TrySend(act) {
		n := a.dropped.Add(1)
		if n%100 == 1 {
			a.logger.Warn("Action queue full, dropping", "dropped", n)
		}
		return ErrQueueFull
	}
	return nil
}

// Dropped reports how many actions were shed on a full queue.
func (a *AsyncEmitter) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting actions, delivers everything already queued and
// waits for the sender goroutine to finish.
func (a *AsyncEmitter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.queue.Close()
	a.mu.Unlock()

	<-a.done
}

func (a *AsyncEmitter) sendLoop() {
	defer close(a.done)
	for act := range a.queue.Receive() {
		if err := a.next.Emit(context.Background(), act); err != nil {
			a.logger.Warn("Action delivery failed", "kind", act.Kind,
				"reason", act.Reason, "error", err)
		}
	}
}
