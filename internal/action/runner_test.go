package action

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d2auto/agent/internal/model"
)

// recorder collects emitted actions.
type recorder struct {
	mu      sync.Mutex
	actions []model.Action
	fail    bool
}

func (r *recorder) Emit(_ context.Context, a model.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("injection unavailable")
	}
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

func TestRunSequence_EmitsInOrder(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, slog.Default())

	r.RunSequence(context.Background(), "burst", []Step{
		{Action: model.KeyPress("q", "first")},
		{Delay: 5 * time.Millisecond, Action: model.KeyPress("w", "second")},
		{Delay: 5 * time.Millisecond, Action: model.KeyPress("e", "third")},
	})

	assert.Equal(t, []string{"q", "w", "e"}, rec.keys())
}

func TestRunSequence_CancelAbortsRemainder(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunSequence(ctx, "facing", []Step{
			{Action: model.KeyPress("q", "immediate")},
			{Delay: 100 * time.Millisecond, Action: model.KeyPress("w", "delayed")},
		})
	}()

	// let the first step land, then cancel during the delay
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"q"}, rec.keys(), "delayed step must not fire after cancel")
}

func TestRunSequence_CancelledBeforeStart(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.RunSequence(ctx, "burst", []Step{
		{Action: model.KeyPress("q", "never")},
	})

	assert.Empty(t, rec.keys())
}

func TestRunSequence_EmissionFailureAborts(t *testing.T) {
	rec := &recorder{fail: true}
	r := NewRunner(rec, slog.Default())

	// must not panic or surface an error
	r.RunSequence(context.Background(), "burst", []Step{
		{Action: model.KeyPress("q", "first")},
		{Action: model.KeyPress("w", "second")},
	})

	assert.Empty(t, rec.keys())
}

func TestGo_DoesNotBlockCaller(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, slog.Default())

	start := time.Now()
	r.Go(context.Background(), "slow", []Step{
		{Delay: 50 * time.Millisecond, Action: model.KeyPress("q", "later")},
	})
	require.Less(t, time.Since(start), 20*time.Millisecond, "Go must return immediately")

	assert.Eventually(t, func() bool {
		return len(rec.keys()) == 1
	}, time.Second, 5*time.Millisecond)
}
