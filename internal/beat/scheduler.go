// Package beat implements a drift-free periodic action scheduler. Every beat
// target is recomputed from a fixed anchor timestamp instead of the last
// fire time, so scheduling jitter never accumulates across a long session.
package beat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config tunes the scheduler cadence.
type Config struct {
	Interval        time.Duration // time between beats
	Correction      time.Duration // signed offset accumulated every CorrectionEvery beats
	CorrectionEvery int           // 0 disables correction
	Poll            time.Duration // evaluation granularity
}

// Scheduler fires a payload at a fixed cadence anchored to the activation
// instant. The emit callback runs inside the scheduler's critical section so
// a disarm can never race a beat; it must hand the payload off without
// blocking.
type Scheduler[T any] struct {
	cfg     Config
	logger  *slog.Logger
	emit    func(T)
	observe func(beat int, target, fired time.Time)
	now     func() time.Time

	mu        sync.Mutex
	active    bool
	anchor    time.Time
	beatCount int
	applied   time.Duration // accumulated correction
	current   T
	pending   *T
	secondary *T
}

// Option configures a Scheduler.
type Option[T any] func(*Scheduler[T])

// WithClock replaces the wall clock, used by tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Scheduler[T]) {
		s.now = now
	}
}

// WithBeatObserver installs a callback invoked after every beat with the
// beat index, its target time and the actual fire time. The callback runs
// inside the scheduler's critical section and must not block.
func WithBeatObserver[T any](observe func(beat int, target, fired time.Time)) Option[T] {
	return func(s *Scheduler[T]) {
		s.observe = observe
	}
}

// NewScheduler creates an inactive scheduler.
func NewScheduler[T any](cfg Config, logger *slog.Logger, emit func(T), opts ...Option[T]) *Scheduler[T] {
	s := &Scheduler[T]{
		cfg:    cfg,
		logger: logger,
		emit:   emit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm activates the scheduler: the anchor is set to now, the beat counter
// and accumulated correction reset, and payload becomes current. The first
// beat fires on the next evaluation.
func (s *Scheduler[T]) Arm(payload T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.anchor = s.now()
	s.beatCount = 0
	s.applied = 0
	s.current = payload
	s.pending = nil
	s.secondary = nil
	s.logger.Debug("Scheduler armed", "interval", s.cfg.Interval)
}

// Queue stages a payload that replaces the current one on the next beat.
// Timing is unaffected. Queue on an inactive scheduler is a no-op.
func (s *Scheduler[T]) Queue(payload T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.pending = &payload
}

// SetSecondary sets an extra payload emitted on every beat after the current
// one. Passing nil disables it.
func (s *Scheduler[T]) SetSecondary(payload *T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secondary = payload
}

// Disarm deactivates the scheduler and clears all schedule state. Because it
// takes the same mutex as beat evaluation, a disarm that completes before a
// beat's readiness check suppresses that beat entirely.
func (s *Scheduler[T]) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	s.anchor = time.Time{}
	s.beatCount = 0
	s.applied = 0
	s.pending = nil
	s.secondary = nil
	var zero T
	s.current = zero
	s.logger.Debug("Scheduler disarmed")
}

// Active reports whether the scheduler is armed.
func (s *Scheduler[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// BeatCount returns the number of beats fired since the last Arm.
func (s *Scheduler[T]) BeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beatCount
}

// Run evaluates beats at the configured poll granularity until ctx is
// cancelled. It is safe to run while Arm/Queue/Disarm are called from other
// goroutines.
func (s *Scheduler[T]) Run(ctx context.Context) {
	poll := s.cfg.Poll
	if poll <= 0 {
		poll = 5 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Poll performs at most one beat evaluation. Run calls it at the configured
// granularity; callers that drive their own loop can call it directly. The
// target time is always recomputed from the anchor:
// target = anchor + beatCount*interval + applied correction.
func (s *Scheduler[T]) Poll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	target := s.anchor.Add(time.Duration(s.beatCount)*s.cfg.Interval + s.applied)
	if s.now().Before(target) {
		return
	}

	if s.pending != nil {
		s.current = *s.pending
		s.pending = nil
	}

	s.emit(s.current)
	if s.secondary != nil {
		s.emit(*s.secondary)
	}
	if s.observe != nil {
		s.observe(s.beatCount, target, s.now())
	}

	s.beatCount++
	if s.cfg.CorrectionEvery > 0 && s.beatCount%s.cfg.CorrectionEvery == 0 {
		s.applied += s.cfg.Correction
	}
}
