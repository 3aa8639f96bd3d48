// Package session glues the runtime together: one tracked subject, one
// lock. The ingestion path, the trigger path and the beat scheduler all
// funnel through here, and every outbound action passes through the
// recording emitter on its way to the input synthesizer.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/beat"
	"github.com/d2auto/agent/internal/channel"
	"github.com/d2auto/agent/internal/combo"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/danger"
	"github.com/d2auto/agent/internal/ingest"
	"github.com/d2auto/agent/internal/metrics"
	"github.com/d2auto/agent/internal/model"
	"github.com/d2auto/agent/internal/scripts"
	"github.com/d2auto/agent/internal/storage"
	"github.com/d2auto/agent/internal/storage/record"
)

// reuse gap between survivability item fires. Readiness flags lag the
// game by a snapshot or two, so back-to-back updates would otherwise
// double-fire the same item.
const itemReuseGap = 500 * time.Millisecond

// Deps carries the external collaborators the session does not own.
type Deps struct {
	Emitter action.Emitter
	Store   storage.Backend
	Metrics *metrics.Manager // nil when influx is disabled
	Logger  *slog.Logger
	Clock   func() time.Time // nil means time.Now
}

// Status is the state snapshot served on the websocket feed.
type Status struct {
	SessionID   string `json:"sessionId"`
	Subject     string `json:"subject"`
	Class       string `json:"class"`
	Alive       bool   `json:"alive"`
	HealthPct   int    `json:"healthPct"`
	ManaPct     int    `json:"manaPct"`
	GameTime    int    `json:"gameTime"`
	DangerState string `json:"dangerState"`
	ArmedScript string `json:"armedScript"`
	BeatActive  bool   `json:"beatActive"`
	BeatCount   int    `json:"beatCount"`
	Accepted    uint64 `json:"snapshotsAccepted"`
	Dropped     uint64 `json:"snapshotsDropped"`
	Consumed    uint64 `json:"triggersConsumed"`
}

// Session coordinates the three execution contexts over one subject.
type Session struct {
	id     string
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time

	store   storage.Backend
	metrics *metrics.Manager

	normalizer *ingest.Normalizer
	detector   *danger.Detector
	registry   *combo.Registry
	policy     *survivalPolicy
	runner     *action.Runner
	rhythm     *scripts.Rhythm

	mu       sync.Mutex
	current  *model.SubjectState
	tracking bool

	accepted uint64
	dropped  uint64
	consumed uint64

	gameClock atomic.Int64 // latest accepted in-game time, for log context

	// sequences and the scheduler outlive any single transport request,
	// so their goroutines bind to this context rather than the caller's
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	done    chan struct{}
}

// New builds a session from the configuration snapshot. All enabled combo
// scripts are registered; which one is armed follows the tracked
// subject's class.
func New(cfg config.Config, deps Deps) (*Session, error) {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		logger:  logger,
		now:     deps.Clock,
		store:   deps.Store,
		metrics: deps.Metrics,
		done:    make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if s.store == nil {
		s.store = storage.Discard{}
	}

	// every action produced anywhere in the runtime is recorded here
	s.runner = action.NewRunner(s.recordingEmitter(deps.Emitter), logger)

	s.normalizer = ingest.NewNormalizer(logger)
	s.detector = danger.NewDetector(danger.Config{
		Window:          msDuration(cfg.Danger.WindowMs),
		LossThreshold:   cfg.Danger.LossThreshold,
		LowHealthPct:    cfg.Danger.LowHealthPct,
		Stabilize:       msDuration(cfg.Danger.StabilizeMs),
		MaxReactiveUses: cfg.Danger.MaxReactiveUses,
	}, logger)

	registry, err := combo.NewRegistry(logger)
	if err != nil {
		return nil, err
	}
	s.registry = registry

	scriptDeps := scripts.Deps{
		Runner: s.runner,
		Keys:   &cfg,
		Screen: cfg.Screen,
		Logger: logger,
	}
	// the rhythm script always exists so the scheduler goroutine has an
	// owner, but unknown or disabled classes arm nothing
	var rhythmOpts []beat.Option[string]
	if s.metrics != nil {
		rhythmOpts = append(rhythmOpts, beat.WithBeatObserver[string](s.observeBeat))
	}
	s.rhythm = scripts.NewRhythm(cfg.Rhythm, scriptDeps, rhythmOpts...)
	if cfg.Rhythm.Enabled {
		registry.Register(s.rhythm)
	}
	if cfg.Cycler.Enabled {
		registry.Register(scripts.NewCycler(cfg.Cycler, scriptDeps))
	}
	if cfg.Burst.Enabled {
		registry.Register(scripts.NewBurst(cfg.Burst, scriptDeps))
	}
	if cfg.Facing.Enabled {
		registry.Register(scripts.NewFacing(cfg.Facing, scriptDeps))
	}
	if cfg.Swap.Enabled {
		registry.Register(scripts.NewSwap(cfg.Swap, scriptDeps))
	}
	if cfg.Micro.Enabled {
		registry.Register(scripts.NewMicro(cfg.Micro, scriptDeps))
	}

	s.policy = newSurvivalPolicy(cfg, scriptDeps, s.detector, deps.Clock)

	return s, nil
}

// ID returns the session identity used in records and metrics.
func (s *Session) ID() string {
	return s.id
}

// Run consumes raw snapshots until ctx is cancelled or the conduit
// closes. It also drives the beat scheduler goroutine.
func (s *Session) Run(ctx context.Context, snapshots channel.Receiver[*ingest.RawSnapshot]) {
	s.running.Store(true)
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer close(s.done)

	go s.rhythm.Scheduler().Run(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			return
		case raw, ok := <-snapshots.Receive():
			if !ok {
				return
			}
			s.ApplySnapshot(s.ctx, raw)
		}
	}
}

// Close cancels in-flight sequences, stops the scheduler and finalizes
// the session record.
func (s *Session) Close() error {
	s.cancel()
	if s.running.Load() {
		<-s.done
	}

	s.mu.Lock()
	tracking := s.tracking
	s.tracking = false
	s.mu.Unlock()

	if !tracking {
		return nil
	}
	return s.store.EndSession(s.now())
}

// ApplySnapshot normalizes one raw snapshot and publishes the accepted
// state to the danger detector, the assists and the armed script in a
// single coordinated update.
func (s *Session) ApplySnapshot(ctx context.Context, raw *ingest.RawSnapshot) {
	st, err := s.normalizer.Normalize(raw)
	if err != nil {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return
	}

	s.mu.Lock()

	prev := s.current
	prevDanger := s.detector.State()

	subjectChanged := false
	if !s.tracking {
		s.startTracking(st)
	} else if prev != nil && prev.Subject != st.Subject {
		s.logger.Info("Tracked subject changed", "from", prev.Subject, "to", st.Subject)
		s.detector.Reset()
		s.registry.Disarm()
		subjectChanged = true
	}

	if prev != nil && prev.Alive && !st.Alive {
		s.logger.Info("Subject died", "subject", st.Subject, "gameTime", st.GameTime)
	} else if prev != nil && !prev.Alive && st.Alive {
		s.logger.Info("Subject respawned", "subject", st.Subject, "gameTime", st.GameTime)
	}

	if s.cfg.Danger.Enabled {
		s.detector.Update(st)
	}
	s.current = st
	s.accepted++
	s.gameClock.Store(int64(st.GameTime))

	if prev == nil || subjectChanged || prev.Class != st.Class {
		s.registry.Arm(st.Class)
	}

	// sequences spawned here must survive the caller's deadline
	s.policy.onStateUpdate(s.ctx, st)
	s.registry.DispatchUpdate(s.ctx, st)

	newDanger := s.detector.State()
	windowLoss := s.detector.WindowLoss()

	s.mu.Unlock()

	// recording happens outside the lock; the sqlite backend does IO
	if err := s.store.RecordSnapshot(record.SnapshotFromState(s.id, st)); err != nil {
		s.logger.Warn("Failed to record snapshot", "error", err)
	}
	if prevDanger != newDanger {
		s.logger.Info("Danger state changed",
			"from", prevDanger.String(), "to", newDanger.String(),
			"windowLoss", windowLoss, "healthPct", st.HealthPct)
		tr := &record.DangerTransition{
			SessionID:  s.id,
			From:       prevDanger.String(),
			To:         newDanger.String(),
			WindowLoss: windowLoss,
			HealthPct:  st.HealthPct,
			OccurredAt: st.Timestamp,
		}
		if err := s.store.RecordDangerTransition(tr); err != nil {
			s.logger.Warn("Failed to record danger transition", "error", err)
		}
		if s.metrics != nil {
			point := metrics.DangerPoint(s.id, prevDanger.String(), newDanger.String(), windowLoss, st.HealthPct, st.Timestamp)
			if err := s.metrics.WritePoint(ctx, s.cfg.Influx.Bucket, point); err != nil {
				s.logger.Debug("Failed to write danger point", "error", err)
			}
		}
	}
	if s.metrics != nil {
		if err := s.metrics.WritePoint(ctx, s.cfg.Influx.Bucket, metrics.SnapshotPoint(s.id, st)); err != nil {
			s.logger.Debug("Failed to write snapshot point", "error", err)
		}
	}
}

// HandleTrigger routes one intercepted input event. The return value
// tells the external interceptor whether to suppress the original input.
// Sequences spawned by the scripts are bound to the session lifetime, not
// the caller's context: the trigger reply returns long before a consumed
// trigger's replacement sequence has finished firing.
func (s *Session) HandleTrigger(_ context.Context, ev model.TriggerEvent) bool {
	s.mu.Lock()

	if s.current == nil {
		s.mu.Unlock()
		return false
	}

	s.policy.onTriggerEvent(s.ctx, ev, s.current)
	consumed := s.registry.DispatchTrigger(s.ctx, ev)
	if consumed {
		s.consumed++
	}

	s.mu.Unlock()
	return consumed
}

// Status reports the live state for the websocket feed.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		SessionID:   s.id,
		DangerState: s.detector.State().String(),
		ArmedScript: s.registry.ArmedClass(),
		BeatActive:  s.rhythm.Scheduler().Active(),
		BeatCount:   s.rhythm.Scheduler().BeatCount(),
		Accepted:    s.accepted,
		Dropped:     s.dropped,
		Consumed:    s.consumed,
	}
	if s.current != nil {
		st.Subject = s.current.Subject
		st.Class = s.current.Class
		st.Alive = s.current.Alive
		st.HealthPct = s.current.HealthPct
		st.ManaPct = s.current.ManaPct
		st.GameTime = s.current.GameTime
	}
	return st
}

// LogAttrs provides the dynamic attributes stamped onto every log record.
// It reads atomics only; the logger may fire while the session lock is held.
func (s *Session) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("session", s.id),
		slog.Int64("gameTime", s.gameClock.Load()),
	}
}

// observeBeat runs inside the scheduler's critical section; the influx
// write API buffers internally, so this stays non-blocking.
func (s *Session) observeBeat(beatIdx int, target, fired time.Time) {
	point := metrics.BeatDriftPoint(s.id, s.cfg.Rhythm.Class, uint64(beatIdx), fired.Sub(target), fired)
	if err := s.metrics.WritePoint(context.Background(), s.cfg.Influx.Bucket, point); err != nil {
		s.logger.Debug("Failed to write beat drift point", "error", err)
	}
}

// startTracking opens the session record on the first accepted snapshot.
// Caller holds s.mu.
func (s *Session) startTracking(st *model.SubjectState) {
	s.tracking = true
	s.logger.Info("Tracking subject", "subject", st.Subject, "class", st.Class, "session", s.id)

	row := &record.Session{
		SessionID: s.id,
		Subject:   st.Subject,
		Class:     st.Class,
		StartedAt: s.now(),
	}
	if err := s.store.StartSession(row); err != nil {
		s.logger.Warn("Failed to start session record", "error", err)
	}
}

// recordingEmitter wraps the external emitter so every outbound action
// lands in the recorder and the metrics stream.
func (s *Session) recordingEmitter(next action.Emitter) action.Emitter {
	return action.EmitterFunc(func(ctx context.Context, a model.Action) error {
		at := s.now()
		if err := s.store.RecordAction(record.ActionFromModel(s.id, a, at)); err != nil {
			s.logger.Warn("Failed to record action", "error", err)
		}
		if s.metrics != nil {
			if err := s.metrics.WritePoint(ctx, s.cfg.Influx.Bucket, metrics.ActionPoint(s.id, a, at)); err != nil {
				s.logger.Debug("Failed to write action point", "error", err)
			}
		}
		return next.Emit(ctx, a)
	})
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
