// Package ingest validates raw game-state snapshots and converts them into
// typed subject states. Stale and malformed snapshots are rejected here so
// downstream consumers only ever see ordered, complete updates.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/d2auto/agent/internal/model"
)

var (
	// ErrNoSubject means the snapshot carried no hero section, which happens
	// between matches and during hero selection.
	ErrNoSubject = errors.New("snapshot has no subject")
	// ErrNoTimestamp means the provider section or its timestamp was missing.
	ErrNoTimestamp = errors.New("snapshot has no timestamp")
	// ErrStale means the snapshot timestamp did not advance past the last
	// accepted one for the same subject.
	ErrStale = errors.New("snapshot is stale")
)

// Normalizer converts raw snapshots into SubjectStates and enforces
// per-subject timestamp ordering.
type Normalizer struct {
	logger *slog.Logger

	mu           sync.Mutex
	lastAccepted map[string]time.Time
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		logger:       logger,
		lastAccepted: make(map[string]time.Time),
	}
}

// Normalize validates raw and converts it to a SubjectState. It returns a
// wrapped ErrStale, ErrNoSubject or ErrNoTimestamp when the snapshot must be
// dropped. Acceptance advances the subject's timestamp watermark.
func (n *Normalizer) Normalize(raw *RawSnapshot) (*model.SubjectState, error) {
	if raw == nil || raw.Hero == nil || raw.Hero.Name == "" {
		return nil, ErrNoSubject
	}
	if raw.Provider == nil || raw.Provider.Timestamp == 0 {
		return nil, ErrNoTimestamp
	}

	ts := time.UnixMilli(raw.Provider.Timestamp)
	subject := raw.Hero.Name

	n.mu.Lock()
	last, seen := n.lastAccepted[subject]
	if seen && !ts.After(last) {
		n.mu.Unlock()
		n.logger.Debug("Dropping stale snapshot", "subject", subject,
			"timestamp", ts, "lastAccepted", last)
		return nil, fmt.Errorf("%w: subject %s at %s, last accepted %s",
			ErrStale, subject, ts.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
	}
	n.lastAccepted[subject] = ts
	n.mu.Unlock()

	state := &model.SubjectState{
		Subject:   subject,
		Class:     subject,
		Alive:     raw.Hero.Alive,
		Health:    raw.Hero.Health,
		MaxHealth: raw.Hero.MaxHealth,
		HealthPct: raw.Hero.HealthPercent,
		Mana:      raw.Hero.Mana,
		MaxMana:   raw.Hero.MaxMana,
		ManaPct:   raw.Hero.ManaPercent,
		Stunned:   raw.Hero.Stunned,
		Silenced:  raw.Hero.Silenced,
		Position:  geom.XY{X: raw.Hero.XPos, Y: raw.Hero.YPos},
		Slots:     make(map[string]model.Slot, len(raw.Items)+len(raw.Abilities)),
		Timestamp: ts,
	}
	if raw.Map != nil {
		state.GameTime = raw.Map.GameTime
	}

	for slotID, item := range raw.Items {
		state.Slots[slotID] = model.Slot{
			Name:     item.Name,
			Ready:    item.CanCast && item.Cooldown == 0,
			Cooldown: item.Cooldown,
			Charges:  item.Charges,
		}
	}
	for slotID, ab := range raw.Abilities {
		state.Slots[slotID] = model.Slot{
			Name:     ab.Name,
			Ready:    ab.CanCast,
			Cooldown: ab.Cooldown,
			Level:    ab.Level,
			Passive:  ab.Passive,
		}
	}

	return state, nil
}

// Reset clears the timestamp watermark for a subject, allowing a new match
// to restart from an earlier clock.
func (n *Normalizer) Reset(subject string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.lastAccepted, subject)
}
