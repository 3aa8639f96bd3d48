// Package danger tracks combat risk for a subject from successive health
// samples. It drives a Safe/Elevated/Clearing state machine that survival
// policies consult to loosen their reactive item thresholds.
package danger

import (
	"log/slog"
	"time"

	"github.com/d2auto/agent/internal/model"
)

// State is the detector's current risk level.
type State int

const (
	// Safe means no qualifying health loss has been observed recently.
	Safe State = iota
	// Elevated means the subject is actively taking qualifying damage.
	Elevated
	// Clearing means damage has stopped and the stabilization timer is
	// running. Any new loss returns to Elevated.
	Clearing
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Safe:
		return "safe"
	case Elevated:
		return "elevated"
	case Clearing:
		return "clearing"
	default:
		return "unknown"
	}
}

// Config tunes the detector.
type Config struct {
	Window          time.Duration // sliding loss window
	LossThreshold   int           // absolute loss within Window that triggers Elevated
	LowHealthPct    int           // health percent that triggers Elevated while losing
	Stabilize       time.Duration // non-decreasing duration before Clearing resolves to Safe
	MaxReactiveUses int           // reactive item uses allowed per elevated episode
}

type sample struct {
	at     time.Time
	health int
}

// Detector is the per-subject danger state machine. It is not safe for
// concurrent use; the session coordinator serializes all calls.
type Detector struct {
	cfg    Config
	logger *slog.Logger

	state        State
	stableSince  time.Time
	samples      []sample
	reactiveUses int
}

// NewDetector creates a detector in the Safe state.
func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger,
	}
}

// State returns the current risk level.
func (d *Detector) State() State {
	return d.state
}

// InDanger reports whether the current elevated episode is still open.
// Clearing counts: the episode only closes once stabilization completes.
func (d *Detector) InDanger() bool {
	return d.state != Safe
}

// ConsumeReactiveUse reserves one reactive item use within the current
// elevated episode. It returns false outside an episode or once the
// per-episode allowance is exhausted.
func (d *Detector) ConsumeReactiveUse() bool {
	if d.state == Safe {
		return false
	}
	if d.reactiveUses >= d.cfg.MaxReactiveUses {
		return false
	}
	d.reactiveUses++
	return true
}

// Update advances the state machine with one subject snapshot. Time is taken
// from the snapshot itself so replayed traces behave deterministically.
func (d *Detector) Update(st *model.SubjectState) {
	now := st.Timestamp

	if !st.Alive {
		d.Reset()
		return
	}

	var prev int
	hasPrev := len(d.samples) > 0
	if hasPrev {
		prev = d.samples[len(d.samples)-1].health
	}

	d.samples = append(d.samples, sample{at: now, health: st.Health})
	d.trim(now)

	losing := hasPrev && st.Health < prev
	lost := d.windowLoss()

	switch d.state {
	case Safe:
		if lost >= d.cfg.LossThreshold || (st.HealthPct < d.cfg.LowHealthPct && losing) {
			d.state = Elevated
			d.logger.Info("Danger elevated", "health", st.Health, "windowLoss", lost)
		}
	case Elevated:
		if !losing {
			d.state = Clearing
			d.stableSince = now
		}
	case Clearing:
		if losing {
			d.state = Elevated
			d.logger.Debug("Danger re-armed during clearing", "health", st.Health)
		} else if now.Sub(d.stableSince) >= d.cfg.Stabilize {
			d.state = Safe
			d.reactiveUses = 0
			d.logger.Info("Danger cleared", "health", st.Health)
		}
	}
}

// Reset returns the detector to Safe, used on subject death or disconnect.
func (d *Detector) Reset() {
	d.state = Safe
	d.samples = d.samples[:0]
	d.reactiveUses = 0
}

// WindowLoss reports the cumulative health loss inside the current
// sliding window, as last evaluated by Update.
func (d *Detector) WindowLoss() int {
	return d.windowLoss()
}

// trim drops samples that have left the sliding window. The newest sample is
// always kept so a loss spanning the whole window stays measurable.
func (d *Detector) trim(now time.Time) {
	cutoff := now.Add(-d.cfg.Window)
	i := 0
	for i < len(d.samples)-1 && d.samples[i].at.Before(cutoff) {
		i++
	}
	d.samples = d.samples[i:]
}

// windowLoss sums the health drops between consecutive samples in the
// window. Healing does not offset earlier losses.
func (d *Detector) windowLoss() int {
	loss := 0
	for i := 1; i < len(d.samples); i++ {
		if delta := d.samples[i-1].health - d.samples[i].health; delta > 0 {
			loss += delta
		}
	}
	return loss
}
