package survival

import (
	"math/rand"
	"time"

	"github.com/d2auto/agent/internal/model"
)

// DispelLatch fires the configured dispel item exactly once per silence.
// The latch re-arms only after the silence ends, so a long debuff cannot
// burn multiple charges.
type DispelLatch struct {
	item     string
	jitterLo time.Duration
	jitterHi time.Duration

	fired bool
}

// NewDispelLatch creates a latch for item with a uniform reaction jitter in
// [lo, hi]. The jitter keeps the reaction from being instantaneous.
func NewDispelLatch(item string, lo, hi time.Duration) *DispelLatch {
	return &DispelLatch{
		item:     item,
		jitterLo: lo,
		jitterHi: hi,
	}
}

// Evaluate inspects the subject and returns the slot to trigger plus the
// reaction delay when the dispel should fire. The session serializes calls.
func (l *DispelLatch) Evaluate(st *model.SubjectState) (string, time.Duration, bool) {
	if !st.Silenced {
		l.fired = false
		return "", 0, false
	}
	if l.fired || !st.Alive {
		return "", 0, false
	}

	slotID, ok := SelectFirstReady(st, []string{l.item})
	if !ok {
		return "", 0, false
	}

	l.fired = true
	delay := l.jitterLo
	if span := l.jitterHi - l.jitterLo; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	return slotID, delay, true
}
