// Package record defines the rows shared by all recorder backends.
package record

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/d2auto/agent/internal/model"
)

// DatabaseModels lists the structs that represent tables in the
// recorder schema.
var DatabaseModels = []interface{}{
	&Session{},
	&Snapshot{},
	&ActionRecord{},
	&DangerTransition{},
}

// Session is one recorder run, from listener start to shutdown or
// subject change.
type Session struct {
	gorm.Model
	SessionID string `json:"sessionId" gorm:"size:64;index"`
	Subject   string `json:"subject" gorm:"size:127"`
	Class     string `json:"class" gorm:"size:127"`
	StartedAt time.Time
	EndedAt   *time.Time
}

// Snapshot is one accepted, normalized subject state.
type Snapshot struct {
	gorm.Model
	SessionID   string `json:"sessionId" gorm:"size:64;index"`
	Subject     string `json:"subject" gorm:"size:127"`
	CaptureTime time.Time
	GameTime    int `json:"gameTime"`
	Alive       bool
	Health      int
	MaxHealth   int
	HealthPct   int
	Mana        int
	MaxMana     int
	ManaPct     int
	Stunned     bool
	Silenced    bool
	PosX        float64
	PosY        float64
	Slots       datatypes.JSON `json:"slots"`
}

// ActionRecord is one outbound command as handed to the input
// synthesizer.
type ActionRecord struct {
	gorm.Model
	SessionID string `json:"sessionId" gorm:"size:64;index"`
	Kind      string `json:"kind" gorm:"size:32"`
	Key       string `json:"key" gorm:"size:32"`
	Reason    string `json:"reason" gorm:"size:64"`
	EmittedAt time.Time
	Detail    datatypes.JSON `json:"detail"` // positions and drag paths
}

// DangerTransition is one threat state machine edge.
type DangerTransition struct {
	gorm.Model
	SessionID  string `json:"sessionId" gorm:"size:64;index"`
	From       string `json:"from" gorm:"size:16"`
	To         string `json:"to" gorm:"size:16"`
	WindowLoss int    `json:"windowLoss"`
	HealthPct  int    `json:"healthPct"`
	OccurredAt time.Time
}

// SnapshotFromState converts a normalized subject state into a
// recorder row. Slot maps are stored as JSON rather than a join table.
func SnapshotFromState(sessionID string, st *model.SubjectState) *Snapshot {
	slots, _ := json.Marshal(st.Slots)
	return &Snapshot{
		SessionID:   sessionID,
		Subject:     st.Subject,
		CaptureTime: st.Timestamp,
		GameTime:    st.GameTime,
		Alive:       st.Alive,
		Health:      st.Health,
		MaxHealth:   st.MaxHealth,
		HealthPct:   st.HealthPct,
		Mana:        st.Mana,
		MaxMana:     st.MaxMana,
		ManaPct:     st.ManaPct,
		Stunned:     st.Stunned,
		Silenced:    st.Silenced,
		PosX:        st.Position.X,
		PosY:        st.Position.Y,
		Slots:       datatypes.JSON(slots),
	}
}

// ActionFromModel converts an outbound action into a recorder row.
func ActionFromModel(sessionID string, act model.Action, emittedAt time.Time) *ActionRecord {
	rec := &ActionRecord{
		SessionID: sessionID,
		Kind:      string(act.Kind),
		Key:       act.Key,
		Reason:    act.Reason,
		EmittedAt: emittedAt,
	}
	if act.Pos != nil || len(act.Path) > 0 {
		detail := map[string]any{}
		if act.Pos != nil {
			detail["pos"] = []float64{act.Pos.X, act.Pos.Y}
		}
		if len(act.Path) > 0 {
			path := make([][]float64, 0, len(act.Path))
			for _, p := range act.Path {
				path = append(path, []float64{p.X, p.Y})
			}
			detail["path"] = path
		}
		buf, _ := json.Marshal(detail)
		rec.Detail = datatypes.JSON(buf)
	}
	return rec
}
