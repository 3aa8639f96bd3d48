package model

import (
	"time"

	"github.com/peterstace/simplefeatures/geom"
)

// TriggerKind classifies an intercepted user input event.
type TriggerKind string

const (
	TriggerKeyDown      TriggerKind = "keydown"
	TriggerKeyUp        TriggerKind = "keyup"
	TriggerPointerClick TriggerKind = "pointerclick"
)

// TriggerEvent is one intercepted input event delivered by the external
// input-listening collaborator. When the session reports the event as
// consumed, the listener suppresses the original input from reaching the
// game.
type TriggerEvent struct {
	Kind      TriggerKind `json:"kind"`
	Key       string      `json:"key"`      // key identifier or pointer button
	Modifier  bool        `json:"modifier"` // configured modifier key held
	Position  *geom.XY    `json:"position,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
