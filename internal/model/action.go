package model

import (
	"time"

	"github.com/peterstace/simplefeatures/geom"
)

// ActionKind classifies a synthesized outbound input action.
type ActionKind string

const (
	ActionKeyPress     ActionKind = "keypress"
	ActionKeyHold      ActionKind = "keyhold"
	ActionPointerMove  ActionKind = "pointermove"
	ActionPointerClick ActionKind = "pointerclick"
	ActionPointerDrag  ActionKind = "pointerdrag"
)

// Action is one opaque outbound command for the external input-synthesis
// collaborator. The runtime never performs OS-level injection itself.
type Action struct {
	Kind     ActionKind    `json:"kind"`
	Key      string        `json:"key,omitempty"`      // key identifier or pointer button
	Modifier string        `json:"modifier,omitempty"` // key held around a pointer action
	Pos      *geom.XY      `json:"pos,omitempty"`      // move/click target
	Path     []geom.XY     `json:"path,omitempty"`     // drag waypoints, first is the grab point
	Duration time.Duration `json:"duration"`           // hold duration for ActionKeyHold
	Reason   string        `json:"reason,omitempty"`   // short producer tag for logs and recording
}

// KeyPress builds the common single-key action.
func KeyPress(key, reason string) Action {
	return Action{Kind: ActionKeyPress, Key: key, Reason: reason}
}

// Click builds a pointer click with an optional target position.
func Click(button string, pos *geom.XY, reason string) Action {
	return Action{Kind: ActionPointerClick, Key: button, Pos: pos, Reason: reason}
}

// ModifiedClick builds a pointer click performed while modifier is held.
// An empty modifier degrades to a plain click.
func ModifiedClick(button, modifier string, pos *geom.XY, reason string) Action {
	return Action{Kind: ActionPointerClick, Key: button, Modifier: modifier, Pos: pos, Reason: reason}
}

// Drag builds a pointer drag along path.
func Drag(path []geom.XY, reason string) Action {
	return Action{Kind: ActionPointerDrag, Path: path, Reason: reason}
}
