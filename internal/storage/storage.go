// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/d2auto/agent/internal/storage/record"
)

// Backend is the interface all session recorder implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *record.Session) error
	EndSession(endedAt time.Time) error

	// State recording
	RecordSnapshot(s *record.Snapshot) error
	RecordAction(a *record.ActionRecord) error
	RecordDangerTransition(t *record.DangerTransition) error
}

// Exportable is an optional interface for backends that produce a
// standalone replay file when the session ends.
type Exportable interface {
	ExportedFilePath() string
}

// Discard drops everything. Selected when recording is disabled.
type Discard struct{}

func (Discard) Init() error                                           { return nil }
func (Discard) Close() error                                          { return nil }
func (Discard) StartSession(*record.Session) error                    { return nil }
func (Discard) EndSession(time.Time) error                            { return nil }
func (Discard) RecordSnapshot(*record.Snapshot) error                 { return nil }
func (Discard) RecordAction(*record.ActionRecord) error               { return nil }
func (Discard) RecordDangerTransition(*record.DangerTransition) error { return nil }
