// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/storage/record"
)

// Backend stores session data in memory and exports to JSON when the
// session ends.
type Backend struct {
	cfg     config.StorageConfig
	session *record.Session

	snapshots   []record.Snapshot
	actions     []record.ActionRecord
	transitions []record.DangerTransition

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.StorageConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *record.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.snapshots = nil
	b.actions = nil
	b.transitions = nil

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(endedAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	b.session.EndedAt = &endedAt
	return b.exportJSON()
}

// RecordSnapshot appends a normalized subject state
func (b *Backend) RecordSnapshot(s *record.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.snapshots = append(b.snapshots, *s)
	return nil
}

// RecordAction appends an outbound command
func (b *Backend) RecordAction(a *record.ActionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.actions = append(b.actions, *a)
	return nil
}

// RecordDangerTransition appends a threat state machine edge
func (b *Backend) RecordDangerTransition(t *record.DangerTransition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitions = append(b.transitions, *t)
	return nil
}

// SnapshotCount returns the number of recorded snapshots
func (b *Backend) SnapshotCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snapshots)
}

// ActionCount returns the number of recorded actions
func (b *Backend) ActionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.actions)
}

// ExportedFilePath returns the path of the last exported session file
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
