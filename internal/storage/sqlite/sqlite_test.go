package sqlitestorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/storage/record"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	cfg := config.StorageConfig{
		Backend:    "sqlite",
		SqlitePath: filepath.Join(t.TempDir(), "agent.db"),
	}
	b, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	return b
}

func TestSqliteBackend_SessionLifecycle(t *testing.T) {
	b := newTestBackend(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := &record.Session{SessionID: "sess-1", Subject: "hero", Class: "minstrel", StartedAt: start}
	require.NoError(t, b.StartSession(sess))
	require.NoError(t, b.EndSession(start.Add(10*time.Minute)))
	require.NoError(t, b.Close())

	// reopen and verify the row survived
	cfg := config.StorageConfig{Backend: "sqlite", SqlitePath: b.cfg.SqlitePath}
	reopened, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	var got record.Session
	require.NoError(t, reopened.DB().First(&got, "session_id = ?", "sess-1").Error)
	assert.Equal(t, "minstrel", got.Class)
	require.NotNil(t, got.EndedAt)
	assert.WithinDuration(t, start.Add(10*time.Minute), *got.EndedAt, time.Second)
}

func TestSqliteBackend_SnapshotsFlushOnClose(t *testing.T) {
	b := newTestBackend(t)
	path := b.cfg.SqlitePath

	require.NoError(t, b.StartSession(&record.Session{SessionID: "sess-1", StartedAt: time.Now()}))
	for i := 0; i < 25; i++ {
		require.NoError(t, b.RecordSnapshot(&record.Snapshot{SessionID: "sess-1", HealthPct: 100 - i}))
	}
	require.NoError(t, b.Close())

	reopened, err := New(config.StorageConfig{SqlitePath: path}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	var count int64
	require.NoError(t, reopened.DB().Model(&record.Snapshot{}).Where("session_id = ?", "sess-1").Count(&count).Error)
	assert.Equal(t, int64(25), count)
}

func TestSqliteBackend_DirectWrites(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	require.NoError(t, b.StartSession(&record.Session{SessionID: "sess-1", StartedAt: time.Now()}))
	require.NoError(t, b.RecordAction(&record.ActionRecord{
		SessionID: "sess-1", Kind: "keypress", Key: "q", Reason: "cycler", EmittedAt: time.Now(),
	}))
	require.NoError(t, b.RecordDangerTransition(&record.DangerTransition{
		SessionID: "sess-1", From: "safe", To: "elevated", WindowLoss: 140, HealthPct: 62, OccurredAt: time.Now(),
	}))

	// actions are buffered like snapshots and only land on a flush
	var pending int64
	require.NoError(t, b.DB().Model(&record.ActionRecord{}).Count(&pending).Error)
	assert.Zero(t, pending)
	b.flush()

	var action record.ActionRecord
	require.NoError(t, b.DB().First(&action, "session_id = ?", "sess-1").Error)
	assert.Equal(t, "q", action.Key)

	var tr record.DangerTransition
	require.NoError(t, b.DB().First(&tr, "session_id = ?", "sess-1").Error)
	assert.Equal(t, "elevated", tr.To)
	assert.Equal(t, 140, tr.WindowLoss)
}

func TestSqliteBackend_RequiresPath(t *testing.T) {
	_, err := New(config.StorageConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
