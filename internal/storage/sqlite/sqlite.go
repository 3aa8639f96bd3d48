// Package sqlitestorage implements the storage.Backend interface on a
// SQLite database. Snapshots arrive several times per second and actions
// are produced on latency-sensitive paths, so both are buffered in queues
// and flushed in batches; session rows and danger transitions are written
// directly.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/queue"
	"github.com/d2auto/agent/internal/storage/record"
)

const flushInterval = 1 * time.Second

// Backend records sessions into a SQLite file.
type Backend struct {
	db  *gorm.DB
	cfg config.StorageConfig
	log zerolog.Logger

	snapshots *queue.Queue[*record.Snapshot]
	actions   *queue.Queue[*record.ActionRecord]

	mu      sync.Mutex
	session *record.Session

	stopChan chan struct{}
	done     chan struct{}
}

// New opens (or creates) the SQLite database at cfg.SqlitePath.
func New(cfg config.StorageConfig, log zerolog.Logger) (*Backend, error) {
	if cfg.SqlitePath == "" {
		return nil, fmt.Errorf("sqlite backend requires storage.sqlitePath")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SqlitePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.SqlitePath), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	log.Info().Str("path", cfg.SqlitePath).Msg("Using local SQLite DB")

	return &Backend{
		db:        db,
		cfg:       cfg,
		log:       log,
		snapshots: queue.New[*record.Snapshot](),
		actions:   queue.New[*record.ActionRecord](),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// DB exposes the underlying handle for ad hoc queries.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema and starts the flush goroutine.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(record.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	go b.flushLoop()
	return nil
}

// Close flushes pending snapshots and closes the database.
func (b *Backend) Close() error {
	close(b.stopChan)
	<-b.done
	b.flush()

	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartSession inserts the session row.
func (b *Backend) StartSession(s *record.Session) error {
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()

	if err := b.db.Create(s).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// EndSession flushes outstanding snapshots and stamps the end time.
func (b *Backend) EndSession(endedAt time.Time) error {
	b.flush()

	b.mu.Lock()
	s := b.session
	b.session = nil
	b.mu.Unlock()

	if s == nil {
		return nil
	}
	s.EndedAt = &endedAt
	if err := b.db.Model(s).Update("ended_at", endedAt).Error; err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// RecordSnapshot buffers the row for the next batch flush.
func (b *Backend) RecordSnapshot(s *record.Snapshot) error {
	b.snapshots.Push(s)
	return nil
}

// RecordAction buffers the row for the next batch flush. Actions are
// produced while the session lock is held, so the write must not touch the
// database here.
func (b *Backend) RecordAction(a *record.ActionRecord) error {
	b.actions.Push(a)
	return nil
}

// RecordDangerTransition writes the row immediately.
func (b *Backend) RecordDangerTransition(t *record.DangerTransition) error {
	if err := b.db.Create(t).Error; err != nil {
		return fmt.Errorf("failed to insert danger transition: %w", err)
	}
	return nil
}

func (b *Backend) flushLoop() {
	defer close(b.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

func (b *Backend) flush() {
	if rows := b.snapshots.GetAndEmpty(); len(rows) > 0 {
		start := time.Now()
		if err := b.db.Create(rows).Error; err != nil {
			b.log.Error().Err(err).Int("rows", len(rows)).Msg("Error flushing snapshots")
		} else {
			b.log.Debug().Int("rows", len(rows)).Dur("took", time.Since(start)).Msg("Flushed snapshots")
		}
	}
	if rows := b.actions.GetAndEmpty(); len(rows) > 0 {
		if err := b.db.Create(rows).Error; err != nil {
			b.log.Error().Err(err).Int("rows", len(rows)).Msg("Error flushing actions")
		}
	}
}
