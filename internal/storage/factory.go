// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/storage/memory"
	sqlitestorage "github.com/d2auto/agent/internal/storage/sqlite"
)

// NewBackend creates a recorder backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		return sqlitestorage.New(cfg, log)
	case "memory":
		return memory.New(cfg), nil
	case "none", "":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
