// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/d2auto/agent/internal/storage/record"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID   string                    `json:"sessionId"`
	Subject     string                    `json:"subject"`
	Class       string                    `json:"class"`
	StartedAt   string                    `json:"startedAt"`
	EndedAt     string                    `json:"endedAt"`
	Snapshots   []record.Snapshot         `json:"snapshots"`
	Actions     []record.ActionRecord     `json:"actions"`
	Transitions []record.DangerTransition `json:"transitions"`
}

const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// exportJSON writes the session data to a JSON file.
// Caller holds b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	subject := strings.ReplaceAll(b.session.Subject, " ", "_")
	subject = strings.ReplaceAll(subject, ":", "_")
	timestamp := b.session.StartedAt.Format("20060102_150405")

	var filename string
	if b.cfg.Compress {
		filename = fmt.Sprintf("%s_%s.json.gz", subject, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", subject, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.Compress {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SessionID:   b.session.SessionID,
		Subject:     b.session.Subject,
		Class:       b.session.Class,
		StartedAt:   b.session.StartedAt.Format(exportTimeLayout),
		Snapshots:   b.snapshots,
		Actions:     b.actions,
		Transitions: b.transitions,
	}
	if export.Snapshots == nil {
		export.Snapshots = []record.Snapshot{}
	}
	if export.Actions == nil {
		export.Actions = []record.ActionRecord{}
	}
	if export.Transitions == nil {
		export.Transitions = []record.DangerTransition{}
	}
	if b.session.EndedAt != nil {
		export.EndedAt = b.session.EndedAt.Format(exportTimeLayout)
	}
	return export
}

func (b *Backend) writeJSON(path string, export SessionExport) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func (b *Backend) writeGzipJSON(path string, export SessionExport) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gz.Close()
}
