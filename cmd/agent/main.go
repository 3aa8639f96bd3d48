// Command agent runs the game-client automation runtime: it listens for
// game-state snapshots, drives the danger detector and combo scripts,
// and forwards every resulting action to the input-synthesis sidecar.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/d2auto/agent/internal/action"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/listener"
	"github.com/d2auto/agent/internal/logging"
	"github.com/d2auto/agent/internal/metrics"
	"github.com/d2auto/agent/internal/otel"
	"github.com/d2auto/agent/internal/session"
	"github.com/d2auto/agent/internal/storage"
)

const serviceName = "d2auto-agent"

func main() {
	configDir := flag.String("config", ".", "directory containing agent.cfg.json")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "agent: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile, err := os.Create(logging.LogFilePath(cfg.LogsDir, "agent", start))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	otelFile, err := os.Create(logging.LogFilePath(cfg.LogsDir, "agent.otel", start))
	if err != nil {
		return fmt.Errorf("failed to create otel log file: %w", err)
	}
	defer otelFile.Close()

	otelProvider, err := otel.New(otel.Config{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: serviceName,
		LogWriter:   otelFile,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize otel: %w", err)
	}

	logManager := logging.NewManager()
	logManager.Setup(logFile, cfg.LogLevel, otelProvider.LoggerProvider())
	logger := logManager.Logger()
	slog.SetDefault(logger)

	recorderFile, err := os.Create(logging.LogFilePath(cfg.LogsDir, "recorder", start))
	if err != nil {
		return fmt.Errorf("failed to create recorder log file: %w", err)
	}
	defer recorderFile.Close()
	zlog := logging.NewZerolog(recorderFile, cfg.LogLevel)

	store, err := storage.NewBackend(cfg.Storage, zlog)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	var metricsMgr *metrics.Manager
	if cfg.Influx.Enabled {
		backupPath := filepath.Join(cfg.LogsDir, fmt.Sprintf("influx_backup.%s.gz", start.Format("20060102_150405")))
		metricsMgr = metrics.NewManager(cfg.Influx, zlog, backupPath)
		if err := metricsMgr.Connect(); err != nil {
			logger.Warn("Metrics disabled", "error", err)
			metricsMgr = nil
		}
	}

	// the HTTP round-trip to the synthesizer runs on the async emitter's
	// sender goroutine; producers only ever enqueue
	httpEmitter := action.NewHTTPEmitter(cfg.Emitter.Endpoint, time.Duration(cfg.Emitter.TimeoutMs)*time.Millisecond)
	emitter := action.NewAsyncEmitter(httpEmitter, cfg.Emitter.QueueSize, logger)

	sess, err := session.New(*cfg, session.Deps{
		Emitter: emitter,
		Store:   store,
		Metrics: metricsMgr,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	logManager.SetContextProvider(sess.LogAttrs)

	lst := listener.New(cfg.Listener, sess, logger)
	lst.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sess.Run(ctx, lst.Conduit())

	logger.Info("Agent running", "session", sess.ID(), "port", cfg.Listener.Port)
	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := lst.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Listener shutdown failed", "error", err)
	}
	if err := sess.Close(); err != nil {
		logger.Warn("Session close failed", "error", err)
	}
	emitter.Close()
	if err := store.Close(); err != nil {
		logger.Warn("Storage close failed", "error", err)
	}
	if metricsMgr != nil {
		metricsMgr.Close()
	}
	if err := logManager.Flush(shutdownCtx); err != nil {
		logger.Warn("Log flush failed", "error", err)
	}
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Otel shutdown failed", "error", err)
	}

	return nil
}
