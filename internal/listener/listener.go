// Package listener is the thin inbound boundary: it decodes game-state
// POSTs onto a bounded conduit, routes intercepted trigger events into
// the session, and serves a websocket status feed for the front end.
// Wire framing stops here; the runtime only ever sees decoded structs.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/d2auto/agent/internal/channel"
	"github.com/d2auto/agent/internal/config"
	"github.com/d2auto/agent/internal/ingest"
	"github.com/d2auto/agent/internal/model"
	"github.com/d2auto/agent/internal/session"
)

// Coordinator is the slice of the session the listener talks to.
type Coordinator interface {
	HandleTrigger(ctx context.Context, ev model.TriggerEvent) bool
	Status() session.Status
}

// Server accepts snapshots and triggers over HTTP.
type Server struct {
	cfg     config.ListenerConfig
	logger  *slog.Logger
	coord   Coordinator
	conduit *channel.Buffered[*ingest.RawSnapshot]

	dropped atomic.Uint64

	srv *http.Server
}

// New creates a listener. The conduit is sized by cfg.QueueSize; a full
// conduit drops snapshots rather than blocking the game client.
func New(cfg config.ListenerConfig, coord Coordinator, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		coord:   coord,
		conduit: channel.NewBuffered[*ingest.RawSnapshot](cfg.QueueSize),
	}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Conduit returns the snapshot channel consumed by the session.
func (s *Server) Conduit() *channel.Buffered[*ingest.RawSnapshot] {
	return s.conduit
}

// Dropped reports how many snapshots were shed on a full conduit.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("Listener starting", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Listener failed", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server and closes the conduit.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.conduit.Close()
	return err
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSnapshot)
	mux.HandleFunc("/trigger", s.handleTrigger)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// handleSnapshot decodes one game-state POST and enqueues it. The game
// client resends continuously, so a shed snapshot is never an error.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw ingest.RawSnapshot
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.logger.Debug("Malformed snapshot payload", "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if !s.conduit.TrySend(&raw) {
		n := s.dropped.Add(1)
		if n%100 == 1 {
			s.logger.Warn("Snapshot conduit full, shedding", "dropped", n)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTrigger routes one intercepted input event and answers whether
// the interceptor should suppress the original input.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev model.TriggerEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	consumed := s.coord.HandleTrigger(r.Context(), ev)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"consumed": consumed})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.coord.Status())
}
