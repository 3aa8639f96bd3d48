// Package combo routes subject updates and trigger events to the script
// registered for the tracked subject's class. Exactly one script is armed at
// a time; with no match, only generic survivability handling applies.
package combo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/d2auto/agent/internal/model"
)

// Script is one class-bound automation state machine. Implementations own
// their combo state exclusively; the session serializes all calls.
type Script interface {
	// Class is the subject class this script binds to.
	Class() string
	// OnStateUpdate reacts to an accepted subject snapshot.
	OnStateUpdate(ctx context.Context, st *model.SubjectState)
	// OnTriggerEvent reacts to an intercepted input event. Returning true
	// consumes the event so the listener suppresses it from the game.
	OnTriggerEvent(ctx context.Context, ev model.TriggerEvent) bool
	// Reset returns the script to idle, called when the armed class changes
	// or the session ends. In-flight sequences are cancelled elsewhere.
	Reset()
}

// Registry holds the registered scripts and the currently armed one.
type Registry struct {
	scripts map[string]Script
	armed   Script
	logger  *slog.Logger

	updates  metric.Int64Counter
	triggers metric.Int64Counter
	consumed metric.Int64Counter
}

// NewRegistry creates an empty registry. Metrics come from the global OTel
// meter and are no-ops when OTel is not configured.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		scripts: make(map[string]Script),
		logger:  logger,
	}

	m := meter()

	var err error
	r.updates, err = m.Int64Counter(
		"combo.updates.dispatched",
		metric.WithDescription("Subject state updates dispatched to the armed script"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating updates counter: %w", err)
	}

	r.triggers, err = m.Int64Counter(
		"combo.triggers.dispatched",
		metric.WithDescription("Trigger events dispatched to the armed script"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating triggers counter: %w", err)
	}

	r.consumed, err = m.Int64Counter(
		"combo.triggers.consumed",
		metric.WithDescription("Trigger events consumed by the armed script"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating consumed counter: %w", err)
	}

	return r, nil
}

// Register adds a script. Registering a class twice replaces the earlier
// script.
func (r *Registry) Register(s Script) {
	r.scripts[s.Class()] = s
}

// Has returns true if a script is registered for the class.
func (r *Registry) Has(class string) bool {
	_, ok := r.scripts[class]
	return ok
}

// Arm selects the script for class. An unknown class arms no script and all
// dispatches become no-ops. The previously armed script is reset.
func (r *Registry) Arm(class string) {
	if r.armed != nil && r.armed.Class() == class {
		return
	}
	if r.armed != nil {
		r.armed.Reset()
	}

	s, ok := r.scripts[class]
	if !ok {
		r.armed = nil
		r.logger.Info("No script for class, survivability only", "class", class)
		return
	}
	r.armed = s
	r.logger.Info("Script armed", "class", class)
}

// Disarm resets and clears the armed script.
func (r *Registry) Disarm() {
	if r.armed != nil {
		r.armed.Reset()
		r.armed = nil
	}
}

// ArmedClass returns the armed script's class, or "" when none is armed.
func (r *Registry) ArmedClass() string {
	if r.armed == nil {
		return ""
	}
	return r.armed.Class()
}

// DispatchUpdate forwards a subject update to the armed script.
func (r *Registry) DispatchUpdate(ctx context.Context, st *model.SubjectState) {
	if r.armed == nil {
		return
	}
	r.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("class", r.armed.Class())))
	r.armed.OnStateUpdate(ctx, st)
}

// DispatchTrigger forwards a trigger event to the armed script and reports
// whether the script consumed it.
func (r *Registry) DispatchTrigger(ctx context.Context, ev model.TriggerEvent) bool {
	if r.armed == nil {
		return false
	}

	attrs := metric.WithAttributes(attribute.String("class", r.armed.Class()))
	r.triggers.Add(ctx, 1, attrs)

	start := time.Now()
	ok := r.armed.OnTriggerEvent(ctx, ev)
	if ok {
		r.consumed.Add(ctx, 1, attrs)
		r.logger.Debug("Trigger consumed", "class", r.armed.Class(),
			"key", ev.Key, "duration", time.Since(start))
	}
	return ok
}
