// Package notify publishes run progress events to interested listeners: the
// log, and optionally a socket.io server that dashboards subscribe to.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/wheelgrid/internal/ctxlog"
)

// Kind is the type of a run event.
type Kind string

const (
	RunStarted   Kind = "run_started"
	RunFinished  Kind = "run_finished"
	JobStarted   Kind = "job_started"
	JobFinished  Kind = "job_finished"
	StepStarted  Kind = "step_started"
	StepFinished Kind = "step_finished"
)

// Event is one progress notification.
type Event struct {
	Kind  Kind
	RunID string
	// Node is the job instance ID. Empty for run events.
	Node  string
	Step  string
	State string
	Error string
	Time  time.Time
}

// Payload renders the event as the JSON-friendly map sent over the wire.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"kind":   string(e.Kind),
		"run_id": e.RunID,
		"time":   e.Time.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range map[string]string{"node": e.Node, "step": e.Step, "state": e.State, "error": e.Error} {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

// Notifier receives run events. Notify must not block the caller for long and
// is called concurrently.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
	Close() error
}

// Log writes events to the context logger at debug level, and failures at
// warn level.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx)
	level := slog.LevelDebug
	if ev.Error != "" {
		level = slog.LevelWarn
	}
	attrs := []any{"kind", ev.Kind, "run_id", ev.RunID}
	if ev.Node != "" {
		attrs = append(attrs, "node", ev.Node)
	}
	if ev.Step != "" {
		attrs = append(attrs, "step", ev.Step)
	}
	if ev.State != "" {
		attrs = append(attrs, "state", ev.State)
	}
	if ev.Error != "" {
		attrs = append(attrs, "error", ev.Error)
	}
	logger.Log(ctx, level, "Run event.", attrs...)
}

// Close implements Notifier.
func (Log) Close() error { return nil }

// Multi fans events out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}

// Close closes every notifier and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every event in memory. It is used in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Close implements Notifier.
func (r *Recorder) Close() error { return nil }

// Events returns the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
