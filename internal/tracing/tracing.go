// Package tracing records named events with structured fields during a
// plan execution. Recorders are cheap to create; the orchestrator makes
// one per execution and folds the flushed events into the execution
// record so past runs can be inspected after the fact.
package tracing

import (
	"sync"
	"time"

	"github.com/themis-legal/themis/pkg/models"
)

// Recorder accumulates trace events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []models.TraceEvent
	now    func() time.Time
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record appends an event. Fields are copied so callers may reuse maps.
func (r *Recorder) Record(name string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, models.TraceEvent{
		Name:      name,
		Fields:    models.CopyMap(fields),
		Timestamp: r.now().UTC(),
	})
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []models.TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Len reports how many events have been recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
