package models

import "time"

// TraceEvent is one entry in an execution trace.
type TraceEvent struct {
	// Name identifies the event (phase_start, phase_complete, ...).
	Name string `json:"name"`
	// Fields carries event-specific context.
	Fields map[string]any `json:"fields,omitempty"`
	// Timestamp is when the event was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionRecord is the per-run outcome document for one plan. A fresh
// record is built on every execute call and persisted keyed by plan ID, so
// at most one record is live per plan.
type ExecutionRecord struct {
	PlanID string `json:"plan_id"`
	Status Status `json:"status"`
	// Steps holds per-node outcomes in topological order.
	Steps []*Step `json:"steps"`
	// Artifacts maps each completed agent's name to its raw output.
	Artifacts map[string]any `json:"artifacts"`
	// Trace is the ordered trace recorded during the run.
	Trace []TraceEvent `json:"trace,omitempty"`
	// ReExecution is true when the record was produced by a resumed run.
	ReExecution bool `json:"re_execution,omitempty"`
}

// Clone returns a deep copy of the execution record.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Steps = make([]*Step, len(r.Steps))
	for i, s := range r.Steps {
		out.Steps[i] = s.Clone()
	}
	out.Artifacts = CopyMap(r.Artifacts)
	if r.Trace != nil {
		out.Trace = make([]TraceEvent, len(r.Trace))
		for i, ev := range r.Trace {
			out.Trace[i] = ev
			out.Trace[i].Fields = CopyMap(ev.Fields)
		}
	}
	return &out
}

// FirstFailedStep returns the ID of the first step whose status is failed,
// or an empty string if no step failed.
func (r *ExecutionRecord) FirstFailedStep() string {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return s.ID
		}
	}
	return ""
}
