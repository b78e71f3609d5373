// Package state provides persistence for orchestrator plans and execution
// records. The State aggregate is loaded and saved as a whole through a
// Repository; SQLite is the default backend.
package state

import (
	"sync"

	"github.com/themis-legal/themis/pkg/models"
)

// State is the full persisted aggregate: every plan and the latest
// execution record per plan. Values are deep-copied on the way in and out
// so callers can never alias persisted documents.
//
// State offers no cross-process guarantees. Within one process the
// orchestrator reloads at the start of every mutating operation and writes
// through on save; concurrent writers in different processes race with
// last-writer-wins semantics.
type State struct {
	mu         sync.RWMutex
	plans      map[string]*models.Plan
	executions map[string]*models.ExecutionRecord
}

// NewState returns an empty aggregate.
func NewState() *State {
	return &State{
		plans:      make(map[string]*models.Plan),
		executions: make(map[string]*models.ExecutionRecord),
	}
}

// RememberPlan stores a deep copy of the plan under its ID.
func (s *State) RememberPlan(planID string, plan *models.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[planID] = plan.Clone()
}

// RecallPlan returns a deep copy of the plan, or nil if absent.
func (s *State) RecallPlan(planID string) *models.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plans[planID].Clone()
}

// RememberExecution stores a deep copy of the execution record under the
// plan's ID, overwriting any previous record for that plan.
func (s *State) RememberExecution(planID string, record *models.ExecutionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[planID] = record.Clone()
}

// RecallExecution returns a deep copy of the latest execution record for
// the plan, or nil if none exists.
func (s *State) RecallExecution(planID string) *models.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executions[planID].Clone()
}

// Plans returns a deep-copied snapshot of every stored plan.
func (s *State) Plans() map[string]*models.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.Plan, len(s.plans))
	for id, p := range s.plans {
		out[id] = p.Clone()
	}
	return out
}

// Executions returns a deep-copied snapshot of every stored execution.
func (s *State) Executions() map[string]*models.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.ExecutionRecord, len(s.executions))
	for id, r := range s.executions {
		out[id] = r.Clone()
	}
	return out
}

// Repository is the persistence boundary for the orchestrator. LoadState
// returns the full aggregate; SaveState replaces it.
type Repository interface {
	LoadState() (*State, error)
	SaveState(*State) error
}
