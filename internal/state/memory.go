package state

import "sync"

// MemoryRepository keeps the aggregate in process memory. Used by tests and
// by ephemeral CLI runs that don't need durability.
type MemoryRepository struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: NewState()}
}

// LoadState returns a deep copy of the stored aggregate.
func (r *MemoryRepository) LoadState() (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot(r.state), nil
}

// SaveState replaces the stored aggregate with a deep copy of the one
// provided.
func (r *MemoryRepository) SaveState(s *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = snapshot(s)
	return nil
}

func snapshot(s *State) *State {
	out := NewState()
	for id, plan := range s.Plans() {
		out.RememberPlan(id, plan)
	}
	for id, record := range s.Executions() {
		out.RememberExecution(id, record)
	}
	return out
}
