// Package orchestrator coordinates the registered legal agents: it plans
// a task graph for a matter, executes the graph with retry and circuit
// breaker protection, streams progress events, and persists plans and
// execution records through the state repository.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/themis-legal/themis/internal/agents"
	"github.com/themis-legal/themis/internal/breaker"
	"github.com/themis-legal/themis/internal/connectors"
	"github.com/themis-legal/themis/internal/llm"
	"github.com/themis-legal/themis/internal/orchestrator/policy"
	"github.com/themis-legal/themis/internal/retry"
	"github.com/themis-legal/themis/internal/state"
	"github.com/themis-legal/themis/internal/tracing"
	"github.com/themis-legal/themis/pkg/models"
)

// DefaultCacheTTL is how long a loaded state snapshot stays fresh.
const DefaultCacheTTL = 60 * time.Second

// Options configures a Service. Zero-value fields get defaults.
type Options struct {
	// Agents is the agent registry. Defaults to the standard four agents
	// backed by the environment-selected LLM client.
	Agents *agents.Registry
	// Repository persists orchestrator state. Defaults to in-memory.
	Repository state.Repository
	// Policy builds graphs and evaluates exit conditions.
	Policy *policy.RoutingPolicy
	// Connectors supplies external data to agents.
	Connectors *connectors.Registry
	// RetryPolicy wraps every agent invocation.
	RetryPolicy *retry.Policy
	// Breakers protects agents that fail repeatedly. Defaults to a
	// registry with the default breaker config.
	Breakers *breaker.Registry
	// CacheTTL bounds how long state reads are served from memory.
	CacheTTL time.Duration
	// TracerFactory builds the per-execution trace recorder.
	TracerFactory func() *tracing.Recorder
}

// Service plans and executes agent workflows. State reads go through an
// in-memory cache with a TTL; every mutation reloads and writes through,
// so concurrent services on one database follow last-writer-wins.
type Service struct {
	repository    state.Repository
	agents        *agents.Registry
	policy        *policy.RoutingPolicy
	connectors    *connectors.Registry
	retryPolicy   retry.Policy
	breakers      *breaker.Registry
	tracerFactory func() *tracing.Recorder
	now           func() time.Time

	mu         sync.Mutex
	state      *state.State
	cacheTTL   time.Duration
	cacheStamp time.Time
}

// NewService creates an orchestrator service.
func NewService(opts Options) *Service {
	s := &Service{
		repository:    opts.Repository,
		agents:        opts.Agents,
		policy:        opts.Policy,
		connectors:    opts.Connectors,
		breakers:      opts.Breakers,
		tracerFactory: opts.TracerFactory,
		cacheTTL:      opts.CacheTTL,
		now:           time.Now,
	}
	if s.repository == nil {
		s.repository = state.NewMemoryRepository()
	}
	if s.agents == nil {
		s.agents = agents.DefaultRegistry(llm.FromEnvironment())
	}
	if s.policy == nil {
		s.policy = policy.New()
	}
	if s.connectors == nil {
		s.connectors = connectors.NewRegistry()
	}
	if opts.RetryPolicy != nil {
		s.retryPolicy = *opts.RetryPolicy
	} else {
		s.retryPolicy = retry.DefaultAgentPolicy()
	}
	if s.breakers == nil {
		s.breakers = breaker.NewRegistry(breaker.DefaultConfig())
	}
	if s.tracerFactory == nil {
		s.tracerFactory = tracing.NewRecorder
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	return s
}

// loadState returns the current state, reading from the repository only
// when the cached copy has aged past the TTL. Callers must hold s.mu.
func (s *Service) loadStateLocked() (*state.State, error) {
	if s.state != nil && s.now().Sub(s.cacheStamp) < s.cacheTTL {
		return s.state, nil
	}
	st, err := s.repository.LoadState()
	if err != nil {
		return nil, err
	}
	s.state = st
	s.cacheStamp = s.now()
	return st, nil
}

// saveStateLocked writes through to the repository and refreshes the
// cache stamp. Callers must hold s.mu.
func (s *Service) saveStateLocked() error {
	if err := s.repository.SaveState(s.state); err != nil {
		return err
	}
	s.cacheStamp = s.now()
	return nil
}

// InvalidateCache drops the cached state so the next read hits the
// repository.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.state = nil
	s.cacheStamp = time.Time{}
	s.mu.Unlock()
}

// Plan creates an executable plan for the matter across the registered
// agents and persists it.
func (s *Service) Plan(ctx context.Context, matter models.Matter) (*models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	validated, err := ValidateMatter(matter, true)
	if err != nil {
		return nil, err
	}

	graph, err := s.policy.BuildGraph(validated)
	if err != nil {
		return nil, err
	}
	steps, err := graph.ToLinearSteps()
	if err != nil {
		return nil, err
	}

	plan := &models.Plan{
		PlanID:     uuid.NewString(),
		Status:     models.StatusPlanned,
		Matter:     models.CopyMap(validated),
		Graph:      graph.ToDoc(),
		Steps:      steps,
		Connectors: s.connectors.Catalogue(),
	}

	phases := make([]string, len(steps))
	for i, step := range steps {
		phases[i] = step.Phase
	}
	log.Printf("[orchestrator] planned %s with phases %v", plan.PlanID, phases)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadStateLocked()
	if err != nil {
		return nil, err
	}
	st.RememberPlan(plan.PlanID, plan)
	if err := s.saveStateLocked(); err != nil {
		return nil, err
	}
	return plan.Clone(), nil
}

// GetPlan retrieves a persisted plan by identifier.
func (s *Service) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadStateLocked()
	if err != nil {
		return nil, err
	}
	plan := st.RecallPlan(planID)
	if plan == nil {
		return nil, &PlanNotFoundError{PlanID: planID}
	}
	return plan, nil
}

// GetArtifacts retrieves the artifacts of a plan's latest execution.
func (s *Service) GetArtifacts(ctx context.Context, planID string) (map[string]any, error) {
	record, err := s.GetExecution(ctx, planID)
	if err != nil {
		return nil, err
	}
	return record.Artifacts, nil
}

// GetExecution retrieves the full execution record for a plan.
func (s *Service) GetExecution(ctx context.Context, planID string) (*models.ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadStateLocked()
	if err != nil {
		return nil, err
	}
	record := st.RecallExecution(planID)
	if record == nil {
		return nil, &ExecutionNotFoundError{PlanID: planID}
	}
	return record, nil
}

// BreakerStats exposes per-agent circuit breaker statistics.
func (s *Service) BreakerStats() map[string]breaker.Stats {
	return s.breakers.AllStats()
}

// resolvePlan loads the plan to execute. With a plan ID it recalls the
// stored plan, overriding its matter when one is supplied; otherwise it
// creates a fresh plan from the matter.
func (s *Service) resolvePlan(ctx context.Context, matter models.Matter, planID string) (*models.Plan, error) {
	validated, validatedID, err := ValidateExecuteParams(matter, planID)
	if err != nil {
		return nil, err
	}

	if validatedID == "" {
		return s.Plan(ctx, validated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadStateLocked()
	if err != nil {
		return nil, err
	}
	plan := st.RecallPlan(validatedID)
	if plan == nil {
		return nil, &PlanNotFoundError{PlanID: validatedID}
	}
	if validated != nil {
		plan.Matter = models.CopyMap(validated)
		st.RememberPlan(validatedID, plan)
		if err := s.saveStateLocked(); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// persistOutcome stores the final plan and execution record.
func (s *Service) persistOutcome(plan *models.Plan, record *models.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadStateLocked()
	if err != nil {
		return err
	}
	st.RememberPlan(plan.PlanID, plan)
	st.RememberExecution(plan.PlanID, record)
	return s.saveStateLocked()
}
