// Package agents implements the worker agents the orchestrator schedules:
// fact analysis (lda), evidence analysis (dea), strategy (lsa), and
// document drafting (dda). Agents take a matter-shaped input map and
// return a result map whose top-level keys carry the artifacts downstream
// steps consume.
package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/themis-legal/themis/internal/llm"
)

// Agent runs one analysis over an input map and returns its output map.
type Agent interface {
	Name() string
	Run(ctx context.Context, input map[string]any) (map[string]any, error)
}

// TraceFunc records a named event with fields during an agent run.
type TraceFunc func(name string, fields map[string]any)

// TracerAware is implemented by agents that emit their own trace events.
type TracerAware interface {
	SetTracer(trace TraceFunc)
}

// NotFoundError reports a request for an agent that is not registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent %q is not registered", e.Name)
}

// Registry maps agent names to instances.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// DefaultRegistry returns a registry with the four standard agents, all
// backed by the given text generator.
func DefaultRegistry(client llm.Client) *Registry {
	r := NewRegistry()
	r.Register(NewFactAnalysisAgent(client))
	r.Register(NewEvidenceAnalysisAgent(client))
	r.Register(NewStrategyAgent(client))
	r.Register(NewDraftingAgent(client))
	return r
}

// Register adds or replaces an agent under its name.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get returns the named agent.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return a, nil
}

// Names lists registered agent names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for name := range r.agents {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// baseAgent carries the pieces every concrete agent shares.
type baseAgent struct {
	name   string
	client llm.Client

	mu    sync.Mutex
	trace TraceFunc
}

func (b *baseAgent) Name() string { return b.name }

// SetTracer implements TracerAware.
func (b *baseAgent) SetTracer(trace TraceFunc) {
	b.mu.Lock()
	b.trace = trace
	b.mu.Unlock()
}

func (b *baseAgent) emit(name string, fields map[string]any) {
	b.mu.Lock()
	trace := b.trace
	b.mu.Unlock()
	if trace != nil {
		trace(name, fields)
	}
}

// stringField reads a string from the map, walking into nested maps for
// dotted fallbacks at call sites.
func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// numericField reads a number regardless of whether the map came from a
// JSON round trip (float64) or was built in process (int).
func numericField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func sliceField(m map[string]any, key string) []any {
	switch v := m[key].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out
	}
	return nil
}

// stringsOf converts a loose slice into its string elements, stringifying
// map entries by their "name" or "title" key when present.
func stringsOf(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if name := stringField(v, "name"); name != "" {
				out = append(out, name)
			} else if title := stringField(v, "title"); title != "" {
				out = append(out, title)
			}
		}
	}
	return out
}
