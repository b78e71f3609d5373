package models

// Status represents the lifecycle state of a plan, step, or execution.
type Status string

const (
	// StatusPlanned indicates a plan was created but not yet executed.
	StatusPlanned Status = "planned"
	// StatusPending indicates a step has not been executed yet.
	StatusPending Status = "pending"
	// StatusComplete indicates a step or execution finished successfully.
	StatusComplete Status = "complete"
	// StatusFailed indicates a step or execution failed.
	StatusFailed Status = "failed"
	// StatusAttentionRequired indicates an agent ran without error but did
	// not produce every signal its phase promised.
	StatusAttentionRequired Status = "attention_required"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusPending, StatusComplete, StatusFailed, StatusAttentionRequired:
		return true
	default:
		return false
	}
}

// ArtifactSpec declares a named output a step is expected to produce.
type ArtifactSpec struct {
	// Name is the key under which the artifact surfaces in agent output.
	Name string `json:"name"`
	// Description explains what the artifact contains.
	Description string `json:"description,omitempty"`
}

// SupportSpec declares a secondary agent that runs after a step's primary
// agent succeeds and contributes additional required output to the step.
type SupportSpec struct {
	// Agent is the registry name of the supporting agent.
	Agent string `json:"agent"`
	// Role describes the supporting agent's responsibility within the step.
	Role string `json:"role,omitempty"`
	// Description explains why the support run is needed.
	Description string `json:"description,omitempty"`
	// ExpectedArtifacts lists outputs the supporting run should surface.
	ExpectedArtifacts []ArtifactSpec `json:"expected_artifacts,omitempty"`
}

// SupportResult records the outcome of one supporting-agent run.
type SupportResult struct {
	Agent       string `json:"agent"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	// Output is the raw supporting-agent output, present on success.
	Output map[string]any `json:"output,omitempty"`
	// Error holds the failure message, present on failure.
	Error string `json:"error,omitempty"`
	// Artifacts holds declared artifacts hoisted out of the output.
	Artifacts map[string]any `json:"artifacts,omitempty"`
	// RetryAttempts is set when the run needed more than one attempt.
	RetryAttempts int `json:"retry_attempts,omitempty"`
}

// Node is one agent invocation slot in a task graph. Nodes are plain data so
// a plan can persist its graph and reconstruct it on every execute call.
type Node struct {
	// ID uniquely identifies the node within its graph.
	ID string `json:"id"`
	// Agent is the registry name of the agent to invoke.
	Agent string `json:"agent"`
	// Dependencies lists node IDs that must complete before this node runs.
	Dependencies []string `json:"dependencies,omitempty"`
	// ExpectedArtifacts lists named outputs this node should surface.
	ExpectedArtifacts []ArtifactSpec `json:"expected_artifacts,omitempty"`
	// Phase labels the workflow phase this node belongs to.
	Phase string `json:"phase,omitempty"`
	// RequiredConnectors lists connector names resolved into the agent input.
	RequiredConnectors []string `json:"required_connectors,omitempty"`
	// SupportingAgents lists secondary agents run after the primary succeeds.
	SupportingAgents []SupportSpec `json:"supporting_agents,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Dependencies = append([]string(nil), n.Dependencies...)
	out.ExpectedArtifacts = cloneArtifactSpecs(n.ExpectedArtifacts)
	out.RequiredConnectors = append([]string(nil), n.RequiredConnectors...)
	out.SupportingAgents = cloneSupportSpecs(n.SupportingAgents)
	return &out
}

// GraphDoc is the serialized form of a task graph. Node order is
// significant: it records insertion order, which breaks topological ties.
type GraphDoc struct {
	Nodes []*Node `json:"nodes"`
}

// Clone returns a deep copy of the graph document.
func (g *GraphDoc) Clone() *GraphDoc {
	if g == nil {
		return nil
	}
	out := &GraphDoc{Nodes: make([]*Node, len(g.Nodes))}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	return out
}

// Step is the linear projection of one graph node plus its execution
// outcome. Steps are created at plan time with StatusPending and mutated in
// place as execution progresses.
type Step struct {
	ID                 string         `json:"id"`
	Agent              string         `json:"agent"`
	Dependencies       []string       `json:"dependencies,omitempty"`
	ExpectedArtifacts  []ArtifactSpec `json:"expected_artifacts,omitempty"`
	Phase              string         `json:"phase,omitempty"`
	RequiredConnectors []string       `json:"required_connectors,omitempty"`
	SupportingAgents   []SupportSpec  `json:"supporting_agents,omitempty"`
	Status             Status         `json:"status,omitempty"`
	// Output is the primary agent's raw output, present once complete.
	Output map[string]any `json:"output,omitempty"`
	// Error holds the failure message for failed steps.
	Error string `json:"error,omitempty"`
	// Artifacts holds declared artifacts hoisted out of the output by name.
	Artifacts map[string]any `json:"artifacts,omitempty"`
	// RetryAttempts is set when the primary run needed more than one attempt.
	RetryAttempts int `json:"retry_attempts,omitempty"`
	// SupportingOutputs records each supporting-agent run for this step.
	SupportingOutputs []*SupportResult `json:"supporting_outputs,omitempty"`
	// MissingSignals lists exit-condition signals absent after completion.
	MissingSignals []string `json:"missing_signals,omitempty"`
}

// Clone returns a deep copy of the step, including outputs and artifacts.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	out := *s
	out.Dependencies = append([]string(nil), s.Dependencies...)
	out.ExpectedArtifacts = cloneArtifactSpecs(s.ExpectedArtifacts)
	out.RequiredConnectors = append([]string(nil), s.RequiredConnectors...)
	out.SupportingAgents = cloneSupportSpecs(s.SupportingAgents)
	out.Output = CopyMap(s.Output)
	out.Artifacts = CopyMap(s.Artifacts)
	out.MissingSignals = append([]string(nil), s.MissingSignals...)
	if s.SupportingOutputs != nil {
		out.SupportingOutputs = make([]*SupportResult, len(s.SupportingOutputs))
		for i, sr := range s.SupportingOutputs {
			c := *sr
			c.Output = CopyMap(sr.Output)
			c.Artifacts = CopyMap(sr.Artifacts)
			out.SupportingOutputs[i] = &c
		}
	}
	return &out
}

// ConnectorInfo describes one connector available to agents.
type ConnectorInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// Plan is a persisted task graph plus metadata for one matter. Plans are
// created by Plan(), mutated (status, steps) by the execute variants, and
// never deleted by the engine itself.
type Plan struct {
	PlanID string `json:"plan_id"`
	Status Status `json:"status"`
	// Matter is a snapshot of the validated input payload.
	Matter Matter `json:"matter"`
	// Graph is the serialized task graph reconstructed on every execution.
	Graph *GraphDoc `json:"graph,omitempty"`
	// Steps is the linear projection of the graph in topological order.
	Steps []*Step `json:"steps"`
	// Connectors is the catalogue of connectors available at plan time.
	Connectors []ConnectorInfo `json:"connectors,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Matter = CopyMap(p.Matter)
	out.Graph = p.Graph.Clone()
	out.Steps = make([]*Step, len(p.Steps))
	for i, s := range p.Steps {
		out.Steps[i] = s.Clone()
	}
	out.Connectors = append([]ConnectorInfo(nil), p.Connectors...)
	return &out
}

// StepByID returns the plan step with the given ID, or nil if absent.
func (p *Plan) StepByID(id string) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func cloneArtifactSpecs(in []ArtifactSpec) []ArtifactSpec {
	return append([]ArtifactSpec(nil), in...)
}

func cloneSupportSpecs(in []SupportSpec) []SupportSpec {
	if in == nil {
		return nil
	}
	out := make([]SupportSpec, len(in))
	for i, s := range in {
		out[i] = s
		out[i].ExpectedArtifacts = cloneArtifactSpecs(s.ExpectedArtifacts)
	}
	return out
}
