// Package policy decides which agent phases a matter requires and whether a
// completed step actually produced the signals its phase promised.
package policy

import (
	"github.com/themis-legal/themis/internal/taskgraph"
	"github.com/themis-legal/themis/pkg/models"
)

// Agent registry names for the built-in workflow phases.
const (
	AgentLDA = "lda" // legal document analysis
	AgentDEA = "dea" // doctrine and evidence analysis
	AgentLSA = "lsa" // legal strategy
	AgentDDA = "dda" // document drafting
)

// Phase labels attached to graph nodes.
const (
	PhaseFactAnalysis     = "fact_analysis"
	PhaseEvidenceAnalysis = "evidence_analysis"
	PhaseStrategy         = "strategy"
	PhaseDrafting         = "drafting"
)

// phaseSignals maps each phase to the signals it must leave behind in the
// accumulated context for downstream phases to build on.
var phaseSignals = map[string][]string{
	PhaseFactAnalysis:     {"facts"},
	PhaseEvidenceAnalysis: {"authorities"},
	PhaseStrategy:         {"strategy"},
	PhaseDrafting:         {"document"},
}

// RoutingPolicy translates a matter into an executable task graph and
// evaluates exit conditions after each step.
type RoutingPolicy struct{}

// New returns the default routing policy.
func New() *RoutingPolicy {
	return &RoutingPolicy{}
}

// BuildGraph derives the required agent phases from the matter's content
// and wires their dependency edges. The same matter always yields the same
// graph; the input is never mutated.
//
// The fact-analysis and strategy phases always run. Evidence analysis runs
// only when the matter carries documents to analyze. Drafting always runs
// and depends on every upstream analysis phase. When the matter's metadata
// requests a review, the drafting step gains a supporting strategy-review
// run.
func (p *RoutingPolicy) BuildGraph(matter models.Matter) (*taskgraph.Graph, error) {
	g := taskgraph.New()

	if err := g.AddNode(&models.Node{
		ID:    AgentLDA,
		Agent: AgentLDA,
		Phase: PhaseFactAnalysis,
		ExpectedArtifacts: []models.ArtifactSpec{
			{Name: "facts", Description: "Key facts extracted from the matter"},
			{Name: "timeline", Description: "Chronology of relevant events"},
		},
	}); err != nil {
		return nil, err
	}

	draftingDeps := []string{AgentLDA}
	strategyDeps := []string{AgentLDA}

	if hasDocuments(matter) {
		if err := g.AddNode(&models.Node{
			ID:           AgentDEA,
			Agent:        AgentDEA,
			Phase:        PhaseEvidenceAnalysis,
			Dependencies: []string{AgentLDA},
			ExpectedArtifacts: []models.ArtifactSpec{
				{Name: "authorities", Description: "Controlling and persuasive authorities"},
				{Name: "issues", Description: "Legal issues spotted in the documents"},
			},
		}); err != nil {
			return nil, err
		}
		strategyDeps = append(strategyDeps, AgentDEA)
		draftingDeps = append(draftingDeps, AgentDEA)
	}

	if err := g.AddNode(&models.Node{
		ID:           AgentLSA,
		Agent:        AgentLSA,
		Phase:        PhaseStrategy,
		Dependencies: strategyDeps,
		ExpectedArtifacts: []models.ArtifactSpec{
			{Name: "strategy", Description: "Recommended strategy and objectives"},
		},
	}); err != nil {
		return nil, err
	}
	draftingDeps = append(draftingDeps, AgentLSA)

	drafting := &models.Node{
		ID:           AgentDDA,
		Agent:        AgentDDA,
		Phase:        PhaseDrafting,
		Dependencies: draftingDeps,
		ExpectedArtifacts: []models.ArtifactSpec{
			{Name: "document", Description: "Drafted legal document"},
		},
		RequiredConnectors: []string{"document_templates"},
	}
	if reviewRequested(matter) {
		drafting.SupportingAgents = []models.SupportSpec{{
			Agent:       AgentLSA,
			Role:        "strategy_review",
			Description: "Verify the drafted document follows the recommended strategy",
			ExpectedArtifacts: []models.ArtifactSpec{
				{Name: "review", Description: "Strategy-alignment review of the draft"},
			},
		}}
	}
	if err := g.AddNode(drafting); err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// EvaluateExitConditions returns the names of required signals absent from
// the accumulated context after the step completed. An empty result means
// the step is genuinely complete; a non-empty result demotes the step to
// attention_required rather than failed. The function is pure: the same
// step and context always yield the same list.
func (p *RoutingPolicy) EvaluateExitConditions(step *models.Step, context map[string]any) []string {
	var missing []string
	seen := make(map[string]bool)

	check := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		if !present(context, name) {
			missing = append(missing, name)
		}
	}

	for _, artifact := range step.ExpectedArtifacts {
		check(artifact.Name)
	}
	for _, signal := range phaseSignals[step.Phase] {
		check(signal)
	}

	return missing
}

func present(context map[string]any, name string) bool {
	v, ok := context[name]
	return ok && v != nil
}

func hasDocuments(matter models.Matter) bool {
	docs, ok := matter["documents"]
	if !ok {
		return false
	}
	switch d := docs.(type) {
	case []any:
		return len(d) > 0
	case []map[string]any:
		return len(d) > 0
	default:
		return false
	}
}

func reviewRequested(matter models.Matter) bool {
	meta, ok := matter["metadata"].(map[string]any)
	if !ok {
		return false
	}
	requested, ok := meta["review_requested"].(bool)
	return ok && requested
}
