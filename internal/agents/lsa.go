package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/themis-legal/themis/internal/llm"
)

// StrategyAgent (lsa) develops the case strategy from the accumulated
// facts and issues. When scheduled as a supporting agent with the
// strategy_review role it instead reviews the primary agent's output.
type StrategyAgent struct {
	baseAgent
}

// NewStrategyAgent returns the strategy agent.
func NewStrategyAgent(client llm.Client) *StrategyAgent {
	return &StrategyAgent{baseAgent{name: "lsa", client: client}}
}

// Run implements Agent.
func (a *StrategyAgent) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	if stringField(input, "support_role") == "strategy_review" {
		return a.review(ctx, input)
	}
	return a.strategize(ctx, input)
}

func (a *StrategyAgent) strategize(ctx context.Context, input map[string]any) (map[string]any, error) {
	issues := a.collectIssues(input)

	objectives := []any{"Resolve the matter on terms favorable to the client."}
	actions := []any{"Complete factual investigation.", "Confirm the evidentiary record supports each element."}
	var leverage []any
	var contingencies []any

	for _, issue := range issues {
		objectives = append(objectives, fmt.Sprintf("Establish liability for %s.", issue))
		actions = append(actions, fmt.Sprintf("Develop the proof required for %s.", issue))
	}
	if facts := a.primaryFacts(input); facts != nil {
		if kf := sliceField(facts, "key_facts"); len(kf) > 0 {
			leverage = append(leverage, fmt.Sprintf("Documented record of %d key facts.", len(kf)))
		}
	}
	if len(issues) == 0 {
		contingencies = append(contingencies, "If no actionable issue emerges, advise the client on alternative resolution.")
	} else {
		contingencies = append(contingencies, "If dispositive motions fail, prepare a negotiated settlement posture.")
	}

	a.emit("tool_invoked", map[string]any{"agent": a.name, "tool": "strategy_template", "issues": len(issues)})

	var issueLines []string
	for _, issue := range issues {
		issueLines = append(issueLines, "- "+issue)
	}
	narrative, err := a.client.GenerateText(ctx, llm.Request{
		System: "You develop litigation and negotiation strategy for legal matters.",
		Prompt: fmt.Sprintf("Matter Context: %s\n\nLegal Issues Identified:\n%s\n\nOutline the recommended strategy.",
			stringField(input, "summary"), strings.Join(issueLines, "\n")),
	})
	if err != nil {
		return nil, fmt.Errorf("strategy narrative: %w", err)
	}

	return map[string]any{
		"strategy": map[string]any{
			"objectives":      objectives,
			"actions":         actions,
			"leverage_points": leverage,
			"contingencies":   contingencies,
			"assumptions":     []any{"The factual record supplied is accurate and complete."},
			"narrative":       narrative,
		},
		"provenance": map[string]any{
			"agent":      a.name,
			"tools_used": []any{"strategy_template", "risk_assessor"},
		},
	}, nil
}

// review checks the primary agent's output for the pieces a reviewer
// would flag before a document goes out.
func (a *StrategyAgent) review(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	primary := mapField(input, "primary_output")
	var comments []any
	approved := true

	doc := mapField(primary, "document")
	if doc == nil {
		approved = false
		comments = append(comments, "Primary output contains no document to review.")
	} else {
		if stringField(doc, "full_text") == "" {
			approved = false
			comments = append(comments, "Document is missing its full text.")
		}
		if wc, ok := numericField(doc, "word_count"); ok && wc < 50 {
			comments = append(comments, "Document is unusually short for its type.")
		}
	}
	if validation := mapField(primary, "validation"); validation != nil {
		if missing := sliceField(validation, "missing_elements"); len(missing) > 0 {
			approved = false
			for _, m := range missing {
				comments = append(comments, fmt.Sprintf("Missing document element: %v", m))
			}
		}
	}

	a.emit("tool_invoked", map[string]any{
		"agent":    a.name,
		"tool":     "strategy_review",
		"approved": approved,
		"primary":  stringField(input, "primary_agent"),
	})

	return map[string]any{
		"review": map[string]any{
			"approved":       approved,
			"comments":       comments,
			"reviewed_agent": stringField(input, "primary_agent"),
			"phase":          stringField(input, "phase"),
		},
		"provenance": map[string]any{
			"agent":      a.name,
			"tools_used": []any{"strategy_review"},
		},
	}, nil
}

func (a *StrategyAgent) collectIssues(input map[string]any) []string {
	var out []string
	for _, issue := range sliceField(input, "issues") {
		if m, ok := issue.(map[string]any); ok {
			if s := stringField(m, "issue"); s != "" {
				out = append(out, s)
			}
		} else if s, ok := issue.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a *StrategyAgent) primaryFacts(input map[string]any) map[string]any {
	return mapField(input, "facts")
}

var _ Agent = (*StrategyAgent)(nil)
