package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/themis-legal/themis/internal/llm"
)

// EvidenceAnalysisAgent (dea) spots legal issues in the matter text and
// retrieves citable authority for each, preferring the case_law connector
// payload when the orchestrator resolved one.
type EvidenceAnalysisAgent struct {
	baseAgent
}

// NewEvidenceAnalysisAgent returns the evidence analysis agent.
func NewEvidenceAnalysisAgent(client llm.Client) *EvidenceAnalysisAgent {
	return &EvidenceAnalysisAgent{baseAgent{name: "dea", client: client}}
}

var issueKeywords = []struct {
	issue    string
	area     string
	keywords []string
}{
	{"breach of contract", "contract", []string{"contract", "agreement", "breach"}},
	{"negligence", "tort", []string{"negligen", "duty of care", "injur"}},
	{"fraud or misrepresentation", "tort", []string{"fraud", "misrepresent", "deceit"}},
	{"breach of warranty", "contract", []string{"warranty", "merchantab"}},
	{"employment dispute", "employment", []string{"terminat", "wrongful discharge", "discriminat"}},
	{"statute of limitations", "procedure", []string{"limitations", "time-barred", "untimely"}},
}

// Run implements Agent.
func (a *EvidenceAnalysisAgent) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	text := a.gatherText(input)

	var issues []any
	var areas []string
	seenArea := map[string]bool{}
	for _, entry := range issueKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				issues = append(issues, map[string]any{
					"issue":         entry.issue,
					"practice_area": entry.area,
				})
				if !seenArea[entry.area] {
					seenArea[entry.area] = true
					areas = append(areas, entry.area)
				}
				break
			}
		}
	}

	a.emit("tool_invoked", map[string]any{"agent": a.name, "tool": "issue_spotter", "issues": len(issues)})

	authorities := a.lookupAuthorities(input, areas)

	a.emit("tool_invoked", map[string]any{"agent": a.name, "tool": "citation_retriever", "authorities": len(authorities)})

	var issueLines []string
	for _, iss := range issues {
		issueLines = append(issueLines, "- "+stringField(iss.(map[string]any), "issue"))
	}
	narrative, err := a.client.GenerateText(ctx, llm.Request{
		System: "You analyze evidence and legal issues in litigation matters.",
		Prompt: fmt.Sprintf("Matter Context: %s\n\nLegal Issues Identified:\n%s\n\nAssess the strength of the evidence.",
			stringField(input, "summary"), strings.Join(issueLines, "\n")),
	})
	if err != nil {
		return nil, fmt.Errorf("evidence narrative: %w", err)
	}

	var unresolved []any
	if len(issues) == 0 {
		unresolved = append(unresolved, "No legal issues could be identified from the matter text.")
	}

	return map[string]any{
		"issues":      issues,
		"authorities": authorities,
		"analysis":    narrative,
		"provenance": map[string]any{
			"agent":      a.name,
			"tools_used": []any{"issue_spotter", "citation_retriever"},
		},
		"unresolved_issues": unresolved,
	}, nil
}

func (a *EvidenceAnalysisAgent) gatherText(input map[string]any) string {
	var parts []string
	if s := stringField(input, "summary"); s != "" {
		parts = append(parts, s)
	}
	for _, doc := range sliceField(input, "documents") {
		if m, ok := doc.(map[string]any); ok {
			parts = append(parts, stringField(m, "title"), stringField(m, "text"), stringField(m, "content"))
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// lookupAuthorities pulls citations for the spotted practice areas from
// the case_law connector payload, falling back to the built-in digest.
func (a *EvidenceAnalysisAgent) lookupAuthorities(input map[string]any, areas []string) []any {
	digests := fallbackDigests
	if conns := mapField(input, "connectors"); conns != nil {
		if caseLaw := mapField(conns, "case_law"); caseLaw != nil {
			if d := mapField(caseLaw, "digests"); d != nil {
				digests = d
			}
		}
	}

	var out []any
	for _, area := range areas {
		entries, ok := digests[area].([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			if m, ok := entry.(map[string]any); ok {
				out = append(out, map[string]any{
					"citation":      stringField(m, "citation"),
					"principle":     stringField(m, "principle"),
					"practice_area": area,
				})
			}
		}
	}
	return out
}

var fallbackDigests = map[string]any{
	"contract": []any{
		map[string]any{"citation": "Hadley v. Baxendale, 9 Ex. 341 (1854)", "principle": "consequential damages must be foreseeable"},
	},
	"tort": []any{
		map[string]any{"citation": "Palsgraf v. Long Island R.R., 248 N.Y. 339 (1928)", "principle": "duty limited by foreseeable plaintiffs"},
	},
	"procedure": []any{
		map[string]any{"citation": "Ashcroft v. Iqbal, 556 U.S. 662 (2009)", "principle": "pleading plausibility standard"},
	},
	"employment": []any{
		map[string]any{"citation": "McDonnell Douglas Corp. v. Green, 411 U.S. 792 (1973)", "principle": "burden-shifting framework for discrimination claims"},
	},
}

var _ Agent = (*EvidenceAnalysisAgent)(nil)
