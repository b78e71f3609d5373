package agents

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/themis-legal/themis/internal/llm"
)

// FactAnalysisAgent (lda) extracts the fact pattern from a matter: a
// summary of each document, the parties involved, and a chronological
// timeline of dated events.
type FactAnalysisAgent struct {
	baseAgent
}

// NewFactAnalysisAgent returns the fact analysis agent.
func NewFactAnalysisAgent(client llm.Client) *FactAnalysisAgent {
	return &FactAnalysisAgent{baseAgent{name: "lda", client: client}}
}

var isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

// Run implements Agent.
func (a *FactAnalysisAgent) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	summary := stringField(input, "summary")
	parties := stringsOf(sliceField(input, "parties"))
	documents := sliceField(input, "documents")

	a.emit("tool_invoked", map[string]any{"agent": a.name, "tool": "document_parser", "documents": len(documents)})

	var factSummaries []any
	var keyFacts []any
	var timeline []any
	seenDates := map[string]bool{}

	for _, doc := range documents {
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		title := stringField(m, "title")
		if title == "" {
			title = "untitled document"
		}
		text := stringField(m, "text")
		if text == "" {
			text = stringField(m, "content")
		}

		factSummaries = append(factSummaries, fmt.Sprintf("%s: %s", title, firstSentence(text)))
		if text != "" {
			keyFacts = append(keyFacts, firstSentence(text))
		}

		for _, date := range isoDatePattern.FindAllString(text, -1) {
			if seenDates[date] {
				continue
			}
			seenDates[date] = true
			timeline = append(timeline, map[string]any{
				"date":        date,
				"description": fmt.Sprintf("Event referenced in %s", title),
				"source":      title,
			})
		}
	}

	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].(map[string]any)["date"].(string) < timeline[j].(map[string]any)["date"].(string)
	})

	a.emit("tool_invoked", map[string]any{"agent": a.name, "tool": "timeline_builder", "events": len(timeline)})

	partiesAny := make([]any, len(parties))
	for i, p := range parties {
		partiesAny[i] = p
	}

	narrative, err := a.client.GenerateText(ctx, llm.Request{
		System: "You analyze legal matters and summarize their fact patterns.",
		Prompt: fmt.Sprintf("Matter Context: %s\nParties: %s\n\nSummarize the fact pattern.", summary, strings.Join(parties, ", ")),
	})
	if err != nil {
		return nil, fmt.Errorf("fact narrative: %w", err)
	}

	var unresolved []any
	if len(documents) == 0 {
		unresolved = append(unresolved, "No documents were provided; the fact pattern rests on the matter summary alone.")
	}

	return map[string]any{
		"facts": map[string]any{
			"fact_pattern_summary": factSummaries,
			"parties":              partiesAny,
			"key_facts":            keyFacts,
			"narrative":            narrative,
		},
		"timeline": timeline,
		"provenance": map[string]any{
			"agent":      a.name,
			"tools_used": []any{"document_parser", "timeline_builder"},
		},
		"unresolved_issues": unresolved,
	}, nil
}

// firstSentence returns the text up to the first period, trimmed.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, ". "); idx > 0 {
		return text[:idx+1]
	}
	if len(text) > 200 {
		return text[:200]
	}
	return text
}

var _ Agent = (*FactAnalysisAgent)(nil)
var _ TracerAware = (*FactAnalysisAgent)(nil)
