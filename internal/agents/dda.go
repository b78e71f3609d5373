package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/themis-legal/themis/internal/llm"
)

// DraftingAgent (dda) assembles a formal legal document from the facts,
// authorities, and strategy produced upstream. Section outlines come from
// the document_templates connector when resolved, with built-in skeletons
// as a fallback.
type DraftingAgent struct {
	baseAgent
}

// NewDraftingAgent returns the document drafting agent.
func NewDraftingAgent(client llm.Client) *DraftingAgent {
	return &DraftingAgent{baseAgent{name: "dda", client: client}}
}

var builtinSections = map[string][]string{
	DocTypeComplaint:    {"caption", "parties", "jurisdiction", "factual_allegations", "causes_of_action", "prayer_for_relief"},
	DocTypeMotion:       {"caption", "introduction", "statement_of_facts", "argument", "conclusion"},
	DocTypeMemorandum:   {"question_presented", "brief_answer", "facts", "discussion", "conclusion"},
	DocTypeDemandLetter: {"introduction", "factual_background", "legal_basis", "demand", "deadline"},
	DocTypeBrief:        {"statement_of_issues", "statement_of_the_case", "argument", "conclusion"},
	DocTypeAnswer:       {"caption", "admissions_and_denials", "affirmative_defenses", "prayer"},
}

// Run implements Agent.
func (a *DraftingAgent) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	docType := a.resolveDocumentType(input)
	jurisdiction := a.resolveJurisdiction(input)
	outline := a.sectionOutline(input, docType)

	a.emit("tool_invoked", map[string]any{"agent": a.name, "tool": "section_generator", "document_type": docType, "sections": len(outline)})

	sections := make(map[string]any, len(outline))
	var missing []any
	for _, name := range outline {
		content := a.sectionContent(name, input)
		sections[name] = content
		if content == "" {
			missing = append(missing, name)
		}
	}

	narrative, err := a.client.GenerateText(ctx, llm.Request{
		System: "You draft formal legal documents in modern legal prose.",
		Prompt: fmt.Sprintf("Matter Context: %s\n\nDraft the discussion portion of a %s for %s jurisdiction.",
			stringField(input, "summary"), docType, jurisdiction),
	})
	if err != nil {
		return nil, fmt.Errorf("document narrative: %w", err)
	}
	if body, ok := a.bodySection(docType); ok {
		if existing, present := sections[body].(string); present {
			if existing == "" {
				sections[body] = narrative
				missing = removeElement(missing, body)
			} else {
				sections[body] = existing + "\n\n" + narrative
			}
		}
	}

	fullText := a.compose(docType, outline, sections)
	wordCount := len(strings.Fields(fullText))
	pageEstimate := wordCount/250 + 1

	a.emit("tool_invoked", map[string]any{"agent": a.name, "tool": "document_composer", "words": wordCount})

	return map[string]any{
		"document": map[string]any{
			"full_text":     fullText,
			"sections":      sections,
			"word_count":    wordCount,
			"page_estimate": pageEstimate,
		},
		"metadata": map[string]any{
			"document_type": docType,
			"jurisdiction":  jurisdiction,
			"word_count":    wordCount,
			"section_count": len(outline),
		},
		"validation": map[string]any{
			"complete":         len(missing) == 0,
			"missing_elements": missing,
		},
		"tone_analysis": map[string]any{
			"tone":   "formal",
			"issues": []any{},
		},
		"provenance": map[string]any{
			"agent":      a.name,
			"tools_used": []any{"section_generator", "document_composer", "document_validator"},
		},
	}, nil
}

// resolveDocumentType honors the type the orchestrator pinned on the
// input before falling back to metadata and detection.
func (a *DraftingAgent) resolveDocumentType(input map[string]any) string {
	if dt := stringField(input, "document_type"); dt != "" {
		return dt
	}
	if meta := mapField(input, "metadata"); meta != nil {
		if dt := stringField(meta, "document_type"); dt != "" {
			return dt
		}
	}
	return DetectDocumentType(input)
}

func (a *DraftingAgent) resolveJurisdiction(input map[string]any) string {
	if j := stringField(input, "jurisdiction"); j != "" {
		return j
	}
	if meta := mapField(input, "metadata"); meta != nil {
		if j := stringField(meta, "jurisdiction"); j != "" {
			return j
		}
	}
	return "federal"
}

func (a *DraftingAgent) sectionOutline(input map[string]any, docType string) []string {
	if conns := mapField(input, "connectors"); conns != nil {
		if tmpl := mapField(conns, "document_templates"); tmpl != nil {
			if templates := mapField(tmpl, "templates"); templates != nil {
				if entry := mapField(templates, docType); entry != nil {
					if sections := stringsOf(sliceField(entry, "sections")); len(sections) > 0 {
						return sections
					}
				}
			}
		}
	}
	if sections, ok := builtinSections[docType]; ok {
		return sections
	}
	return builtinSections[DocTypeMemorandum]
}

// sectionContent fills a section from the upstream artifacts that map to
// it. Sections with no matching artifact stay empty and are reported as
// missing elements.
func (a *DraftingAgent) sectionContent(name string, input map[string]any) string {
	switch name {
	case "caption", "parties":
		parties := stringsOf(sliceField(input, "parties"))
		if len(parties) == 0 {
			if facts := mapField(input, "facts"); facts != nil {
				parties = stringsOf(sliceField(facts, "parties"))
			}
		}
		if len(parties) > 0 {
			return "In the matter of " + strings.Join(parties, " v. ")
		}
	case "facts", "statement_of_facts", "factual_allegations", "factual_background", "statement_of_the_case":
		if facts := mapField(input, "facts"); facts != nil {
			lines := stringsOfLoose(sliceField(facts, "fact_pattern_summary"))
			if len(lines) > 0 {
				return strings.Join(lines, "\n")
			}
			if n := stringField(facts, "narrative"); n != "" {
				return n
			}
		}
		if s := stringField(input, "summary"); s != "" {
			return s
		}
	case "argument", "discussion", "legal_basis", "causes_of_action":
		var lines []string
		for _, auth := range sliceField(input, "authorities") {
			if m, ok := auth.(map[string]any); ok {
				lines = append(lines, fmt.Sprintf("%s (%s)", stringField(m, "principle"), stringField(m, "citation")))
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	case "introduction", "question_presented", "statement_of_issues":
		if s := stringField(input, "summary"); s != "" {
			return s
		}
	case "conclusion", "brief_answer", "prayer", "prayer_for_relief", "demand":
		if strategy := mapField(input, "strategy"); strategy != nil {
			objectives := stringsOfLoose(sliceField(strategy, "objectives"))
			if len(objectives) > 0 {
				return strings.Join(objectives, "\n")
			}
		}
	case "jurisdiction":
		return "This tribunal has jurisdiction over the parties and the subject matter."
	}
	return ""
}

// bodySection names the section that receives generated prose.
func (a *DraftingAgent) bodySection(docType string) (string, bool) {
	switch docType {
	case DocTypeMemorandum:
		return "discussion", true
	case DocTypeMotion, DocTypeBrief:
		return "argument", true
	case DocTypeComplaint:
		return "causes_of_action", true
	case DocTypeDemandLetter:
		return "legal_basis", true
	case DocTypeAnswer:
		return "admissions_and_denials", true
	}
	return "", false
}

func (a *DraftingAgent) compose(docType string, outline []string, sections map[string]any) string {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(strings.ReplaceAll(docType, "_", " ")))
	sb.WriteString("\n")
	for _, name := range outline {
		sb.WriteString("\n")
		sb.WriteString(strings.ToUpper(strings.ReplaceAll(name, "_", " ")))
		sb.WriteString("\n")
		if content, _ := sections[name].(string); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n")
		} else {
			sb.WriteString("[To be completed]\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

// stringsOfLoose stringifies slice elements of any printable type.
func stringsOfLoose(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		} else if item != nil {
			out = append(out, fmt.Sprintf("%v", item))
		}
	}
	return out
}

func removeElement(items []any, target string) []any {
	out := items[:0]
	for _, item := range items {
		if s, ok := item.(string); ok && s == target {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var _ Agent = (*DraftingAgent)(nil)
