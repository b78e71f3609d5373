package llm

import (
	"context"
	"fmt"
	"strings"
)

// StubClient generates deterministic prose by analyzing the prompt. It
// never touches the network, so agent pipelines and tests run without an
// API key and produce the same output every time.
type StubClient struct{}

// NewStubClient returns a stub text generator.
func NewStubClient() *StubClient { return &StubClient{} }

// Name implements Client.
func (s *StubClient) Name() string { return "stub" }

// GenerateText implements Client. The output mirrors the shape a real
// completion would have: a context paragraph, issues sentence, authority
// sentence, and a follow-up line.
func (s *StubClient) GenerateText(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	matterContext := extractLine(req.Prompt, "Matter Context:")
	if matterContext == "" {
		matterContext = "the presented matter"
	}

	paragraphs := []string{
		fmt.Sprintf("The matter concerns %s.", matterContext),
	}

	if parties := extractLine(req.Prompt, "Parties:"); parties != "" {
		paragraphs[0] += fmt.Sprintf(" The parties involved are %s.", parties)
	}

	if issues := extractBullets(req.Prompt, "Legal Issues Identified:"); len(issues) > 0 {
		paragraphs = append(paragraphs, fmt.Sprintf("Key legal issues include %s.", naturalJoin(issues)))
	} else {
		paragraphs = append(paragraphs, "Key legal issues will require further investigation.")
	}

	if authorities := extractBullets(req.Prompt, "Authorities:"); len(authorities) > 0 {
		paragraphs = append(paragraphs, fmt.Sprintf("Supporting authorities such as %s guide the analysis.", naturalJoin(authorities)))
	} else {
		paragraphs = append(paragraphs, "No authorities were supplied, so additional research is required.")
	}

	paragraphs = append(paragraphs, "Further factual development should focus on resolving open questions and strengthening the evidentiary record.")

	return strings.Join(paragraphs, "\n\n"), nil
}

// extractLine returns the remainder of the first line starting with label,
// or the following line when the label stands alone.
func extractLine(text, label string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, label) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, label))
		if rest != "" {
			return rest
		}
		if i+1 < len(lines) {
			return strings.TrimSpace(lines[i+1])
		}
	}
	return ""
}

// extractBullets collects "- item" lines immediately following label.
func extractBullets(text, label string) []string {
	lines := strings.Split(text, "\n")
	var out []string
	collecting := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, label) {
			collecting = true
			continue
		}
		if !collecting {
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
			if item != "" {
				out = append(out, item)
			}
			continue
		}
		if trimmed == "" && len(out) == 0 {
			continue
		}
		break
	}
	return out
}

func naturalJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

var _ Client = (*StubClient)(nil)
