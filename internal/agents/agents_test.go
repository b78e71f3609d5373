package agents

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/themis-legal/themis/internal/llm"
)

func testMatter() map[string]any {
	return map[string]any{
		"summary": "Client seeks to file suit over breach of contract by supplier",
		"parties": []any{"Acme Corp", "Widget Supply LLC"},
		"documents": []any{
			map[string]any{
				"title": "Supply Agreement",
				"text":  "Agreement executed on 2024-01-15. Supplier agreed to deliver monthly shipments.",
			},
			map[string]any{
				"title": "Breach Notice",
				"text":  "Notice sent 2024-06-02 after deliveries stopped. Client demanded cure of the breach.",
			},
		},
	}
}

func TestDefaultRegistryHasStandardAgents(t *testing.T) {
	r := DefaultRegistry(llm.NewStubClient())
	want := []string{"dda", "dea", "lda", "lsa"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if _, err := r.Get("lda"); err != nil {
		t.Errorf("Get(lda): %v", err)
	}
	if _, err := r.Get("unknown"); err == nil {
		t.Error("Get(unknown) should fail")
	}
}

func TestFactAnalysisProducesFactsAndTimeline(t *testing.T) {
	a := NewFactAnalysisAgent(llm.NewStubClient())
	out, err := a.Run(context.Background(), testMatter())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	facts, ok := out["facts"].(map[string]any)
	if !ok {
		t.Fatalf("missing facts artifact: %v", out)
	}
	if got := len(facts["fact_pattern_summary"].([]any)); got != 2 {
		t.Errorf("fact_pattern_summary length = %d, want 2", got)
	}

	timeline, ok := out["timeline"].([]any)
	if !ok {
		t.Fatalf("missing timeline artifact")
	}
	if len(timeline) != 2 {
		t.Fatalf("timeline length = %d, want 2", len(timeline))
	}
	first := timeline[0].(map[string]any)
	if first["date"] != "2024-01-15" {
		t.Errorf("timeline not sorted by date: first = %v", first["date"])
	}
}

func TestFactAnalysisFlagsEmptyDocuments(t *testing.T) {
	a := NewFactAnalysisAgent(llm.NewStubClient())
	out, err := a.Run(context.Background(), map[string]any{"summary": "bare matter"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out["unresolved_issues"].([]any); len(got) == 0 {
		t.Error("expected unresolved issue for matter without documents")
	}
}

func TestEvidenceAnalysisSpotsIssues(t *testing.T) {
	a := NewEvidenceAnalysisAgent(llm.NewStubClient())
	out, err := a.Run(context.Background(), testMatter())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	issues := out["issues"].([]any)
	foundBreach := false
	for _, issue := range issues {
		if issue.(map[string]any)["issue"] == "breach of contract" {
			foundBreach = true
		}
	}
	if !foundBreach {
		t.Errorf("breach of contract not spotted: %v", issues)
	}

	authorities := out["authorities"].([]any)
	if len(authorities) == 0 {
		t.Fatal("expected authorities for spotted issues")
	}
}

func TestEvidenceAnalysisPrefersConnectorDigest(t *testing.T) {
	a := NewEvidenceAnalysisAgent(llm.NewStubClient())
	matter := testMatter()
	matter["connectors"] = map[string]any{
		"case_law": map[string]any{
			"digests": map[string]any{
				"contract": []any{
					map[string]any{"citation": "Custom v. Case, 1 X. 1 (2000)", "principle": "custom principle"},
				},
			},
		},
	}
	out, err := a.Run(context.Background(), matter)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	authorities := out["authorities"].([]any)
	found := false
	for _, auth := range authorities {
		if auth.(map[string]any)["citation"] == "Custom v. Case, 1 X. 1 (2000)" {
			found = true
		}
	}
	if !found {
		t.Errorf("connector digest not used: %v", authorities)
	}
}

func TestStrategyAgentBuildsStrategy(t *testing.T) {
	a := NewStrategyAgent(llm.NewStubClient())
	input := testMatter()
	input["issues"] = []any{
		map[string]any{"issue": "breach of contract"},
	}
	out, err := a.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	strategy := out["strategy"].(map[string]any)
	objectives := strategy["objectives"].([]any)
	found := false
	for _, o := range objectives {
		if strings.Contains(o.(string), "breach of contract") {
			found = true
		}
	}
	if !found {
		t.Errorf("issue not reflected in objectives: %v", objectives)
	}
}

func TestStrategyAgentReviewRole(t *testing.T) {
	a := NewStrategyAgent(llm.NewStubClient())
	input := map[string]any{
		"support_role":  "strategy_review",
		"primary_agent": "dda",
		"phase":         "drafting",
		"primary_output": map[string]any{
			"document": map[string]any{
				"full_text":  strings.Repeat("word ", 100),
				"word_count": 100,
			},
			"validation": map[string]any{"missing_elements": []any{}},
		},
	}
	out, err := a.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	review := out["review"].(map[string]any)
	if review["approved"] != true {
		t.Errorf("expected approval: %v", review)
	}
	if review["reviewed_agent"] != "dda" {
		t.Errorf("reviewed_agent = %v", review["reviewed_agent"])
	}
}

func TestStrategyAgentReviewRejectsEmptyDocument(t *testing.T) {
	a := NewStrategyAgent(llm.NewStubClient())
	out, err := a.Run(context.Background(), map[string]any{
		"support_role":   "strategy_review",
		"primary_output": map[string]any{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	review := out["review"].(map[string]any)
	if review["approved"] != false {
		t.Error("review of missing document should not be approved")
	}
	if len(review["comments"].([]any)) == 0 {
		t.Error("expected review comments")
	}
}

func TestDraftingAgentProducesDocument(t *testing.T) {
	a := NewDraftingAgent(llm.NewStubClient())
	input := testMatter()
	input["document_type"] = DocTypeComplaint
	input["facts"] = map[string]any{
		"fact_pattern_summary": []any{"Supply Agreement: executed January 2024."},
		"parties":              []any{"Acme Corp", "Widget Supply LLC"},
	}
	input["authorities"] = []any{
		map[string]any{"citation": "Hadley v. Baxendale, 9 Ex. 341 (1854)", "principle": "foreseeability"},
	}
	input["strategy"] = map[string]any{"objectives": []any{"Recover contract damages."}}

	out, err := a.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	doc := out["document"].(map[string]any)
	fullText := doc["full_text"].(string)
	if !strings.HasPrefix(fullText, "COMPLAINT") {
		t.Errorf("document header missing: %q", fullText[:40])
	}
	if !strings.Contains(fullText, "Hadley v. Baxendale") {
		t.Error("authorities not woven into document")
	}
	if doc["word_count"].(int) == 0 {
		t.Error("word_count not set")
	}

	meta := out["metadata"].(map[string]any)
	if meta["document_type"] != DocTypeComplaint {
		t.Errorf("metadata document_type = %v", meta["document_type"])
	}
}

func TestDraftingAgentDetectsTypeWhenUnset(t *testing.T) {
	a := NewDraftingAgent(llm.NewStubClient())
	out, err := a.Run(context.Background(), map[string]any{
		"summary": "Prepare a demand letter seeking payment of overdue invoices",
		"parties": []any{"A", "B"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	meta := out["metadata"].(map[string]any)
	if meta["document_type"] != DocTypeDemandLetter {
		t.Errorf("detected type = %v, want demand_letter", meta["document_type"])
	}
}

func TestDetectDocumentType(t *testing.T) {
	cases := []struct {
		name    string
		summary string
		want    string
	}{
		{"complaint", "client wants to file suit against the manufacturer", DocTypeComplaint},
		{"motion", "prepare a motion to dismiss for lack of jurisdiction", DocTypeMotion},
		{"brief", "draft the appellate brief for the pending appeal", DocTypeBrief},
		{"demand", "send a settlement demand before litigation", DocTypeDemandLetter},
		{"answer", "we must answer the complaint and assert an affirmative defense", DocTypeAnswer},
		{"default", "summarize the legal landscape for the client", DocTypeMemorandum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectDocumentType(map[string]any{"summary": tc.summary})
			if got != tc.want {
				t.Errorf("DetectDocumentType = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTracerReceivesEvents(t *testing.T) {
	a := NewFactAnalysisAgent(llm.NewStubClient())
	var events []string
	a.SetTracer(func(name string, fields map[string]any) {
		events = append(events, name)
	})
	if _, err := a.Run(context.Background(), testMatter()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) == 0 {
		t.Error("expected trace events from agent run")
	}
}
