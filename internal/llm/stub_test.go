package llm

import (
	"context"
	"strings"
	"testing"
)

func TestStubIsDeterministic(t *testing.T) {
	s := NewStubClient()
	req := Request{Prompt: "Matter Context: breach of contract\nParties: Acme Corp, Jane Doe"}

	a, err := s.GenerateText(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	b, _ := s.GenerateText(context.Background(), req)
	if a != b {
		t.Error("identical requests produced different output")
	}
	if !strings.Contains(a, "breach of contract") {
		t.Errorf("context line not reflected in output: %q", a)
	}
	if !strings.Contains(a, "Acme Corp, Jane Doe") {
		t.Errorf("parties not reflected in output: %q", a)
	}
}

func TestStubExtractsBullets(t *testing.T) {
	s := NewStubClient()
	prompt := "Legal Issues Identified:\n- negligence\n- breach of warranty\n- fraud\n\nAuthorities:\n- Palsgraf v. Long Island R.R."
	out, err := s.GenerateText(context.Background(), Request{Prompt: prompt})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if !strings.Contains(out, "negligence, breach of warranty, and fraud") {
		t.Errorf("issues not joined naturally: %q", out)
	}
	if !strings.Contains(out, "Palsgraf") {
		t.Errorf("authority missing: %q", out)
	}
}

func TestStubDefaultsWhenPromptIsBare(t *testing.T) {
	s := NewStubClient()
	out, err := s.GenerateText(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if !strings.Contains(out, "the presented matter") {
		t.Errorf("missing default context: %q", out)
	}
	if !strings.Contains(out, "additional research is required") {
		t.Errorf("missing default authorities sentence: %q", out)
	}
}

func TestStubHonorsCancelledContext(t *testing.T) {
	s := NewStubClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GenerateText(ctx, Request{Prompt: "x"}); err == nil {
		t.Error("expected error from cancelled context")
	}
}
