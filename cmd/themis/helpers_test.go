package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/themis-legal/themis/internal/config"
)

func TestLoadMatterYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matter.yaml")
	content := `
summary: Breach of contract dispute
parties:
  - Acme Corp
  - Widget Supply LLC
documents:
  - title: Supply Agreement
    text: Agreement executed on 2024-01-15.
metadata:
  jurisdiction: federal
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write matter file: %v", err)
	}

	matter, err := loadMatter(path)
	if err != nil {
		t.Fatalf("loadMatter: %v", err)
	}
	if matter["summary"] != "Breach of contract dispute" {
		t.Errorf("summary = %v", matter["summary"])
	}
	parties, ok := matter["parties"].([]any)
	if !ok || len(parties) != 2 {
		t.Errorf("parties = %v", matter["parties"])
	}
	docs, ok := matter["documents"].([]any)
	if !ok || len(docs) != 1 {
		t.Fatalf("documents = %v", matter["documents"])
	}
	doc, ok := docs[0].(map[string]any)
	if !ok || doc["title"] != "Supply Agreement" {
		t.Errorf("document = %v", docs[0])
	}
}

func TestLoadMatterJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matter.json")
	content := `{"summary": "Tort claim", "parties": ["A", "B"]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write matter file: %v", err)
	}

	matter, err := loadMatter(path)
	if err != nil {
		t.Fatalf("loadMatter: %v", err)
	}
	if matter["summary"] != "Tort claim" {
		t.Errorf("summary = %v", matter["summary"])
	}
}

func TestLoadMatterMissingFile(t *testing.T) {
	if _, err := loadMatter(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildServiceWithAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-ant-REDACTED"
	cfg.Anthropic.Model = "claude-sonnet-4-20250514"

	service, err := buildService(cfg)
	if err != nil {
		t.Fatalf("buildService: %v", err)
	}
	if service == nil {
		t.Fatal("service is nil")
	}
}

func TestBuildServiceWithoutKeyUsesStub(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Default()

	service, err := buildService(cfg)
	if err != nil {
		t.Fatalf("buildService: %v", err)
	}
	if service == nil {
		t.Fatal("service is nil")
	}
}

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins(" https://a.example.com, https://b.example.com ,, ")
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitOrigins = %v, want %v", got, want)
	}
}
