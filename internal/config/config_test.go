package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host 'localhost', got %q", cfg.Server.Host)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}

	if cfg.Storage.Path != "" {
		t.Errorf("expected default storage path to be empty, got %q", cfg.Storage.Path)
	}

	if cfg.Storage.CacheTTL != 60*time.Second {
		t.Errorf("expected cache TTL 60s, got %v", cfg.Storage.CacheTTL)
	}

	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected retry max_attempts 3, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("expected retry base_delay 1s, got %v", cfg.Retry.BaseDelay)
	}

	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("expected breaker failure_threshold 5, got %d", cfg.Breaker.FailureThreshold)
	}

	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}

	if cfg.Async.MaxConcurrent != 10 {
		t.Errorf("expected async max_concurrent 10, got %d", cfg.Async.MaxConcurrent)
	}

	if cfg.Async.JobRetention != 24*time.Hour {
		t.Errorf("expected async job_retention 24h, got %v", cfg.Async.JobRetention)
	}
}

func TestLoadFromPath(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-sonnet-4-20250514
server:
  host: 0.0.0.0
  port: 9000
  body_limit: 5M
  cors_origins:
    - https://app.example.com
storage:
  path: /var/lib/themis/state.db
  cache_ttl: 2m
retry:
  max_attempts: 5
  base_delay: 500ms
  max_delay: 10s
breaker:
  failure_threshold: 3
  success_threshold: 1
  timeout: 15s
async:
  max_concurrent: 4
  webhook_timeout: 10s
  job_retention: 48h
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host '0.0.0.0', got %q", cfg.Server.Host)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}

	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("unexpected cors_origins: %v", cfg.Server.CORSOrigins)
	}

	if cfg.Storage.Path != "/var/lib/themis/state.db" {
		t.Errorf("expected storage path '/var/lib/themis/state.db', got %q", cfg.Storage.Path)
	}

	if cfg.Storage.CacheTTL != 2*time.Minute {
		t.Errorf("expected cache TTL 2m, got %v", cfg.Storage.CacheTTL)
	}

	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected retry max_attempts 5, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("expected retry base_delay 500ms, got %v", cfg.Retry.BaseDelay)
	}

	if cfg.Breaker.FailureThreshold != 3 {
		t.Errorf("expected breaker failure_threshold 3, got %d", cfg.Breaker.FailureThreshold)
	}

	if cfg.Async.MaxConcurrent != 4 {
		t.Errorf("expected async max_concurrent 4, got %d", cfg.Async.MaxConcurrent)
	}
}

func TestLoadFromPathKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Partial config: everything not named keeps its default.
	configContent := `
server:
  port: 9100
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected default retry max_attempts, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestExpandEnv(t *testing.T) {
	// Set environment variable
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/themis"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
