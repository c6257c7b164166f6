package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	assertEqual(t, "Database.Path", "clinsight.db", cfg.Database.Path)
	assertEqual(t, "Reasoning.Endpoint", "http://localhost:8090", cfg.Reasoning.Endpoint)
	assertEqualInt(t, "Reasoning.Timeout", 120, cfg.Reasoning.Timeout)
	assertBoolPtr(t, "Reasoning.Local", false, cfg.Reasoning.Local)
	assertEqualInt(t, "Retry.MaxTries", 3, cfg.Retry.MaxTries)
	assertEqualInt(t, "Retry.BaseDelay", 2, cfg.Retry.BaseDelay)
	assertEqualInt(t, "Pipeline.StageTimeout", 300, cfg.Pipeline.StageTimeout)
	assertEqualInt(t, "Pipeline.RunBudget", 900, cfg.Pipeline.RunBudget)
	assertEqualInt(t, "History.MaxPriorSessions", 5, cfg.History.MaxPriorSessions)
	assertEqualInt(t, "History.TrendWindowDays", 90, cfg.History.TrendWindowDays)
	assertEqualInt(t, "Server.Port", 3000, cfg.Server.Port)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".clinsight.yaml", `
database:
  path: "data/sessions.db"
reasoning:
  endpoint: "http://reasoning.internal:9000"
  timeout: 60
  local: true
retry:
  max_tries: 5
  base_delay: 1
pipeline:
  stage_timeout: 120
  run_budget: 600
history:
  max_prior_sessions: 10
  trend_window_days: 180
server:
  port: 8080
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqual(t, "Database.Path", "data/sessions.db", cfg.Database.Path)
	assertEqual(t, "Reasoning.Endpoint", "http://reasoning.internal:9000", cfg.Reasoning.Endpoint)
	assertEqualInt(t, "Reasoning.Timeout", 60, cfg.Reasoning.Timeout)
	assertBoolPtr(t, "Reasoning.Local", true, cfg.Reasoning.Local)
	assertEqualInt(t, "Retry.MaxTries", 5, cfg.Retry.MaxTries)
	assertEqualInt(t, "Retry.BaseDelay", 1, cfg.Retry.BaseDelay)
	assertEqualInt(t, "Pipeline.StageTimeout", 120, cfg.Pipeline.StageTimeout)
	assertEqualInt(t, "Pipeline.RunBudget", 600, cfg.Pipeline.RunBudget)
	assertEqualInt(t, "History.MaxPriorSessions", 10, cfg.History.MaxPriorSessions)
	assertEqualInt(t, "History.TrendWindowDays", 180, cfg.History.TrendWindowDays)
	assertEqualInt(t, "Server.Port", 8080, cfg.Server.Port)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".clinsight.yaml", `
retry:
  max_tries: 4
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Overridden
	assertEqualInt(t, "Retry.MaxTries", 4, cfg.Retry.MaxTries)

	// Everything else keeps defaults
	assertEqualInt(t, "Retry.BaseDelay", 2, cfg.Retry.BaseDelay)
	assertEqual(t, "Database.Path", "clinsight.db", cfg.Database.Path)
	assertEqualInt(t, "Server.Port", 3000, cfg.Server.Port)
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assertEqual(t, "Database.Path", "clinsight.db", cfg.Database.Path)
}

func TestLoad_WalksUpToParentDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".clinsight.yaml", `
server:
  port: 4000
`)
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nested)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assertEqualInt(t, "Server.Port", 4000, cfg.Server.Port)
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".clinsight.yaml", "database: [not: a: mapping")

	if _, err := Load(dir); err == nil {
		t.Fatal("Load() should fail on invalid YAML")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func assertEqualInt(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d, want %d", field, got, want)
	}
}

func assertBoolPtr(t *testing.T, field string, want bool, got *bool) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want %v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}
