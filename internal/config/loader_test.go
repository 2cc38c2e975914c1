package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// TestLoadDefaults verifies missing files fall back to built-in defaults.
func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.json"), filepath.Join(dir, "also-absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Planner.QualityWeight != 0.5 || cfg.Planner.CostWeight != 0.3 || cfg.Planner.LatencyWeight != 0.2 {
		t.Errorf("weights = %f/%f/%f", cfg.Planner.QualityWeight, cfg.Planner.CostWeight, cfg.Planner.LatencyWeight)
	}
	if cfg.Invoker.TaskTimeoutMS != 60000 {
		t.Errorf("task timeout = %d", cfg.Invoker.TaskTimeoutMS)
	}
	if cfg.Collaborator.Provider != "" {
		t.Errorf("provider = %q, want none", cfg.Collaborator.Provider)
	}
}

// TestLoadMergePrecedence verifies project config overrides global, which
// overrides defaults, key by key.
func TestLoadMergePrecedence(t *testing.T) {
	dir := t.TempDir()
	global := writeConfig(t, dir, "global.json", `{
		"planner": {"quality_weight": 0.7, "cost_weight": 0.2, "latency_weight": 0.1},
		"collaborator": {"provider": "openai", "model": "gpt-4o-mini"}
	}`)
	project := writeConfig(t, dir, "project.json", `{
		"collaborator": {"provider": "openai", "model": "gpt-4o"},
		"history_db": ".atelier/history.db"
	}`)

	cfg, err := Load(global, project)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// From global
	if cfg.Planner.QualityWeight != 0.7 {
		t.Errorf("quality weight = %f, want global override", cfg.Planner.QualityWeight)
	}
	// Project wins over global
	if cfg.Collaborator.Model != "gpt-4o" {
		t.Errorf("model = %q, want project override", cfg.Collaborator.Model)
	}
	// Project-only key
	if cfg.HistoryDB != ".atelier/history.db" {
		t.Errorf("history db = %q", cfg.HistoryDB)
	}
	// Untouched keys keep defaults
	if cfg.Invoker.RetryInitialMS != 100 {
		t.Errorf("retry initial = %d, want default", cfg.Invoker.RetryInitialMS)
	}
}

// TestLoadMalformed verifies malformed JSON is an error, unlike absence.
func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	bad := writeConfig(t, dir, "bad.json", `{"planner": `)

	if _, err := Load(bad, ""); err == nil {
		t.Error("expected error for malformed global config")
	}
	if _, err := Load("", bad); err == nil {
		t.Error("expected error for malformed project config")
	}
}

// TestSaveRoundTrip verifies Save writes a file Load can read back.
func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Collaborator.Provider = "openai"
	cfg.Collaborator.Model = "gpt-4o"
	cfg.HistoryDB = "history.db"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Collaborator.Model != "gpt-4o" {
		t.Errorf("model = %q", loaded.Collaborator.Model)
	}
	if loaded.HistoryDB != "history.db" {
		t.Errorf("history db = %q", loaded.HistoryDB)
	}
}
