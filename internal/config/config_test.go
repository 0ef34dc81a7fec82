package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeTemp(t, "riskwatch.yaml", `
log_level: debug
scoring:
  levels:
    medium: 30
    high: 60
    critical: 85
engine:
  interval: 1m
api:
  enabled: true
  addr: ":9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: got %q", cfg.LogLevel)
	}
	if cfg.Scoring.Levels.High != 60 {
		t.Fatalf("levels.high: got %v", cfg.Scoring.Levels.High)
	}
	if cfg.Engine.Interval != time.Minute {
		t.Fatalf("interval: got %v", cfg.Engine.Interval)
	}
	if cfg.API.Addr != ":9000" {
		t.Fatalf("api addr: got %q", cfg.API.Addr)
	}
	// Untouched sections keep their defaults.
	if cfg.Scoring.PriorityBase["P0"] != 80 {
		t.Fatalf("priority base not defaulted: %v", cfg.Scoring.PriorityBase)
	}
	if cfg.History.StoreLimit != 365 {
		t.Fatalf("history limit not defaulted: %d", cfg.History.StoreLimit)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeTemp(t, "riskwatch.json", `{"log_level": "warn", "trend": {"window_days": 14}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Trend.WindowDays != 14 {
		t.Fatalf("json overrides: %+v", cfg.Trend)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.yaml", "   \n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestValidateRejectsNonAscendingLevels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Levels = LevelThresholds{Medium: 70, High: 40, Critical: 90}
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "ascending") {
		t.Fatalf("expected ascending error, got %v", err)
	}
}

func TestValidateRejectsKafkaWithoutBrokers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingest.Kafka = KafkaConfig{Enabled: true, Topic: "risk.history", GroupID: "riskwatch"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for kafka without brokers")
	}
	cfg = DefaultConfig()
	cfg.Dispatch.Kafka = KafkaDispatchConfig{Enabled: true, Brokers: []string{"localhost:9092"}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for dispatch kafka without topic")
	}
}

func TestValidateRejectsNegativeWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Catalog.Weights = map[string]float64{"ops": -1}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for negative category weight")
	}
	cfg = DefaultConfig()
	cfg.Scoring.PriorityWeights["P1"] = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for zero priority weight")
	}
}

func TestStaticManager(t *testing.T) {
	m := NewStaticManager(nil)
	if m.Get() == nil {
		t.Fatalf("static manager returned nil config")
	}
	if m.Path() != "" {
		t.Fatalf("static manager has a path: %q", m.Path())
	}
	needs, err := m.NeedsReload()
	if err != nil || needs {
		t.Fatalf("static manager reload check: needs=%v err=%v", needs, err)
	}
	next := DefaultConfig()
	next.LogLevel = "debug"
	if err := m.Update(next); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Get().LogLevel != "debug" {
		t.Fatalf("update not visible")
	}
}

func TestManagerReloadPicksUpChanges(t *testing.T) {
	path := writeTemp(t, "riskwatch.yaml", "log_level: info\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	cfg, err := m.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.LogLevel != "debug" || m.Get().LogLevel != "debug" {
		t.Fatalf("reload not applied: %q", m.Get().LogLevel)
	}
}
