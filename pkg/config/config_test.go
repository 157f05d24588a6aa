package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/faqbot/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":5000" {
		t.Errorf("expected :5000, got %s", cfg.Listen)
	}
	if cfg.Cache.DistanceThreshold != 0.2 {
		t.Errorf("expected threshold 0.2, got %v", cfg.Cache.DistanceThreshold)
	}
	if cfg.History.MaxTurns != 5 {
		t.Errorf("expected 5 history turns, got %d", cfg.History.MaxTurns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "gsk-test-123")

	path := writeConfig(t, `
listen: ":9090"
db_path: "test.db"
store:
  driver: sqlite
  path: faq.db
cache:
  enabled: true
  distance_threshold: 0.35
generator:
  enabled: true
  timeout: 10s
  chain: [groq]
  providers:
    - name: groq
      type: openai
      url: https://api.groq.com/openai/v1
      api_key: ${TEST_GROQ_KEY}
      model: llama-3.3-70b-versatile
budget:
  enabled: true
  policies:
    - max_generations: 200
      period: daily
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "faq.db" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Cache.DistanceThreshold != 0.35 {
		t.Errorf("expected 0.35, got %v", cfg.Cache.DistanceThreshold)
	}
	if cfg.Generator.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.Generator.Timeout)
	}
	if cfg.Generator.Providers[0].APIKey != "gsk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Generator.Providers[0].APIKey)
	}
	if len(cfg.Budget.Policies) != 1 || cfg.Budget.Policies[0].MaxGenerations != 200 {
		t.Errorf("unexpected budget policies: %+v", cfg.Budget.Policies)
	}
	// Unset keys keep their defaults.
	if cfg.History.GapTimeout != 30*time.Minute {
		t.Errorf("expected default gap timeout, got %v", cfg.History.GapTimeout)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, `
cache:
  distance_threshold: 2.5
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "distance_threshold") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mongo"
	cfg.History.MaxTurns = 0
	cfg.Budget.Enabled = true
	cfg.Audit.Enabled = false
	cfg.Budget.Policies = []models.BudgetPolicy{{MaxGenerations: 10, Period: "hourly"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"store.driver", "max_turns", "budget requires audit", "budget period"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got %v", want, err)
		}
	}
}

func TestAuditDBPathFallback(t *testing.T) {
	cfg := Default()
	if cfg.AuditDBPath() != "faqbot.db" {
		t.Errorf("expected fallback to db_path, got %s", cfg.AuditDBPath())
	}
	cfg.Audit.DBPath = "audit.db"
	if cfg.AuditDBPath() != "audit.db" {
		t.Errorf("expected audit.db, got %s", cfg.AuditDBPath())
	}
}
