package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/faqbot/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:        true,
		DBPath:         filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays:  90,
		IncludeAnswers: true,
		MaxBodySize:    1024,
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.AuditEntry {
	return models.AuditEntry{
		ID:          "dec-001",
		SessionID:   "sess-1",
		Mode:        models.ModeNormal,
		Question:    "¿Horario de atención?",
		Source:      models.SourceCache,
		Distance:    0.12,
		HasDistance: true,
		Answer:      "8am-4pm",
		LatencyMs:   3,
		CreatedAt:   time.Now(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry()); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{Source: models.SourceCache})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID != "dec-001" || e.Answer != "8am-4pm" || e.Mode != models.ModeNormal {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !e.HasDistance || e.Distance != 0.12 {
		t.Errorf("distance not round-tripped: %+v", e)
	}
}

func TestLogFillsDefaults(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := l.Log(ctx, models.AuditEntry{Question: "q", Source: models.SourceGenerator}); err != nil {
		t.Fatal(err)
	}
	entries, _ := l.Query(ctx, models.AuditQueryOpts{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" || entries[0].CreatedAt.IsZero() {
		t.Errorf("defaults not filled: %+v", entries[0])
	}
	if entries[0].HasDistance {
		t.Error("expected no distance")
	}
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	for i, src := range []models.Source{models.SourceCache, models.SourceGenerator, models.SourceGenerator} {
		e := sampleEntry()
		e.ID = ""
		e.Source = src
		e.SessionID = []string{"a", "b", "a"}[i]
		if err := l.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	entries, _ := l.Query(ctx, models.AuditQueryOpts{Source: models.SourceGenerator})
	if len(entries) != 2 {
		t.Errorf("expected 2 generator entries, got %d", len(entries))
	}
	entries, _ = l.Query(ctx, models.AuditQueryOpts{SessionID: "a"})
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for session a, got %d", len(entries))
	}
	entries, _ = l.Query(ctx, models.AuditQueryOpts{Limit: 1})
	if len(entries) != 1 {
		t.Errorf("expected limit 1, got %d", len(entries))
	}
	entries, _ = l.Query(ctx, models.AuditQueryOpts{Since: time.Now().Add(time.Hour)})
	if len(entries) != 0 {
		t.Errorf("expected none in the future, got %d", len(entries))
	}
}

func TestExcludeAnswers(t *testing.T) {
	cfg := tempCfg(t)
	cfg.IncludeAnswers = false
	l := mustNew(t, cfg)
	ctx := context.Background()

	_ = l.Log(ctx, sampleEntry())
	entries, _ := l.Query(ctx, models.AuditQueryOpts{})
	if entries[0].Answer != "" {
		t.Errorf("expected answer dropped, got %q", entries[0].Answer)
	}
}

func TestTruncation(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxBodySize = 5
	l := mustNew(t, cfg)
	ctx := context.Background()

	e := sampleEntry()
	e.Answer = strings.Repeat("ñ", 10)
	_ = l.Log(ctx, e)

	entries, _ := l.Query(ctx, models.AuditQueryOpts{})
	if entries[0].Answer != "ññ" {
		t.Errorf("expected rune-safe truncation, got %q", entries[0].Answer)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	for _, src := range []models.Source{models.SourceCache, models.SourceGenerator, models.SourceGenerator, models.SourceError} {
		e := sampleEntry()
		e.ID = ""
		e.Source = src
		_ = l.Log(ctx, e)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[models.Source]int{}
	for _, s := range stats {
		counts[s.Source] += s.Count
	}
	if counts[models.SourceGenerator] != 2 || counts[models.SourceCache] != 1 || counts[models.SourceError] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

}

func TestGenerationUsage(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	now := time.Now().UTC()
	for _, at := range []time.Time{now, now.Add(-time.Minute), now.AddDate(0, 0, -3)} {
		if err := l.RecordGeneration(ctx, at); err != nil {
			t.Fatal(err)
		}
	}

	n, err := l.CountGenerations(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestCleanup(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	old := sampleEntry()
	old.ID = "old"
	old.CreatedAt = time.Now().AddDate(0, 0, -100)
	_ = l.Log(ctx, old)
	_ = l.Log(ctx, sampleEntry())
	_ = l.RecordGeneration(ctx, time.Now().AddDate(0, 0, -100))
	_ = l.RecordGeneration(ctx, time.Now().AddDate(0, 0, -70))

	n, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	entries, _ := l.Query(ctx, models.AuditQueryOpts{})
	if len(entries) != 1 || entries[0].ID != "dec-001" {
		t.Errorf("unexpected remaining entries: %+v", entries)
	}
	if used, _ := l.CountGenerations(ctx, time.Time{}); used != 1 {
		t.Errorf("expected 1 usage row left, got %d", used)
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	if err := l.Log(context.Background(), sampleEntry()); err != nil {
		t.Errorf("nil logger must discard, got %v", err)
	}
}
